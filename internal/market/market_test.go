package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

var (
	t0  = time.Unix(1500000000, 0).UTC()
	now = t0.Add(48 * time.Hour)
)

func golos(amount int64) protocol.Asset { return protocol.NewAsset(amount, protocol.GolosSymbol) }
func gbg(amount int64) protocol.Asset   { return protocol.NewAsset(amount, protocol.GBGSymbol) }

func setup(t *testing.T) *Market {
	t.Helper()
	db := chain.NewDatabase()
	m := New(db)
	m.SetClock(func() time.Time { return now })

	require.NoError(t, db.WithWriteLock(func() error {
		orders := []chain.LimitOrder{
			{OrderID: 1, Seller: "alice", ForSale: 10000, SellPrice: protocol.Price{Base: golos(10000), Quote: gbg(2000)}},
			{OrderID: 2, Seller: "carol", ForSale: 5000, SellPrice: protocol.Price{Base: golos(5000), Quote: gbg(2000)}},
			{OrderID: 3, Seller: "bob", ForSale: 3000, SellPrice: protocol.Price{Base: gbg(3000), Quote: golos(12000)}},
		}
		for _, o := range orders {
			if _, err := db.StoreLimitOrder(o); err != nil {
				return err
			}
		}

		trades := []chain.Trade{
			{Time: t0, CurrentPays: gbg(1000), OpenPays: golos(4000)},
			{Time: now.Add(-2 * time.Hour), CurrentPays: golos(10000), OpenPays: gbg(2000)},
			{Time: now.Add(-time.Hour), CurrentPays: gbg(1000), OpenPays: golos(6000)},
		}
		for _, tr := range trades {
			if _, err := db.AppendTrade(tr); err != nil {
				return err
			}
		}
		return nil
	}))
	return m
}

func TestOrderBook(t *testing.T) {
	m := setup(t)

	book, err := m.GetOrderBook("GOLOS", "GBG", 10)
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)

	assert.Equal(t, "alice", book.Bids[0].Seller)
	assert.InDelta(t, 5.0, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 10.0, book.Bids[0].Base, 1e-9)
	assert.InDelta(t, 2.0, book.Bids[0].Quote, 1e-9)
	assert.Equal(t, "carol", book.Bids[1].Seller)

	assert.InDelta(t, 4.0, book.Asks[0].Price, 1e-9)
	assert.InDelta(t, 3.0, book.Asks[0].Quote, 1e-9)
	assert.InDelta(t, 12.0, book.Asks[0].Base, 1e-9)

	book, err = m.GetOrderBook("GOLOS", "GBG", 1)
	require.NoError(t, err)
	assert.Len(t, book.Bids, 1)

	var perr *protocol.ParamError
	_, err = m.GetOrderBook("GOLOS", "GBG", MaxOrderBookLimit+1)
	assert.ErrorAs(t, err, &perr)
	_, err = m.GetOrderBook("BTC", "GBG", 1)
	assert.ErrorAs(t, err, &perr)
	_, err = m.GetOrderBook("GBG", "GBG", 1)
	assert.ErrorAs(t, err, &perr)
}

func prices(t *testing.T, m *Market, start time.Time, limit uint32) []float64 {
	t.Helper()
	trades, err := m.GetTradeHistory("GOLOS", "GBG", start, time.Time{}, limit)
	require.NoError(t, err)
	out := make([]float64, len(trades))
	for i, tr := range trades {
		out[i] = tr.Price
	}
	return out
}

func TestTradeHistory(t *testing.T) {
	m := setup(t)

	assert.InDeltaSlice(t, []float64{6, 5, 4}, prices(t, m, time.Time{}, 10), 1e-9)
	assert.InDeltaSlice(t, []float64{6, 5}, prices(t, m, time.Time{}, 2), 1e-9)
	assert.InDeltaSlice(t, []float64{5, 4}, prices(t, m, now.Add(-time.Hour), 10), 1e-9)
	assert.Empty(t, prices(t, m, time.Time{}, 0))

	trades, err := m.GetTradeHistory("GOLOS", "GBG", time.Time{}, now.Add(-3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.InDelta(t, 2.0, trades[1].Amount, 1e-9)
	assert.InDelta(t, 10.0, trades[1].Value, 1e-9)

	_, err = m.GetTradeHistory("GOLOS", "GBG", time.Time{}, time.Time{}, MaxTradeHistoryLimit+1)
	assert.Error(t, err)
}

func TestTicker(t *testing.T) {
	m := setup(t)

	ticker, err := m.GetTicker("GOLOS", "GBG")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, ticker.Latest, 1e-9)
	assert.InDelta(t, 16.0, ticker.BaseVolume, 1e-9)
	assert.InDelta(t, 3.0, ticker.QuoteVolume, 1e-9)
	assert.InDelta(t, 50.0, ticker.PercentChange, 1e-9)
	assert.InDelta(t, 4.0, ticker.LowestAsk, 1e-9)
	assert.InDelta(t, 5.0, ticker.HighestBid, 1e-9)

	volume, err := m.GetVolume("GOLOS", "GBG")
	require.NoError(t, err)
	assert.InDelta(t, ticker.BaseVolume, volume.BaseVolume, 1e-9)
	assert.InDelta(t, ticker.QuoteVolume, volume.QuoteVolume, 1e-9)

	// With no trades in the last day the latest price is the last one seen.
	m.SetClock(func() time.Time { return now.Add(72 * time.Hour) })
	ticker, err = m.GetTicker("GOLOS", "GBG")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, ticker.Latest, 1e-9)
	assert.Zero(t, ticker.BaseVolume)
	assert.Zero(t, ticker.PercentChange)
}

func TestMarketHistory(t *testing.T) {
	m := setup(t)

	hourly, err := m.GetMarketHistory("GOLOS", "GBG", 3600, now.Add(-3*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	assert.InDelta(t, 5.0, hourly[0].OpenPrice, 1e-9)
	assert.InDelta(t, 6.0, hourly[1].ClosePrice, 1e-9)
	assert.True(t, hourly[0].Open.Before(hourly[1].Open.Time))

	daily, err := m.GetMarketHistory("GOLOS", "GBG", 86400, now.Add(-3*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	d := daily[0]
	assert.Equal(t, 2, d.Trades)
	assert.InDelta(t, 5.0, d.OpenPrice, 1e-9)
	assert.InDelta(t, 6.0, d.ClosePrice, 1e-9)
	assert.InDelta(t, 6.0, d.High, 1e-9)
	assert.InDelta(t, 5.0, d.Low, 1e-9)
	assert.InDelta(t, 16.0, d.BaseVolume, 1e-9)
	assert.InDelta(t, 3.0, d.QuoteVolume, 1e-9)

	var perr *protocol.ParamError
	_, err = m.GetMarketHistory("GOLOS", "GBG", 17, t0, now)
	assert.ErrorAs(t, err, &perr)

	empty, err := m.GetMarketHistory("GOLOS", "GBG", 60, now, now)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarketData(t *testing.T) {
	m := setup(t)

	data, err := m.GetMarketData("GOLOS", "GBG")
	require.NoError(t, err)
	assert.Len(t, data.Bids, 2)
	assert.Len(t, data.Asks, 1)
	assert.Len(t, data.History, 3)
	assert.Len(t, data.PriceHistory, 2)
}
