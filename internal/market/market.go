package market

import (
	"math"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	MaxOrderBookLimit    = 50
	MaxTradeHistoryLimit = 100
)

// Market answers order book and trade queries over the internal market.
// Like the discussion engine it reads without locking.
type Market struct {
	db     *chain.Database
	logger *zap.Logger
	now    func() time.Time
}

func New(db *chain.Database) *Market {
	return &Market{
		db:     db,
		logger: logging.GetLogger().With(zap.String("component", "market")),
		now:    time.Now,
	}
}

// SetClock replaces the wall clock used for "now" windows.
func (m *Market) SetClock(now func() time.Time) {
	m.now = now
}

// pair resolves and checks the symbols of a market.
func pair(base, quote string) (protocol.Symbol, protocol.Symbol, error) {
	b, ok := protocol.LookupSymbol(base)
	if !ok {
		return protocol.Symbol{}, protocol.Symbol{}, protocol.NewParamError("base", "invalid base asset symbol %q", base)
	}
	q, ok := protocol.LookupSymbol(quote)
	if !ok {
		return protocol.Symbol{}, protocol.Symbol{}, protocol.NewParamError("quote", "invalid quote asset symbol %q", quote)
	}
	if b == q {
		return protocol.Symbol{}, protocol.Symbol{}, protocol.NewParamError("quote", "base and quote must differ")
	}
	return b, q, nil
}

// scaled returns amount*mul/div in the smallest unit, zero on a zero divisor.
func scaled(amount, mul, div int64) int64 {
	if div <= 0 || amount < 0 || mul < 0 {
		return 0
	}
	r := new(uint256.Int).Mul(uint256.NewInt(uint64(amount)), uint256.NewInt(uint64(mul)))
	r.Div(r, uint256.NewInt(uint64(div)))
	if !r.IsUint64() || r.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(r.Uint64())
}

func toReal(amount int64, symbol protocol.Symbol) float64 {
	return protocol.NewAsset(amount, symbol).ToReal()
}

// ordersSelling walks the open orders that sell sell for buy, best price
// first.
func (m *Market) ordersSelling(sell, buy protocol.Symbol, limit int, fn func(*chain.LimitOrder)) {
	pivot := &chain.LimitOrder{SellPrice: protocol.Price{
		Base:  protocol.NewAsset(chain.MaxShareSupply, sell),
		Quote: protocol.NewAsset(1, buy),
	}}
	n := 0
	m.db.LimitOrders.ByPrice.AscendFrom(pivot, func(o *chain.LimitOrder) bool {
		if n >= limit || o.SellPrice.Base.Symbol != sell || o.SellPrice.Quote.Symbol != buy {
			return false
		}
		fn(o)
		n++
		return true
	})
}

// GetOrderBook lists up to limit bids and asks. Bids sell the base asset;
// prices are quoted in base per quote.
func (m *Market) GetOrderBook(base, quote string, limit uint32) (objects.OrderBook, error) {
	if limit > MaxOrderBookLimit {
		return objects.OrderBook{}, protocol.NewParamError("limit", "must not exceed %d", MaxOrderBookLimit)
	}
	b, q, err := pair(base, quote)
	if err != nil {
		return objects.OrderBook{}, err
	}

	book := objects.OrderBook{Base: base, Quote: quote, Bids: []objects.Order{}, Asks: []objects.Order{}}
	m.ordersSelling(b, q, int(limit), func(o *chain.LimitOrder) {
		p := o.SellPrice
		book.Bids = append(book.Bids, objects.Order{
			Price:   p.Base.ToReal() / p.Quote.ToReal(),
			Quote:   toReal(scaled(o.ForSale, p.Quote.Amount, p.Base.Amount), q),
			Base:    toReal(o.ForSale, b),
			Seller:  o.Seller,
			Created: protocol.NewTime(o.Created),
		})
	})
	m.ordersSelling(q, b, int(limit), func(o *chain.LimitOrder) {
		p := o.SellPrice
		book.Asks = append(book.Asks, objects.Order{
			Price:   p.Quote.ToReal() / p.Base.ToReal(),
			Quote:   toReal(o.ForSale, q),
			Base:    toReal(scaled(o.ForSale, p.Quote.Amount, p.Base.Amount), b),
			Seller:  o.Seller,
			Created: protocol.NewTime(o.Created),
		})
	})
	return book, nil
}

// trades walks fills of the b/q market newest first, from just before start
// down to stop inclusive.
func (m *Market) trades(b, q protocol.Symbol, start, stop time.Time, fn func(objects.MarketTrade) bool) {
	m.db.Trades.ByTime.DescendFrom(&chain.Trade{Time: start}, func(t *chain.Trade) bool {
		if t.Time.Before(stop) {
			return false
		}
		if !t.Time.Before(start) {
			return true
		}

		var amount, value protocol.Asset
		switch {
		case t.CurrentPays.Symbol == q && t.OpenPays.Symbol == b:
			amount, value = t.CurrentPays, t.OpenPays
		case t.CurrentPays.Symbol == b && t.OpenPays.Symbol == q:
			amount, value = t.OpenPays, t.CurrentPays
		default:
			return true
		}
		trade := objects.MarketTrade{
			Date:   protocol.NewTime(t.Time),
			Amount: amount.ToReal(),
			Value:  value.ToReal(),
		}
		if trade.Amount != 0 {
			trade.Price = trade.Value / trade.Amount
		}
		return fn(trade)
	})
}

// GetTradeHistory lists fills with stop <= time < start, newest first. A
// zero start means now.
func (m *Market) GetTradeHistory(base, quote string, start, stop time.Time, limit uint32) ([]objects.MarketTrade, error) {
	if limit > MaxTradeHistoryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxTradeHistoryLimit)
	}
	b, q, err := pair(base, quote)
	if err != nil {
		return nil, err
	}
	if start.IsZero() || start.Unix() == 0 {
		start = m.now()
	}

	out := []objects.MarketTrade{}
	if limit == 0 {
		return out, nil
	}
	m.trades(b, q, start, stop, func(t objects.MarketTrade) bool {
		out = append(out, t)
		return len(out) < int(limit)
	})
	return out, nil
}

// GetTicker summarizes the last 24 hours of the market.
func (m *Market) GetTicker(base, quote string) (objects.Ticker, error) {
	b, q, err := pair(base, quote)
	if err != nil {
		return objects.Ticker{}, err
	}

	ticker := objects.Ticker{Base: base, Quote: quote}
	now := m.now()
	yesterday := now.Add(-24 * time.Hour)

	first := true
	m.trades(b, q, now, yesterday, func(t objects.MarketTrade) bool {
		if first {
			ticker.Latest = t.Price
			first = false
		}
		ticker.BaseVolume += t.Value
		ticker.QuoteVolume += t.Amount
		return true
	})

	if first {
		m.trades(b, q, now, time.Time{}, func(t objects.MarketTrade) bool {
			ticker.Latest = t.Price
			return false
		})
	} else {
		m.trades(b, q, yesterday, time.Time{}, func(t objects.MarketTrade) bool {
			if t.Price != 0 {
				ticker.PercentChange = (ticker.Latest/t.Price - 1) * 100
			}
			return false
		})
	}

	book, err := m.GetOrderBook(base, quote, 1)
	if err != nil {
		return objects.Ticker{}, err
	}
	if len(book.Asks) > 0 {
		ticker.LowestAsk = book.Asks[0].Price
	}
	if len(book.Bids) > 0 {
		ticker.HighestBid = book.Bids[0].Price
	}
	return ticker, nil
}

// GetVolume returns the 24 hour volumes of the market.
func (m *Market) GetVolume(base, quote string) (objects.Volume, error) {
	t, err := m.GetTicker(base, quote)
	if err != nil {
		return objects.Volume{}, err
	}
	return objects.Volume{
		Base:        t.Base,
		Quote:       t.Quote,
		BaseVolume:  t.BaseVolume,
		QuoteVolume: t.QuoteVolume,
	}, nil
}

// GetMarketData is the market page shown by get_state.
func (m *Market) GetMarketData(base, quote string) (*objects.MarketData, error) {
	book, err := m.GetOrderBook(base, quote, MaxOrderBookLimit)
	if err != nil {
		return nil, err
	}
	history, err := m.GetTradeHistory(base, quote, time.Time{}, time.Time{}, MaxTradeHistoryLimit)
	if err != nil {
		return nil, err
	}
	now := m.now()
	buckets, err := m.GetMarketHistory(base, quote, 3600, now.Add(-24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	return &objects.MarketData{
		Bids:         book.Bids,
		Asks:         book.Asks,
		History:      history,
		PriceHistory: buckets,
	}, nil
}
