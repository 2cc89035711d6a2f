package condenser

import (
	"context"
	"time"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/protocol"
)

// The internal market trades GOLOS against GBG; prices are quoted in GBG.
var (
	marketBase  = protocol.GolosSymbol.Name
	marketQuote = protocol.GBGSymbol.Name
)

const (
	maxOrderBookLimit    = 50
	maxTradeHistoryLimit = 100
)

// MarketAPI serves market_history_api.
type MarketAPI struct {
	db     *chain.Database
	market *market.Market
}

func NewMarketAPI(db *chain.Database, m *market.Market) *MarketAPI {
	return &MarketAPI{db: db, market: m}
}

// GetTicker handles get_ticker()
func (m *MarketAPI) GetTicker(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(m.db, func() (objects.Ticker, error) {
		return m.market.GetTicker(marketBase, marketQuote)
	})
}

// GetVolume handles get_volume()
func (m *MarketAPI) GetVolume(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(m.db, func() (objects.Volume, error) {
		return m.market.GetVolume(marketBase, marketQuote)
	})
}

// GetOrderBook handles get_order_book(limit)
func (m *MarketAPI) GetOrderBook(ctx context.Context, p rpc.Params) (interface{}, error) {
	limit, err := p.Uint32(0, "limit", maxOrderBookLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxOrderBookLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxOrderBookLimit)
	}
	return read(m.db, func() (objects.OrderBook, error) {
		return m.market.GetOrderBook(marketBase, marketQuote, limit)
	})
}

// GetTradeHistory handles get_trade_history(start, end, limit). Trades are
// returned newest first within [end, start).
func (m *MarketAPI) GetTradeHistory(ctx context.Context, p rpc.Params) (interface{}, error) {
	start, err := p.Time(0, "start")
	if err != nil {
		return nil, err
	}
	stop, err := p.Time(1, "end")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(2, "limit", maxTradeHistoryLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxTradeHistoryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxTradeHistoryLimit)
	}
	return read(m.db, func() ([]objects.MarketTrade, error) {
		return m.market.GetTradeHistory(marketBase, marketQuote, start, stop, limit)
	})
}

// GetRecentTrades handles get_recent_trades(limit)
func (m *MarketAPI) GetRecentTrades(ctx context.Context, p rpc.Params) (interface{}, error) {
	limit, err := p.Uint32(0, "limit", maxTradeHistoryLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxTradeHistoryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxTradeHistoryLimit)
	}
	return read(m.db, func() ([]objects.MarketTrade, error) {
		return m.market.GetTradeHistory(marketBase, marketQuote, m.db.HeadBlockTime().Add(time.Second), time.Time{}, limit)
	})
}

// GetMarketHistory handles get_market_history(bucket_seconds, start, end)
func (m *MarketAPI) GetMarketHistory(ctx context.Context, p rpc.Params) (interface{}, error) {
	if err := p.Require(3, "bucket_seconds", "start", "end"); err != nil {
		return nil, err
	}
	seconds, err := p.Uint32(0, "bucket_seconds", 0)
	if err != nil {
		return nil, err
	}
	start, err := p.Time(1, "start")
	if err != nil {
		return nil, err
	}
	end, err := p.Time(2, "end")
	if err != nil {
		return nil, err
	}
	return read(m.db, func() ([]objects.Bucket, error) {
		return m.market.GetMarketHistory(marketBase, marketQuote, seconds, start, end)
	})
}

// GetMarketHistoryBuckets handles get_market_history_buckets()
func (m *MarketAPI) GetMarketHistoryBuckets(ctx context.Context, p rpc.Params) (interface{}, error) {
	return market.BucketSizes, nil
}
