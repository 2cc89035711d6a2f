package market

import (
	"slices"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/protocol"
)

// BucketSizes are the candlestick widths, in seconds, that can be requested.
var BucketSizes = []uint32{15, 60, 300, 3600, 86400}

// MaxBuckets bounds one market history response.
const MaxBuckets = 200

type bucketTrades struct {
	open    time.Time
	prices  []float64
	amounts []float64
	values  []float64
}

// GetMarketHistory aggregates the fills with start <= time < end into
// candlesticks of bucketSeconds, oldest first. Empty buckets are omitted.
func (m *Market) GetMarketHistory(base, quote string, bucketSeconds uint32, start, end time.Time) ([]objects.Bucket, error) {
	if !slices.Contains(BucketSizes, bucketSeconds) {
		return nil, protocol.NewParamError("bucket_seconds", "must be one of %v", BucketSizes)
	}
	b, q, err := pair(base, quote)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return []objects.Bucket{}, nil
	}

	width := time.Duration(bucketSeconds) * time.Second
	var groups []*bucketTrades
	m.trades(b, q, end, start, func(t objects.MarketTrade) bool {
		open := t.Date.Truncate(width)
		if len(groups) == 0 || !groups[len(groups)-1].open.Equal(open) {
			if len(groups) == MaxBuckets {
				return false
			}
			groups = append(groups, &bucketTrades{open: open})
		}
		g := groups[len(groups)-1]
		g.prices = append(g.prices, t.Price)
		g.amounts = append(g.amounts, t.Amount)
		g.values = append(g.values, t.Value)
		return true
	})

	// Trades were collected newest first.
	slices.Reverse(groups)
	out := make([]objects.Bucket, 0, len(groups))
	for _, g := range groups {
		slices.Reverse(g.prices)
		bucket, err := candle(g, bucketSeconds)
		if err != nil {
			m.logger.Warn("skipping market bucket", zap.Time("open", g.open), zap.Error(err))
			continue
		}
		out = append(out, bucket)
	}
	return out, nil
}

func candle(g *bucketTrades, seconds uint32) (objects.Bucket, error) {
	high, err := stats.Max(g.prices)
	if err != nil {
		return objects.Bucket{}, err
	}
	low, err := stats.Min(g.prices)
	if err != nil {
		return objects.Bucket{}, err
	}
	baseVolume, err := stats.Sum(g.values)
	if err != nil {
		return objects.Bucket{}, err
	}
	quoteVolume, err := stats.Sum(g.amounts)
	if err != nil {
		return objects.Bucket{}, err
	}
	return objects.Bucket{
		Open:        protocol.NewTime(g.open),
		Seconds:     seconds,
		High:        high,
		Low:         low,
		OpenPrice:   g.prices[0],
		ClosePrice:  g.prices[len(g.prices)-1],
		BaseVolume:  baseVolume,
		QuoteVolume: quoteVolume,
		Trades:      len(g.prices),
	}, nil
}
