// Package session keeps the subscription state of one websocket client.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	boom "github.com/tylertreat/BoomFilters"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	filterCapacity  = 10000
	filterFalseRate = 1.0 / 10000
)

// Sender delivers a notice for callback to the client. An error drops the
// subscription that produced the notice.
type Sender func(callback uint64, payload interface{}) error

type marketKey struct {
	base, quote string
}

// Session is the per-connection subscription context.
type Session struct {
	ID uuid.UUID

	db     *chain.Database
	market *market.Market
	send   Sender
	logger *zap.Logger

	mu              deadlock.Mutex
	filter          *boom.BloomFilter
	subscribe       *chain.Connection
	subscribeCB     uint64
	blockApplied    *chain.Connection
	blockAppliedCB  uint64
	marketFeed      *chain.Connection
	marketCallbacks map[marketKey]uint64
}

func New(db *chain.Database, m *market.Market, send Sender) *Session {
	id := uuid.New()
	return &Session{
		ID:              id,
		db:              db,
		market:          m,
		send:            send,
		logger:          logging.GetLogger().With(zap.String("component", "session"), zap.String("session", id.String())),
		filter:          boom.NewBloomFilter(filterCapacity, filterFalseRate),
		marketCallbacks: make(map[marketKey]uint64),
	}
}

// Watch adds object keys returned to the client to the change filter.
func (s *Session) Watch(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.filter.Add([]byte(key))
	}
}

// SetSubscribeCallback routes change notices for watched objects to cb.
// The filter is emptied when clearFilter is set.
func (s *Session) SetSubscribeCallback(cb uint64, clearFilter bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clearFilter {
		s.filter.Reset()
	}
	s.subscribeCB = cb
	if s.subscribe == nil {
		s.subscribe = s.db.AppliedBlock.Connect(s.onChanges)
	}
}

func (s *Session) onChanges(notice chain.BlockNotice) error {
	s.mu.Lock()
	cb := s.subscribeCB
	var matched []string
	for _, key := range notice.Changed {
		if s.filter.Test([]byte(key)) {
			matched = append(matched, key)
		}
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return nil
	}
	if err := s.send(cb, matched); err != nil {
		s.mu.Lock()
		s.subscribe = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// SetBlockAppliedCallback sends the header of every applied block to cb.
func (s *Session) SetBlockAppliedCallback(cb uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockAppliedCB = cb
	if s.blockApplied == nil {
		s.blockApplied = s.db.AppliedBlock.Connect(s.onBlock)
	}
}

func (s *Session) onBlock(notice chain.BlockNotice) error {
	s.mu.Lock()
	cb := s.blockAppliedCB
	s.mu.Unlock()

	if err := s.send(cb, notice.BlockHeader); err != nil {
		s.mu.Lock()
		s.blockApplied = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// orderedPair validates a market and puts its symbols in canonical order.
func orderedPair(a, b string) (marketKey, error) {
	if _, ok := protocol.LookupSymbol(a); !ok {
		return marketKey{}, protocol.NewParamError("a", "invalid asset symbol %q", a)
	}
	if _, ok := protocol.LookupSymbol(b); !ok {
		return marketKey{}, protocol.NewParamError("b", "invalid asset symbol %q", b)
	}
	if a == b {
		return marketKey{}, protocol.NewParamError("b", "a market needs two different assets")
	}
	if a > b {
		a, b = b, a
	}
	return marketKey{base: a, quote: b}, nil
}

// SubscribeToMarket sends the fills of the a/b market in every applied block
// to cb.
func (s *Session) SubscribeToMarket(cb uint64, a, b string) error {
	key, err := orderedPair(a, b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketCallbacks[key] = cb
	if s.marketFeed == nil {
		s.marketFeed = s.db.AppliedBlock.Connect(s.onMarketBlock)
	}
	return nil
}

func (s *Session) UnsubscribeFromMarket(a, b string) error {
	key, err := orderedPair(a, b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marketCallbacks, key)
	if len(s.marketCallbacks) == 0 && s.marketFeed != nil {
		s.marketFeed.Disconnect()
		s.marketFeed = nil
	}
	return nil
}

func (s *Session) onMarketBlock(notice chain.BlockNotice) error {
	s.mu.Lock()
	subs := make(map[marketKey]uint64, len(s.marketCallbacks))
	for k, cb := range s.marketCallbacks {
		subs[k] = cb
	}
	s.mu.Unlock()

	at := notice.Timestamp.Truncate(time.Second)
	for key, cb := range subs {
		var fills []objects.MarketTrade
		var err error
		s.db.WithReadLock(func() {
			fills, err = s.market.GetTradeHistory(key.base, key.quote, at.Add(time.Second), at, market.MaxTradeHistoryLimit)
		})
		if err != nil {
			s.logger.Warn("market notice failed", zap.String("base", key.base), zap.String("quote", key.quote), zap.Error(err))
			continue
		}
		if len(fills) == 0 {
			continue
		}
		if err := s.send(cb, fills); err != nil {
			s.mu.Lock()
			s.marketFeed = nil
			s.marketCallbacks = make(map[marketKey]uint64)
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

// CancelAllSubscriptions drops every callback of the session.
func (s *Session) CancelAllSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range []*chain.Connection{s.subscribe, s.blockApplied, s.marketFeed} {
		conn.Disconnect()
	}
	s.subscribe, s.blockApplied, s.marketFeed = nil, nil, nil
	s.marketCallbacks = make(map[marketKey]uint64)
	s.filter.Reset()
	s.logger.Debug("subscriptions cancelled")
}

// Close releases the session when its connection goes away.
func (s *Session) Close() {
	s.CancelAllSubscriptions()
}
