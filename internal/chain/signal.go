package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// BlockHeader is the part of a block that subscribers are told about.
type BlockHeader struct {
	Number    uint32    `json:"block_num"`
	ID        string    `json:"block_id"`
	Previous  string    `json:"previous"`
	Timestamp time.Time `json:"timestamp"`
	Witness   string    `json:"witness"`
}

// BlockNotice is emitted after a block has been applied.
type BlockNotice struct {
	BlockHeader
	Changed []string `json:"-"`
}

// Signal fans values out to connected slots. A slot that fails or panics is
// disconnected and the remaining slots still run.
type Signal[T any] struct {
	mu     deadlock.Mutex
	next   uint64
	slots  map[uint64]func(T) error
	logger *zap.Logger
}

// Connection identifies one slot of a signal.
type Connection struct {
	id         uint64
	disconnect func(uint64)
}

func NewSignal[T any](logger *zap.Logger) *Signal[T] {
	return &Signal[T]{slots: make(map[uint64]func(T) error), logger: logger}
}

func (s *Signal[T]) Connect(fn func(T) error) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.slots[s.next] = fn
	return &Connection{id: s.next, disconnect: s.remove}
}

// Disconnect removes the slot. It is safe to call more than once.
func (c *Connection) Disconnect() {
	if c == nil {
		return
	}
	c.disconnect(c.id)
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, id)
}

// Len returns the number of connected slots.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Emit calls every connected slot in connection order.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	slots := make(map[uint64]func(T) error, len(s.slots))
	for id, fn := range s.slots {
		slots[id] = fn
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.call(slots[id], v); err != nil {
			s.logger.Warn("disconnecting failed subscriber",
				zap.Uint64("slot", id),
				zap.Error(err))
			s.remove(id)
		}
	}
}

func (s *Signal[T]) call(fn func(T) error, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return fn(v)
}
