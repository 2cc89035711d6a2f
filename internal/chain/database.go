package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

// ErrNoSession is returned by table mutations outside of a write session.
var ErrNoSession = errors.New("chain: mutation outside of a write session")

type session struct {
	undo    []func()
	changed []string
}

func (s *session) revert() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
}

// Database is the in-memory object store. Readers share an RW lock; a single
// writer mutates tables inside sessions that are rolled back on error.
type Database struct {
	mu deadlock.RWMutex

	current  *session
	changed  []string
	logger   *zap.Logger
	handlers map[string]Evaluator

	AppliedBlock *Signal[BlockNotice]

	Props       *Singleton[DynamicGlobalProperties]
	FeedHistory *Singleton[FeedHistory]
	Schedule    *Singleton[WitnessSchedule]
	Comments    *CommentTable
	Votes       *VoteTable
	Accounts    *AccountTable
	RewardFunds *RewardFundTable
	Witnesses   *WitnessTable
	LimitOrders *LimitOrderTable
	Trades      *TradeTable
	History     *HistoryTable
}

func NewDatabase() *Database {
	db := &Database{
		logger:   logging.GetLogger().With(zap.String("component", "chain")),
		handlers: make(map[string]Evaluator),
	}
	db.AppliedBlock = NewSignal[BlockNotice](db.logger)

	db.Props = NewSingleton(db, "dynamic_global_properties", DynamicGlobalProperties{
		Time:                 time.Unix(0, 0).UTC(),
		TotalRewardFundSteem: zeroGolos(),
		VirtualSupply:        zeroGolos(),
		CurrentSupply:        zeroGolos(),
		CurrentSBDSupply:     zeroGBG(),
		TotalVestingFund:     zeroGolos(),
	})
	db.FeedHistory = NewSingleton(db, "feed_history", FeedHistory{})
	db.Schedule = NewSingleton(db, "witness_schedule", WitnessSchedule{})
	db.Comments = newCommentTable(db)
	db.Votes = newVoteTable(db)
	db.Accounts = newAccountTable(db)
	db.RewardFunds = newRewardFundTable(db)
	db.Witnesses = newWitnessTable(db)
	db.LimitOrders = newLimitOrderTable(db)
	db.Trades = newTradeTable(db)
	db.History = newHistoryTable(db)
	return db
}

// WithReadLock runs fn while holding the shared lock.
func (db *Database) WithReadLock(fn func()) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn()
}

// WithWriteLock runs fn exclusively inside a session. Every change made by fn
// is undone when it returns an error or panics.
func (db *Database) WithWriteLock(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.Session(fn)
}

// Session runs fn as a nested all-or-nothing unit. The caller must already
// hold the write lock.
func (db *Database) Session(fn func() error) (err error) {
	s := &session{}
	parent := db.current
	db.current = s

	defer func() {
		if r := recover(); r != nil {
			s.revert()
			db.current = parent
			panic(r)
		}
	}()

	err = fn()
	db.current = parent
	if err != nil {
		s.revert()
		return err
	}

	if parent != nil {
		parent.undo = append(parent.undo, s.undo...)
		parent.changed = append(parent.changed, s.changed...)
	} else {
		db.changed = append(db.changed, s.changed...)
	}
	return nil
}

// TakeChanges returns and clears the keys of objects changed by committed
// sessions since the previous call.
func (db *Database) TakeChanges() []string {
	changed := db.changed
	db.changed = nil
	return changed
}

func (db *Database) requireSession() error {
	if db.current == nil {
		return ErrNoSession
	}
	return nil
}

func (db *Database) recordUndo(fn func()) {
	db.current.undo = append(db.current.undo, fn)
}

func (db *Database) markChanged(key string) {
	db.current.changed = append(db.current.changed, key)
}

// HeadBlockTime is the timestamp of the last applied block.
func (db *Database) HeadBlockTime() time.Time {
	return db.Props.Get().Time
}

func (db *Database) HeadBlockNum() uint32 {
	return db.Props.Get().HeadBlockNumber
}

// ApplyBlock runs fn under the write lock as one session, then advances the
// head and notifies block-applied subscribers outside the lock.
func (db *Database) ApplyBlock(header BlockHeader, fn func() error) error {
	db.mu.Lock()
	err := db.Session(func() error {
		if err := fn(); err != nil {
			return err
		}
		return db.Props.Modify(func(p *DynamicGlobalProperties) {
			p.HeadBlockNumber = header.Number
			p.HeadBlockID = header.ID
			p.Time = header.Timestamp
			p.CurrentWitness = header.Witness
		})
	})
	changed := db.TakeChanges()
	db.mu.Unlock()

	if err != nil {
		return fmt.Errorf("apply block %d: %w", header.Number, err)
	}
	db.AppliedBlock.Emit(BlockNotice{BlockHeader: header, Changed: changed})
	return nil
}

func zeroGolos() protocol.Asset { return protocol.Asset{Symbol: protocol.GolosSymbol} }

func zeroGBG() protocol.Asset { return protocol.Asset{Symbol: protocol.GBGSymbol} }
