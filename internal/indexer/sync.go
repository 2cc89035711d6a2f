package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/pkg/config"
	"github.com/golos/golosmind/pkg/logging"
)

// Sync manages the blockchain synchronization process
type Sync struct {
	config         *config.IndexerConfig
	db             *chain.Database
	node           Node
	blockProcessor *BlockProcessor
	logger         *zap.Logger
}

// NewSync creates a new sync manager
func NewSync(cfg *config.IndexerConfig, node Node, db *chain.Database, follows *follow.Store, tagStore *tags.Store) *Sync {
	return &Sync{
		config:         cfg,
		db:             db,
		node:           node,
		blockProcessor: NewBlockProcessor(node, db, follows, tagStore),
		logger:         logging.WithComponent("indexer"),
	}
}

// SetGovernanceHead marks the block up to which worker objects were loaded
// from the database.
func (s *Sync) SetGovernanceHead(num uint32) {
	s.blockProcessor.SetGovernanceHead(num)
}

// Run follows the node until ctx is cancelled, staying TrailBlocks behind its
// head.
func (s *Sync) Run(ctx context.Context) error {
	s.logger.Info("Starting indexer sync",
		zap.Int("start_block", s.config.StartBlock),
		zap.Int("trail_blocks", s.config.TrailBlocks))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		synced, err := s.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("Failed to sync blocks", zap.Error(err))
			s.wait(ctx, s.config.PollInterval)
			continue
		}
		if synced == 0 {
			s.wait(ctx, s.config.PollInterval)
		}
	}
}

// Step applies at most one batch of blocks and returns how many it applied.
func (s *Sync) Step(ctx context.Context) (int, error) {
	props, err := s.node.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return 0, fmt.Errorf("get_dynamic_global_properties: %w", err)
	}
	trail := uint32(s.config.TrailBlocks)
	if props.HeadBlockNumber <= trail {
		return 0, nil
	}
	target := props.HeadBlockNumber - trail

	from := s.nextBlock()
	if from > target {
		s.logger.Debug("Already synced",
			zap.Uint32("current_head", from-1),
			zap.Uint32("target", target))
		return 0, nil
	}
	to := min(target, from+uint32(s.config.MaxBatch)-1)
	if err := s.syncBlocks(ctx, from, to); err != nil {
		return 0, err
	}
	return int(to - from + 1), nil
}

func (s *Sync) nextBlock() uint32 {
	var head uint32
	s.db.WithReadLock(func() { head = s.db.HeadBlockNum() })
	if head == 0 {
		return uint32(s.config.StartBlock)
	}
	return head + 1
}

// syncBlocks syncs a range of blocks
func (s *Sync) syncBlocks(ctx context.Context, from, to uint32) error {
	blocks, err := s.node.GetBlocks(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch blocks %d-%d: %w", from, to, err)
	}
	ops, err := s.node.GetOpsInBlocks(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch operations %d-%d: %w", from, to, err)
	}
	if len(ops) != len(blocks) {
		return fmt.Errorf("got %d blocks but operations of %d", len(blocks), len(ops))
	}

	start := time.Now()
	prevID := ""
	s.db.WithReadLock(func() { prevID = s.db.Props.Get().HeadBlockID })
	for i, block := range blocks {
		if prevID != "" && block.Previous != prevID {
			s.logger.Warn("Block does not link to the applied head",
				zap.Uint32("block", block.Number),
				zap.String("previous", block.Previous),
				zap.String("head_id", prevID))
		}
		if err := s.blockProcessor.ProcessBlock(ctx, block, ops[i]); err != nil {
			return fmt.Errorf("failed to process block %d: %w", block.Number, err)
		}
		prevID = block.BlockID
	}

	s.logger.Info("Synced block batch",
		zap.Uint32("from", from),
		zap.Uint32("to", to),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// wait waits for the specified duration or until context is cancelled
func (s *Sync) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		return
	}
}
