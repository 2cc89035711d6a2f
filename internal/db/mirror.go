package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/models"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	proposalPrefix = "worker_proposal:"
	techspecPrefix = "worker_techspec:"

	mirrorQueueSize = 1024
	mirrorRetry     = 3 * time.Second
)

// batch is the persisted effect of one applied block.
type batch struct {
	header    chain.BlockHeader
	proposals []models.WorkerProposal
	techspecs []models.WorkerTechspec
	dropped   [][2]string
	droppedTS [][2]string
}

// Mirror copies governance objects to postgres as blocks are applied, and
// restores them on start. Content is rebuilt from the node and never stored.
type Mirror struct {
	repo    *Repository
	chain   *chain.Database
	workers *worker.Store
	queue   chan batch
	logger  *zap.Logger
}

func NewMirror(d *DB, db *chain.Database, workers *worker.Store) *Mirror {
	return &Mirror{
		repo:    NewRepository(d.DB),
		chain:   db,
		workers: workers,
		queue:   make(chan batch, mirrorQueueSize),
		logger:  logging.WithComponent("mirror"),
	}
}

// Load restores the persisted governance objects and returns the last block
// they reflect, or 0 for an empty database.
func (m *Mirror) Load(ctx context.Context) (uint32, error) {
	state, err := NewStateRepository(m.repo).Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	workers := NewWorkerRepository(m.repo)
	proposals, err := workers.Proposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("load proposals: %w", err)
	}
	techspecs, err := workers.Techspecs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load techspecs: %w", err)
	}
	snap, err := snapshotFromModels(proposals, techspecs)
	if err != nil {
		return 0, err
	}
	if err := m.workers.Restore(snap); err != nil {
		return 0, err
	}

	var head uint32
	if state != nil {
		head = uint32(state.BlockNum)
	}
	m.logger.Info("Loaded governance state", zap.Uint32("block_num", head))
	return head, nil
}

// Attach starts capturing applied blocks. Call Run to write them.
func (m *Mirror) Attach() {
	m.chain.AppliedBlock.Connect(func(n chain.BlockNotice) error {
		m.queue <- m.capture(n.BlockHeader, n.Changed)
		return nil
	})
}

// flush captures changes made outside of block application, such as
// locally broadcast operations, against the current head. It must not be
// used while blocks are being applied.
func (m *Mirror) flush() (batch, bool, error) {
	var header chain.BlockHeader
	var changed []string
	err := m.chain.WithWriteLock(func() error {
		changed = m.chain.TakeChanges()
		props := m.chain.Props.Get()
		header = chain.BlockHeader{
			Number:    props.HeadBlockNumber,
			ID:        props.HeadBlockID,
			Timestamp: props.Time,
			Witness:   props.CurrentWitness,
		}
		return nil
	})
	if err != nil || len(changed) == 0 {
		return batch{}, false, err
	}
	return m.capture(header, changed), true, nil
}

// capture reads the current version of every changed governance object.
// Objects that no longer exist are deleted.
func (m *Mirror) capture(header chain.BlockHeader, changed []string) batch {
	b := batch{header: header}
	seen := make(map[string]bool, len(changed))
	m.chain.WithReadLock(func() {
		for _, key := range changed {
			if seen[key] {
				continue
			}
			seen[key] = true
			switch {
			case strings.HasPrefix(key, proposalPrefix):
				author, permlink, ok := splitKey(strings.TrimPrefix(key, proposalPrefix))
				if !ok {
					continue
				}
				p, found := m.workers.Proposals.Find(author, permlink)
				if !found {
					b.dropped = append(b.dropped, [2]string{author, permlink})
					continue
				}
				approved, _ := m.workers.ApprovedTechspec(p)
				b.proposals = append(b.proposals, proposalModel(p, approved))
			case strings.HasPrefix(key, techspecPrefix):
				author, permlink, ok := splitKey(strings.TrimPrefix(key, techspecPrefix))
				if !ok {
					continue
				}
				ts, found := m.workers.Techspecs.Find(author, permlink)
				if !found {
					b.droppedTS = append(b.droppedTS, [2]string{author, permlink})
					continue
				}
				b.techspecs = append(b.techspecs, techspecModel(ts))
			}
		}
	})
	return b
}

// Run writes captured blocks until ctx is cancelled. A positive flushEvery
// also flushes local changes on that period. Failed writes are retried.
func (m *Mirror) Run(ctx context.Context, flushEvery time.Duration) error {
	var tick <-chan time.Time
	if flushEvery > 0 {
		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			b, ok, err := m.flush()
			if err != nil {
				return fmt.Errorf("flush local changes: %w", err)
			}
			if ok {
				if err := m.persist(ctx, b); err != nil {
					return err
				}
			}
		case b := <-m.queue:
			if err := m.persist(ctx, b); err != nil {
				return err
			}
		}
	}
}

func (m *Mirror) persist(ctx context.Context, b batch) error {
	for {
		err := m.write(ctx, b)
		if err == nil {
			return nil
		}
		m.logger.Error("Failed to persist block", zap.Uint32("block_num", b.header.Number), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(mirrorRetry):
		}
	}
}

func (m *Mirror) write(ctx context.Context, b batch) error {
	return m.repo.Transaction(ctx, func(tx *Repository) error {
		workers := NewWorkerRepository(tx)
		// techspecs first, so a proposal never names a missing approval
		for i := range b.techspecs {
			if err := workers.SaveTechspec(ctx, &b.techspecs[i]); err != nil {
				return err
			}
		}
		for i := range b.proposals {
			if err := workers.SaveProposal(ctx, &b.proposals[i]); err != nil {
				return err
			}
		}
		for _, k := range b.dropped {
			if err := workers.DeleteProposal(ctx, k[0], k[1]); err != nil {
				return err
			}
		}
		for _, k := range b.droppedTS {
			if err := workers.DeleteTechspec(ctx, k[0], k[1]); err != nil {
				return err
			}
		}
		if b.header.Number > 0 && b.header.ID != "" {
			if err := NewBlockRepository(tx).Save(ctx, &models.Block{
				Num:       int64(b.header.Number),
				Hash:      b.header.ID,
				Prev:      b.header.Previous,
				Witness:   b.header.Witness,
				CreatedAt: b.header.Timestamp,
			}); err != nil {
				return err
			}
		}
		return NewStateRepository(tx).Advance(ctx, int64(b.header.Number), b.header.ID)
	})
}

func splitKey(key string) (string, string, bool) {
	author, permlink, ok := strings.Cut(key, "/")
	return author, permlink, ok && author != "" && permlink != ""
}

func proposalModel(p *worker.Proposal, approved *worker.Techspec) models.WorkerProposal {
	row := models.WorkerProposal{
		Author:               p.Author,
		Permlink:             p.Permlink,
		Type:                 p.Type.String(),
		State:                p.State.String(),
		Deposit:              p.Deposit.String(),
		Worker:               p.Worker,
		WorkBeginningTime:    p.WorkBeginningTime.UTC(),
		WorkerPaymentsCount:  int16(p.WorkerPaymentsCount),
		PaymentBeginningTime: p.PaymentBeginningTime.UTC(),
		Created:              p.Created.UTC(),
		Modified:             p.Modified.UTC(),
	}
	if approved != nil {
		row.ApprovedTechspecAuthor = approved.Author
		row.ApprovedTechspecPermlink = approved.Permlink
	}
	return row
}

func techspecModel(ts *worker.Techspec) models.WorkerTechspec {
	return models.WorkerTechspec{
		Author:                 ts.Author,
		Permlink:               ts.Permlink,
		WorkerProposalAuthor:   ts.WorkerProposalAuthor,
		WorkerProposalPermlink: ts.WorkerProposalPermlink,
		Created:                ts.Created.UTC(),
		Modified:               ts.Modified.UTC(),
		SpecificationCost:      ts.SpecificationCost.String(),
		SpecificationEta:       ts.SpecificationEta.UTC(),
		DevelopmentCost:        ts.DevelopmentCost.String(),
		DevelopmentEta:         ts.DevelopmentEta.UTC(),
		PaymentsCount:          int32(ts.PaymentsCount),
		PaymentsInterval:       int64(ts.PaymentsInterval),
	}
}

func snapshotFromModels(proposals []models.WorkerProposal, techspecs []models.WorkerTechspec) (worker.Snapshot, error) {
	snap := worker.Snapshot{Approved: make(map[string]string)}
	for _, row := range techspecs {
		spec, err := protocol.ParseAsset(row.SpecificationCost)
		if err != nil {
			return snap, fmt.Errorf("techspec %s/%s: %w", row.Author, row.Permlink, err)
		}
		dev, err := protocol.ParseAsset(row.DevelopmentCost)
		if err != nil {
			return snap, fmt.Errorf("techspec %s/%s: %w", row.Author, row.Permlink, err)
		}
		snap.Techspecs = append(snap.Techspecs, worker.Techspec{
			Author:                 row.Author,
			Permlink:               row.Permlink,
			WorkerProposalAuthor:   row.WorkerProposalAuthor,
			WorkerProposalPermlink: row.WorkerProposalPermlink,
			Created:                row.Created.UTC(),
			Modified:               row.Modified.UTC(),
			SpecificationCost:      spec,
			SpecificationEta:       row.SpecificationEta.UTC(),
			DevelopmentCost:        dev,
			DevelopmentEta:         row.DevelopmentEta.UTC(),
			PaymentsCount:          uint16(row.PaymentsCount),
			PaymentsInterval:       uint32(row.PaymentsInterval),
		})
	}
	for _, row := range proposals {
		typ, err := protocol.ParseWorkerProposalType(row.Type)
		if err != nil {
			return snap, fmt.Errorf("proposal %s/%s: %w", row.Author, row.Permlink, err)
		}
		state, err := worker.ParseProposalState(row.State)
		if err != nil {
			return snap, fmt.Errorf("proposal %s/%s: %w", row.Author, row.Permlink, err)
		}
		deposit, err := protocol.ParseAsset(row.Deposit)
		if err != nil {
			return snap, fmt.Errorf("proposal %s/%s: %w", row.Author, row.Permlink, err)
		}
		snap.Proposals = append(snap.Proposals, worker.Proposal{
			Author:               row.Author,
			Permlink:             row.Permlink,
			Type:                 typ,
			State:                state,
			Deposit:              deposit,
			Worker:               row.Worker,
			WorkBeginningTime:    row.WorkBeginningTime.UTC(),
			WorkerPaymentsCount:  uint8(row.WorkerPaymentsCount),
			PaymentBeginningTime: row.PaymentBeginningTime.UTC(),
			Created:              row.Created.UTC(),
			Modified:             row.Modified.UTC(),
		})
		if row.ApprovedTechspecAuthor != "" {
			snap.Approved[row.Author+"/"+row.Permlink] = row.ApprovedTechspecAuthor + "/" + row.ApprovedTechspecPermlink
		}
	}
	return snap, nil
}
