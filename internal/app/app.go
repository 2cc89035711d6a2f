// Package app wires the stores, the syncer and the governance mirror shared by
// the server and indexer commands.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/golos/golosmind/internal/api"
	"github.com/golos/golosmind/internal/cache"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/db"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/golosd"
	"github.com/golos/golosmind/internal/indexer"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/state"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/config"
	"github.com/golos/golosmind/pkg/logging"
)

// App holds one in-memory chain store and everything built on it.
type App struct {
	Config  *config.Config
	Chain   *chain.Database
	Tags    *tags.Store
	Follow  *follow.Store
	Engine  *discussions.Engine
	Market  *market.Market
	State   *state.Service
	Workers *worker.Store
	Cache   *cache.Cache

	store  *db.DB
	mirror *db.Mirror
	sync   *indexer.Sync
	logger *zap.Logger
}

// New builds the stores. withSync attaches a syncer unless the config runs
// standalone; withCache dials the response cache.
func New(cfg *config.Config, withSync, withCache bool) (*App, error) {
	a := &App{
		Config: cfg,
		Chain:  chain.NewDatabase(),
		logger: logging.WithComponent("app"),
	}
	a.Tags = tags.New(a.Chain)
	a.Follow = follow.New(a.Chain)
	a.Workers = worker.New(a.Chain)
	if cfg.Server.Standalone {
		a.Chain.RegisterContentEvaluators()
	}
	a.Engine = discussions.New(a.Chain, a.Tags, a.Follow)
	a.Market = market.New(a.Chain)
	a.State = state.New(a.Chain, a.Follow, a.Engine, a.Market)

	if withCache {
		c, err := cache.New(&cfg.Redis, &cfg.Cache)
		if err != nil {
			return nil, err
		}
		a.Cache = c
	}

	if cfg.Database.URL != "" {
		store, err := db.New(&cfg.Database, cfg.Logging.Level)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.mirror = db.NewMirror(store, a.Chain, a.Workers)
	}

	if withSync && !cfg.Server.Standalone {
		node, err := golosd.New(&cfg.Node)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sync = indexer.NewSync(&cfg.Indexer, node, a.Chain, a.Follow, a.Tags)
	}
	return a, nil
}

// Services returns what the API router serves from.
func (a *App) Services() api.Services {
	return api.Services{
		DB:         a.Chain,
		Engine:     a.Engine,
		Follow:     a.Follow,
		State:      a.State,
		Market:     a.Market,
		Workers:    a.Workers,
		Cache:      a.Cache,
		Standalone: a.Config.Server.Standalone,
	}
}

// Load migrates the database and restores persisted governance objects.
func (a *App) Load(ctx context.Context) error {
	if a.store == nil {
		a.logger.Info("No database configured, governance state is not persisted")
		return nil
	}
	if err := a.store.Migrate(ctx); err != nil {
		return err
	}
	head, err := a.mirror.Load(ctx)
	if err != nil {
		return err
	}
	if a.sync != nil {
		a.sync.SetGovernanceHead(head)
	}
	a.mirror.Attach()
	return nil
}

// Run syncs and mirrors until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.mirror != nil {
		flushEvery := a.Config.Indexer.PollInterval
		if a.sync != nil {
			flushEvery = 0
		}
		g.Go(func() error { return a.mirror.Run(ctx, flushEvery) })
	}
	if a.sync != nil {
		g.Go(func() error { return a.sync.Run(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.Warn("Failed to close cache", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
