package condenser

import (
	"context"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/pkg/logging"
)

// DiscussionsAPI serves the get_discussions_by_* family.
type DiscussionsAPI struct {
	db     *chain.Database
	engine *discussions.Engine
	logger *zap.Logger
}

func NewDiscussionsAPI(db *chain.Database, engine *discussions.Engine) *DiscussionsAPI {
	return &DiscussionsAPI{
		db:     db,
		engine: engine,
		logger: logging.WithComponent("condenser-api-discussions"),
	}
}

func query(p rpc.Params) (discussions.Query, error) {
	var q discussions.Query
	if err := p.Decode(0, "query", &q); err != nil {
		return q, err
	}
	return q, nil
}

func (d *DiscussionsAPI) list(ctx context.Context, p rpc.Params, fn func(discussions.Query) ([]*objects.Discussion, error)) (interface{}, error) {
	q, err := query(p)
	if err != nil {
		return nil, err
	}
	var out []*objects.Discussion
	d.db.WithReadLock(func() {
		out, err = fn(q)
	})
	if err != nil {
		return nil, err
	}
	watch(ctx, out...)
	return out, nil
}

// Ranked returns the handler for one ranking.
func (d *DiscussionsAPI) Ranked(ranking discussions.Ranking) rpc.Handler {
	return func(ctx context.Context, p rpc.Params) (interface{}, error) {
		return d.list(ctx, p, func(q discussions.Query) ([]*objects.Discussion, error) {
			return d.engine.Discussions(ranking, q)
		})
	}
}

// GetDiscussionsByFeed handles get_discussions_by_feed(query)
func (d *DiscussionsAPI) GetDiscussionsByFeed(ctx context.Context, p rpc.Params) (interface{}, error) {
	return d.list(ctx, p, d.engine.GetDiscussionsByFeed)
}

// GetDiscussionsByBlog handles get_discussions_by_blog(query)
func (d *DiscussionsAPI) GetDiscussionsByBlog(ctx context.Context, p rpc.Params) (interface{}, error) {
	return d.list(ctx, p, d.engine.GetDiscussionsByBlog)
}

// GetDiscussionsByComments handles get_discussions_by_comments(query)
func (d *DiscussionsAPI) GetDiscussionsByComments(ctx context.Context, p rpc.Params) (interface{}, error) {
	return d.list(ctx, p, d.engine.GetDiscussionsByComments)
}
