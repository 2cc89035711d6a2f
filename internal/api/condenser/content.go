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

// ContentAPI serves single comments, replies and votes.
type ContentAPI struct {
	db     *chain.Database
	engine *discussions.Engine
	logger *zap.Logger
}

func NewContentAPI(db *chain.Database, engine *discussions.Engine) *ContentAPI {
	return &ContentAPI{
		db:     db,
		engine: engine,
		logger: logging.WithComponent("condenser-api-content"),
	}
}

func authorPermlink(p rpc.Params) (string, string, error) {
	if err := p.Require(2, "author", "permlink"); err != nil {
		return "", "", err
	}
	author, err := p.String(0, "author")
	if err != nil {
		return "", "", err
	}
	permlink, err := p.String(1, "permlink")
	if err != nil {
		return "", "", err
	}
	return author, permlink, nil
}

// GetContent handles get_content(author, permlink)
func (c *ContentAPI) GetContent(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, permlink, err := authorPermlink(p)
	if err != nil {
		return nil, err
	}
	var d *objects.Discussion
	c.db.WithReadLock(func() {
		d = c.engine.GetContent(author, permlink)
	})
	watch(ctx, d)
	return d, nil
}

// GetContentReplies handles get_content_replies(author, permlink)
func (c *ContentAPI) GetContentReplies(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, permlink, err := authorPermlink(p)
	if err != nil {
		return nil, err
	}
	var replies []*objects.Discussion
	c.db.WithReadLock(func() {
		replies = c.engine.GetContentReplies(author, permlink)
	})
	watch(ctx, replies...)
	return replies, nil
}

// GetActiveVotes handles get_active_votes(author, permlink)
func (c *ContentAPI) GetActiveVotes(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, permlink, err := authorPermlink(p)
	if err != nil {
		return nil, err
	}
	return read(c.db, func() ([]objects.VoteState, error) {
		return c.engine.GetActiveVotes(author, permlink)
	})
}

// GetAccountVotes handles get_account_votes(voter)
func (c *ContentAPI) GetAccountVotes(ctx context.Context, p rpc.Params) (interface{}, error) {
	voter, err := p.String(0, "voter")
	if err != nil {
		return nil, err
	}
	return read(c.db, func() ([]objects.AccountVote, error) {
		return c.engine.GetAccountVotes(voter)
	})
}

// GetRepliesByLastUpdate handles
// get_replies_by_last_update(start_parent_author, start_permlink, limit)
func (c *ContentAPI) GetRepliesByLastUpdate(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, err := p.String(0, "start_parent_author")
	if err != nil {
		return nil, err
	}
	permlink, err := p.OptString(1, "start_permlink", "")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(2, "limit", 20)
	if err != nil {
		return nil, err
	}
	var out []*objects.Discussion
	c.db.WithReadLock(func() {
		out, err = c.engine.GetRepliesByLastUpdate(author, permlink, limit)
	})
	if err != nil {
		return nil, err
	}
	watch(ctx, out...)
	return out, nil
}

// GetDiscussionsByAuthorBeforeDate handles
// get_discussions_by_author_before_date(author, start_permlink, before_date, limit)
func (c *ContentAPI) GetDiscussionsByAuthorBeforeDate(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, err := p.String(0, "author")
	if err != nil {
		return nil, err
	}
	permlink, err := p.OptString(1, "start_permlink", "")
	if err != nil {
		return nil, err
	}
	before, err := p.Time(2, "before_date")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(3, "limit", 20)
	if err != nil {
		return nil, err
	}
	var out []*objects.Discussion
	c.db.WithReadLock(func() {
		out, err = c.engine.GetDiscussionsByAuthorBeforeDate(author, permlink, before, limit)
	})
	if err != nil {
		return nil, err
	}
	watch(ctx, out...)
	return out, nil
}
