package condenser

import (
	"context"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	maxFollowLimit     = 1000
	maxEntryLimit      = 500
	maxReputationLimit = 1000
)

type followObject struct {
	Follower  string   `json:"follower"`
	Following string   `json:"following"`
	What      []string `json:"what"`
}

func newFollowObject(f *follow.Follow) followObject {
	out := followObject{Follower: f.Follower, Following: f.Following, What: []string{}}
	if f.What&follow.WhatBlog != 0 {
		out.What = append(out.What, "blog")
	}
	if f.What&follow.WhatIgnore != 0 {
		out.What = append(out.What, "ignore")
	}
	return out
}

type followCount struct {
	Account        string `json:"account"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
}

type feedEntry struct {
	Author   string        `json:"author"`
	Permlink string        `json:"permlink"`
	ReblogBy []string      `json:"reblog_by"`
	ReblogOn protocol.Time `json:"reblog_on"`
	EntryID  uint32        `json:"entry_id"`
}

type blogEntry struct {
	Author   string        `json:"author"`
	Permlink string        `json:"permlink"`
	Blog     string        `json:"blog"`
	ReblogOn protocol.Time `json:"reblog_on"`
	EntryID  uint32        `json:"entry_id"`
}

type accountReputation struct {
	Account    string `json:"account"`
	Reputation int64  `json:"reputation"`
}

// FollowAPI serves follow_api: the follow graph, feeds, blogs and
// reputations.
type FollowAPI struct {
	db     *chain.Database
	follow *follow.Store
	logger *zap.Logger
}

func NewFollowAPI(db *chain.Database, followStore *follow.Store) *FollowAPI {
	return &FollowAPI{
		db:     db,
		follow: followStore,
		logger: logging.WithComponent("condenser-api-follow"),
	}
}

type followParams struct {
	account string
	start   string
	what    follow.What
	limit   int
}

func parseFollowParams(p rpc.Params, startName string) (followParams, error) {
	var fp followParams
	if err := p.Require(4, "account", startName, "type", "limit"); err != nil {
		return fp, err
	}
	var err error
	if fp.account, err = p.String(0, "account"); err != nil {
		return fp, err
	}
	if fp.start, err = p.OptString(1, startName, ""); err != nil {
		return fp, err
	}
	kind, err := p.String(2, "type")
	if err != nil {
		return fp, err
	}
	if fp.what, err = follow.ParseWhat([]string{kind}); err != nil || fp.what == 0 {
		return fp, protocol.NewParamError("type", "must be blog or ignore")
	}
	limit, err := p.Uint32(3, "limit", 0)
	if err != nil {
		return fp, err
	}
	if limit > maxFollowLimit {
		return fp, protocol.NewParamError("limit", "must not exceed %d", maxFollowLimit)
	}
	fp.limit = int(limit)
	return fp, nil
}

func followObjects(list []*follow.Follow) []followObject {
	out := make([]followObject, 0, len(list))
	for _, f := range list {
		out = append(out, newFollowObject(f))
	}
	return out
}

// GetFollowers handles get_followers(account, start_follower, type, limit)
func (f *FollowAPI) GetFollowers(ctx context.Context, p rpc.Params) (interface{}, error) {
	fp, err := parseFollowParams(p, "start_follower")
	if err != nil {
		return nil, err
	}
	return read(f.db, func() ([]followObject, error) {
		return followObjects(f.follow.GetFollowers(fp.account, fp.start, fp.what, fp.limit)), nil
	})
}

// GetFollowing handles get_following(account, start_following, type, limit)
func (f *FollowAPI) GetFollowing(ctx context.Context, p rpc.Params) (interface{}, error) {
	fp, err := parseFollowParams(p, "start_following")
	if err != nil {
		return nil, err
	}
	return read(f.db, func() ([]followObject, error) {
		return followObjects(f.follow.GetFollowing(fp.account, fp.start, fp.what, fp.limit)), nil
	})
}

// GetFollowCount handles get_follow_count(account)
func (f *FollowAPI) GetFollowCount(ctx context.Context, p rpc.Params) (interface{}, error) {
	account, err := p.String(0, "account")
	if err != nil {
		return nil, err
	}
	return read(f.db, func() (followCount, error) {
		followers, following := f.follow.FollowCount(account)
		return followCount{Account: account, FollowerCount: followers, FollowingCount: following}, nil
	})
}

func entryParams(p rpc.Params) (string, uint32, int, error) {
	account, err := p.String(0, "account")
	if err != nil {
		return "", 0, 0, err
	}
	start, err := p.Uint32(1, "entry_id", 0)
	if err != nil {
		return "", 0, 0, err
	}
	limit, err := p.Uint32(2, "limit", 10)
	if err != nil {
		return "", 0, 0, err
	}
	if limit > maxEntryLimit {
		return "", 0, 0, protocol.NewParamError("limit", "must not exceed %d", maxEntryLimit)
	}
	return account, start, int(limit), nil
}

// GetFeedEntries handles get_feed_entries(account, entry_id, limit)
func (f *FollowAPI) GetFeedEntries(ctx context.Context, p rpc.Params) (interface{}, error) {
	account, start, limit, err := entryParams(p)
	if err != nil {
		return nil, err
	}
	return read(f.db, func() ([]feedEntry, error) {
		entries := f.follow.GetFeedEntries(account, start, limit)
		out := make([]feedEntry, 0, len(entries))
		for _, e := range entries {
			c, ok := f.db.Comments.Get(e.Comment)
			if !ok {
				continue
			}
			reblogBy := e.RebloggedBy
			if reblogBy == nil {
				reblogBy = []string{}
			}
			out = append(out, feedEntry{
				Author:   c.Author,
				Permlink: c.Permlink,
				ReblogBy: reblogBy,
				ReblogOn: protocol.NewTime(e.FirstRebloggedOn),
				EntryID:  e.FeedID,
			})
		}
		return out, nil
	})
}

// GetBlogEntries handles get_blog_entries(account, entry_id, limit)
func (f *FollowAPI) GetBlogEntries(ctx context.Context, p rpc.Params) (interface{}, error) {
	account, start, limit, err := entryParams(p)
	if err != nil {
		return nil, err
	}
	return read(f.db, func() ([]blogEntry, error) {
		entries := f.follow.GetBlogEntries(account, start, limit)
		out := make([]blogEntry, 0, len(entries))
		for _, e := range entries {
			c, ok := f.db.Comments.Get(e.Comment)
			if !ok {
				continue
			}
			out = append(out, blogEntry{
				Author:   c.Author,
				Permlink: c.Permlink,
				Blog:     e.Account,
				ReblogOn: protocol.NewTime(e.RebloggedOn),
				EntryID:  e.BlogID,
			})
		}
		return out, nil
	})
}

// GetBlogAuthors handles get_blog_authors(blog_account)
func (f *FollowAPI) GetBlogAuthors(ctx context.Context, p rpc.Params) (interface{}, error) {
	blogger, err := p.String(0, "blog_account")
	if err != nil {
		return nil, err
	}
	return read(f.db, func() ([]objects.NameCount, error) {
		authors := f.follow.GetBlogAuthors(blogger)
		out := make([]objects.NameCount, 0, len(authors))
		for _, a := range authors {
			out = append(out, objects.NameCount{Name: a.Guest, Count: a.Count})
		}
		return out, nil
	})
}

// GetAccountReputations handles get_account_reputations(lower_bound_name, limit)
func (f *FollowAPI) GetAccountReputations(ctx context.Context, p rpc.Params) (interface{}, error) {
	lowerBound, err := p.OptString(0, "account_lower_bound", "")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(1, "limit", maxReputationLimit)
	if err != nil {
		return nil, err
	}
	if limit > maxReputationLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxReputationLimit)
	}
	return read(f.db, func() ([]accountReputation, error) {
		reps := f.follow.GetAccountReputations(lowerBound, int(limit))
		out := make([]accountReputation, 0, len(reps))
		for _, r := range reps {
			out = append(out, accountReputation{Account: r.Account, Reputation: r.Reputation})
		}
		return out, nil
	})
}
