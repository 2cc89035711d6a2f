package follow

import (
	"cmp"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/pkg/logging"
)

// FeedSizeLimit is how many entries an account's feed keeps.
const FeedSizeLimit = 500

// What is the set of relations a follow expresses.
type What uint8

const (
	WhatBlog What = 1 << iota
	WhatIgnore
)

type Follow struct {
	chain.ObjectBase

	Follower  string
	Following string
	What      What
}

type FeedEntry struct {
	chain.ObjectBase

	Account          string
	Comment          chain.ID
	RebloggedBy      []string
	FirstRebloggedBy string
	FirstRebloggedOn time.Time
	Reblogs          uint32
	FeedID           uint32
}

type BlogEntry struct {
	chain.ObjectBase

	Account     string
	Comment     chain.ID
	RebloggedOn time.Time
	BlogID      uint32
}

type Reputation struct {
	chain.ObjectBase

	Account    string
	Reputation int64
}

// BlogAuthor counts how often blogger reblogged guest.
type BlogAuthor struct {
	chain.ObjectBase

	Blogger string
	Guest   string
	Count   uint32
}

// Store keeps the follow graph, feeds, blogs and reputations.
type Store struct {
	db     *chain.Database
	logger *zap.Logger

	Follows             *chain.Table[Follow, *Follow]
	ByFollowerFollowing *chain.Index[Follow, *Follow]
	ByFollowingFollower *chain.Index[Follow, *Follow]

	Feed              *chain.Table[FeedEntry, *FeedEntry]
	FeedByAccount     *chain.Index[FeedEntry, *FeedEntry]
	FeedByAccountPost *chain.Index[FeedEntry, *FeedEntry]

	Blog              *chain.Table[BlogEntry, *BlogEntry]
	BlogByAccount     *chain.Index[BlogEntry, *BlogEntry]
	BlogByAccountPost *chain.Index[BlogEntry, *BlogEntry]

	Reputations      *chain.Table[Reputation, *Reputation]
	ReputationByName *chain.Index[Reputation, *Reputation]

	BlogAuthors      *chain.Table[BlogAuthor, *BlogAuthor]
	BlogAuthorsByKey *chain.Index[BlogAuthor, *BlogAuthor]
}

func New(db *chain.Database) *Store {
	s := &Store{
		db:     db,
		logger: logging.GetLogger().With(zap.String("component", "follow")),
	}

	s.Follows = chain.NewTable[Follow, *Follow](db, "follow")
	s.ByFollowerFollowing = s.Follows.AddUniqueIndex("by_follower_following", func(a, b *Follow) bool {
		return cmp.Or(cmp.Compare(a.Follower, b.Follower), cmp.Compare(a.Following, b.Following)) < 0
	})
	s.ByFollowingFollower = s.Follows.AddUniqueIndex("by_following_follower", func(a, b *Follow) bool {
		return cmp.Or(cmp.Compare(a.Following, b.Following), cmp.Compare(a.Follower, b.Follower)) < 0
	})

	s.Feed = chain.NewTable[FeedEntry, *FeedEntry](db, "feed")
	s.FeedByAccount = s.Feed.AddUniqueIndex("by_feed", func(a, b *FeedEntry) bool {
		return cmp.Or(cmp.Compare(a.Account, b.Account), cmp.Compare(b.FeedID, a.FeedID)) < 0
	})
	s.FeedByAccountPost = s.Feed.AddUniqueIndex("by_account_comment", func(a, b *FeedEntry) bool {
		return cmp.Or(cmp.Compare(a.Account, b.Account), cmp.Compare(a.Comment, b.Comment)) < 0
	})

	s.Blog = chain.NewTable[BlogEntry, *BlogEntry](db, "blog")
	s.BlogByAccount = s.Blog.AddUniqueIndex("by_blog", func(a, b *BlogEntry) bool {
		return cmp.Or(cmp.Compare(a.Account, b.Account), cmp.Compare(b.BlogID, a.BlogID)) < 0
	})
	s.BlogByAccountPost = s.Blog.AddUniqueIndex("by_account_comment", func(a, b *BlogEntry) bool {
		return cmp.Or(cmp.Compare(a.Account, b.Account), cmp.Compare(a.Comment, b.Comment)) < 0
	})

	s.Reputations = chain.NewTable[Reputation, *Reputation](db, "reputation")
	s.ReputationByName = s.Reputations.AddUniqueIndex("by_account", func(a, b *Reputation) bool {
		return a.Account < b.Account
	})

	s.BlogAuthors = chain.NewTable[BlogAuthor, *BlogAuthor](db, "blog_author_stats")
	s.BlogAuthorsByKey = s.BlogAuthors.AddUniqueIndex("by_blogger_guest_count", func(a, b *BlogAuthor) bool {
		return cmp.Or(cmp.Compare(a.Blogger, b.Blogger), cmp.Compare(a.Guest, b.Guest)) < 0
	})

	db.Comments.Observe(s.onComment)
	return s
}

// GetAccountReputation returns the reputation of account, zero if unknown.
func (s *Store) GetAccountReputation(account string) int64 {
	if r, ok := s.ReputationByName.Find(&Reputation{Account: account}); ok {
		return r.Reputation
	}
	return 0
}

// GetAccountReputations lists reputations by account name from lowerBound.
func (s *Store) GetAccountReputations(lowerBound string, limit int) []*Reputation {
	var out []*Reputation
	s.ReputationByName.AscendFrom(&Reputation{Account: lowerBound}, func(r *Reputation) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, r)
		return true
	})
	return out
}

// WalkFeed visits the feed of account newest first. With a non-zero start it
// begins at that comment and reports false when the comment is not in the
// feed.
func (s *Store) WalkFeed(account string, start chain.ID, fn func(*FeedEntry) bool) bool {
	pivot := &FeedEntry{Account: account, FeedID: ^uint32(0)}
	if start != 0 {
		e, ok := s.FeedByAccountPost.Find(&FeedEntry{Account: account, Comment: start})
		if !ok {
			return false
		}
		pivot = e
	}
	s.FeedByAccount.AscendFrom(pivot, func(e *FeedEntry) bool {
		if e.Account != account {
			return false
		}
		return fn(e)
	})
	return true
}

// WalkBlog is WalkFeed for the account's blog.
func (s *Store) WalkBlog(account string, start chain.ID, fn func(*BlogEntry) bool) bool {
	pivot := &BlogEntry{Account: account, BlogID: ^uint32(0)}
	if start != 0 {
		e, ok := s.BlogByAccountPost.Find(&BlogEntry{Account: account, Comment: start})
		if !ok {
			return false
		}
		pivot = e
	}
	s.BlogByAccount.AscendFrom(pivot, func(e *BlogEntry) bool {
		if e.Account != account {
			return false
		}
		return fn(e)
	})
	return true
}

// GetFeedEntries returns up to limit entries with FeedID <= startID; a zero
// startID means the newest entry.
func (s *Store) GetFeedEntries(account string, startID uint32, limit int) []*FeedEntry {
	if startID == 0 {
		startID = ^uint32(0)
	}
	var out []*FeedEntry
	s.FeedByAccount.AscendFrom(&FeedEntry{Account: account, FeedID: startID}, func(e *FeedEntry) bool {
		if e.Account != account || len(out) >= limit {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

func (s *Store) GetBlogEntries(account string, startID uint32, limit int) []*BlogEntry {
	if startID == 0 {
		startID = ^uint32(0)
	}
	var out []*BlogEntry
	s.BlogByAccount.AscendFrom(&BlogEntry{Account: account, BlogID: startID}, func(e *BlogEntry) bool {
		if e.Account != account || len(out) >= limit {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// GetBlogAuthors returns how often each guest appears on blogger's blog.
func (s *Store) GetBlogAuthors(blogger string) []*BlogAuthor {
	var out []*BlogAuthor
	s.BlogAuthorsByKey.AscendFrom(&BlogAuthor{Blogger: blogger}, func(b *BlogAuthor) bool {
		if b.Blogger != blogger {
			return false
		}
		out = append(out, b)
		return true
	})
	return out
}

// GetFollowers lists accounts following account with the given relation,
// starting at start.
func (s *Store) GetFollowers(account, start string, what What, limit int) []*Follow {
	var out []*Follow
	s.ByFollowingFollower.AscendFrom(&Follow{Following: account, Follower: start}, func(f *Follow) bool {
		if f.Following != account || len(out) >= limit {
			return false
		}
		if f.What&what != 0 {
			out = append(out, f)
		}
		return true
	})
	return out
}

func (s *Store) GetFollowing(account, start string, what What, limit int) []*Follow {
	var out []*Follow
	s.ByFollowerFollowing.AscendFrom(&Follow{Follower: account, Following: start}, func(f *Follow) bool {
		if f.Follower != account || len(out) >= limit {
			return false
		}
		if f.What&what != 0 {
			out = append(out, f)
		}
		return true
	})
	return out
}

// FollowCount returns the number of blog followers and followed accounts.
func (s *Store) FollowCount(account string) (followers, following int) {
	s.ByFollowingFollower.AscendFrom(&Follow{Following: account}, func(f *Follow) bool {
		if f.Following != account {
			return false
		}
		if f.What&WhatBlog != 0 {
			followers++
		}
		return true
	})
	s.ByFollowerFollowing.AscendFrom(&Follow{Follower: account}, func(f *Follow) bool {
		if f.Follower != account {
			return false
		}
		if f.What&WhatBlog != 0 {
			following++
		}
		return true
	})
	return followers, following
}
