package discussions

import (
	"math"
	"time"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
)

// Ranking names a discussion ordering.
type Ranking string

const (
	Trending      Ranking = "trending"
	Hot           Ranking = "hot"
	Promoted      Ranking = "promoted"
	Created       Ranking = "created"
	Active        Ranking = "active"
	Cashout       Ranking = "cashout"
	Payout        Ranking = "payout"
	Votes         Ranking = "votes"
	Children      Ranking = "children"
	PostPayout    Ranking = "post_payout"
	CommentPayout Ranking = "comment_payout"
)

// cashoutLookback is how far before now a cashout listing starts.
const cashoutLookback = 60 * time.Minute

// strategy describes how one ranking walks the tag index.
type strategy struct {
	index func(*tags.Store) *tags.TagIndex
	// start builds the first key of a scan over tag.
	start func(tag string, parent chain.ID, now time.Time) *tags.Tag
	rank  func(a, b *tags.Tag) int
	// exclude drops comments the ranking never lists.
	exclude func(c *chain.Comment) bool
	tagExit func(t *tags.Tag) bool

	// parentKeyed orderings stop at the first record of another parent;
	// the others skip such records, unless ignoreParent is set.
	parentKeyed  bool
	ignoreParent bool
	// partitioned scans stop when IsPost differs from the start key.
	partitioned bool
}

func notPositiveRshares(c *chain.Comment) bool { return c.NetRshares <= 0 }

func noChildrenRshares2(c *chain.Comment) bool { return c.ChildrenRshares2.IsZero() }

func parentStart(fill func(t *tags.Tag)) func(string, chain.ID, time.Time) *tags.Tag {
	return func(tag string, parent chain.ID, _ time.Time) *tags.Tag {
		t := &tags.Tag{Name: tag, Parent: parent}
		fill(t)
		return t
	}
}

var strategies = map[Ranking]strategy{
	Trending: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentTrending },
		start:       parentStart(func(t *tags.Tag) { t.Trending = tags.MaxScore }),
		rank:        tags.RankTrending,
		exclude:     notPositiveRshares,
		parentKeyed: true,
	},
	Hot: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentHot },
		start:       parentStart(func(t *tags.Tag) { t.Hot = tags.MaxScore }),
		rank:        tags.RankHot,
		exclude:     notPositiveRshares,
		parentKeyed: true,
	},
	Promoted: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentPromoted },
		start:       parentStart(func(t *tags.Tag) { t.PromotedBalance = chain.MaxShareSupply }),
		rank:        tags.RankPromoted,
		exclude:     noChildrenRshares2,
		tagExit:     func(t *tags.Tag) bool { return t.PromotedBalance == 0 },
		parentKeyed: true,
	},
	Created: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentCreated },
		start:       parentStart(func(t *tags.Tag) { t.Created = protocol.MaxTime }),
		rank:        tags.RankCreated,
		parentKeyed: true,
	},
	Active: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentActive },
		start:       parentStart(func(t *tags.Tag) { t.Active = protocol.MaxTime }),
		rank:        tags.RankActive,
		parentKeyed: true,
	},
	Votes: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentNetVotes },
		start:       parentStart(func(t *tags.Tag) { t.NetVotes = math.MaxInt32 }),
		rank:        tags.RankNetVotes,
		parentKeyed: true,
	},
	Children: {
		index:       func(s *tags.Store) *tags.TagIndex { return s.ByParentChildren },
		start:       parentStart(func(t *tags.Tag) { t.Children = math.MaxInt32 }),
		rank:        tags.RankChildren,
		parentKeyed: true,
	},
	Cashout: {
		index: func(s *tags.Store) *tags.TagIndex { return s.ByCashout },
		start: func(tag string, _ chain.ID, now time.Time) *tags.Tag {
			return &tags.Tag{Name: tag, Cashout: now.Add(-cashoutLookback)}
		},
		rank:    tags.RankCashout,
		exclude: noChildrenRshares2,
	},
	Payout: {
		index: func(s *tags.Store) *tags.TagIndex { return s.ByNetRshares },
		start: func(tag string, _ chain.ID, _ time.Time) *tags.Tag {
			return &tags.Tag{Name: tag, NetRshares: math.MaxInt64}
		},
		rank:         tags.RankNetRshares,
		exclude:      noChildrenRshares2,
		ignoreParent: true,
	},
	PostPayout: {
		index: func(s *tags.Store) *tags.TagIndex { return s.ByRewardFundRshares },
		start: func(tag string, _ chain.ID, _ time.Time) *tags.Tag {
			return &tags.Tag{Name: tag, IsPost: true, NetRshares: math.MaxInt64}
		},
		rank:         tags.RankNetRshares,
		exclude:      notPositiveRshares,
		ignoreParent: true,
		partitioned:  true,
	},
	CommentPayout: {
		index: func(s *tags.Store) *tags.TagIndex { return s.ByRewardFundRshares },
		start: func(tag string, _ chain.ID, _ time.Time) *tags.Tag {
			return &tags.Tag{Name: tag, IsPost: false, NetRshares: math.MaxInt64}
		},
		rank:         tags.RankNetRshares,
		exclude:      notPositiveRshares,
		ignoreParent: true,
		partitioned:  true,
	},
}

// ParseRanking maps a ranking name onto a Ranking.
func ParseRanking(name string) (Ranking, bool) {
	r := Ranking(name)
	_, ok := strategies[r]
	return r, ok
}
