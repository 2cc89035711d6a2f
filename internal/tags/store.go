package tags

import (
	"cmp"
	"math"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/pkg/logging"
)

// Tag places one comment under one tag. Every ranking index orders these
// records.
type Tag struct {
	chain.ObjectBase

	Name             string
	Created          time.Time
	Active           time.Time
	Cashout          time.Time
	NetRshares       int64
	NetVotes         int32
	Children         uint32
	Hot              float64
	Trending         float64
	PromotedBalance  int64
	ChildrenRshares2 uint256.Int
	Payout           int64
	Author           string
	Parent           chain.ID
	Comment          chain.ID
	IsPost           bool
}

// Stats aggregates every record of a tag.
type Stats struct {
	chain.ObjectBase

	Name                  string
	TotalChildrenRshares2 uint256.Int
	TotalPayout           int64
	NetVotes              int32
	TopPosts              uint32
	Comments              uint32
}

// AuthorStats counts the root posts an author filed under a tag.
type AuthorStats struct {
	chain.ObjectBase

	Author     string
	Tag        string
	TotalPosts uint32
}

type TagIndex = chain.Index[Tag, *Tag]

// Store owns the tag tables and keeps them in line with the comments table.
type Store struct {
	db     *chain.Database
	logger *zap.Logger

	Tags *chain.Table[Tag, *Tag]

	ByComment           *TagIndex
	ByParentCreated     *TagIndex
	ByParentActive      *TagIndex
	ByParentPromoted    *TagIndex
	ByParentNetVotes    *TagIndex
	ByParentChildren    *TagIndex
	ByParentHot         *TagIndex
	ByParentTrending    *TagIndex
	ByCashout           *TagIndex
	ByNetRshares        *TagIndex
	ByRewardFundRshares *TagIndex

	Stats           *chain.Table[Stats, *Stats]
	StatsByTag      *chain.Index[Stats, *Stats]
	StatsByTrending *chain.Index[Stats, *Stats]

	AuthorStats             *chain.Table[AuthorStats, *AuthorStats]
	AuthorStatsByTag        *chain.Index[AuthorStats, *AuthorStats]
	AuthorStatsByPostsCount *chain.Index[AuthorStats, *AuthorStats]
}

// Rank functions order two records by one ranking, best first.
func RankCreated(a, b *Tag) int    { return b.Created.Compare(a.Created) }
func RankActive(a, b *Tag) int     { return b.Active.Compare(a.Active) }
func RankPromoted(a, b *Tag) int   { return cmp.Compare(b.PromotedBalance, a.PromotedBalance) }
func RankNetVotes(a, b *Tag) int   { return cmp.Compare(b.NetVotes, a.NetVotes) }
func RankChildren(a, b *Tag) int   { return cmp.Compare(b.Children, a.Children) }
func RankHot(a, b *Tag) int        { return cmp.Compare(b.Hot, a.Hot) }
func RankTrending(a, b *Tag) int   { return cmp.Compare(b.Trending, a.Trending) }
func RankCashout(a, b *Tag) int    { return a.Cashout.Compare(b.Cashout) }
func RankNetRshares(a, b *Tag) int { return cmp.Compare(b.NetRshares, a.NetRshares) }

func byParent(rank func(a, b *Tag) int) func(a, b *Tag) bool {
	return func(a, b *Tag) bool {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Parent, b.Parent),
			rank(a, b),
			cmp.Compare(a.ID, b.ID),
		) < 0
	}
}

// New creates the tag tables on db and subscribes to comment changes.
func New(db *chain.Database) *Store {
	s := &Store{
		db:     db,
		logger: logging.GetLogger().With(zap.String("component", "tags")),
		Tags:   chain.NewTable[Tag, *Tag](db, "tag"),
	}

	s.ByComment = s.Tags.AddUniqueIndex("by_comment", func(a, b *Tag) bool {
		return cmp.Or(
			cmp.Compare(a.Comment, b.Comment),
			cmp.Compare(a.Name, b.Name),
		) < 0
	})
	s.ByParentCreated = s.Tags.AddIndex("by_parent_created", byParent(RankCreated))
	s.ByParentActive = s.Tags.AddIndex("by_parent_active", byParent(RankActive))
	s.ByParentPromoted = s.Tags.AddIndex("by_parent_promoted", byParent(RankPromoted))
	s.ByParentNetVotes = s.Tags.AddIndex("by_parent_net_votes", byParent(RankNetVotes))
	s.ByParentChildren = s.Tags.AddIndex("by_parent_children", byParent(RankChildren))
	s.ByParentHot = s.Tags.AddIndex("by_parent_hot", byParent(RankHot))
	s.ByParentTrending = s.Tags.AddIndex("by_parent_trending", byParent(RankTrending))
	s.ByCashout = s.Tags.AddIndex("by_cashout", func(a, b *Tag) bool {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			RankCashout(a, b),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	s.ByNetRshares = s.Tags.AddIndex("by_net_rshares", func(a, b *Tag) bool {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			RankNetRshares(a, b),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	s.ByRewardFundRshares = s.Tags.AddIndex("by_reward_fund_net_rshares", func(a, b *Tag) bool {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			compareBoolDesc(a.IsPost, b.IsPost),
			RankNetRshares(a, b),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})

	s.Stats = chain.NewTable[Stats, *Stats](db, "tag_stats")
	s.StatsByTag = s.Stats.AddUniqueIndex("by_tag", func(a, b *Stats) bool {
		return a.Name < b.Name
	})
	s.StatsByTrending = s.Stats.AddIndex("by_trending", func(a, b *Stats) bool {
		return cmp.Or(
			b.TotalChildrenRshares2.Cmp(&a.TotalChildrenRshares2),
			cmp.Compare(a.Name, b.Name),
		) < 0
	})

	s.AuthorStats = chain.NewTable[AuthorStats, *AuthorStats](db, "author_tag_stats")
	s.AuthorStatsByTag = s.AuthorStats.AddUniqueIndex("by_author_tag", func(a, b *AuthorStats) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			cmp.Compare(a.Tag, b.Tag),
		) < 0
	})
	s.AuthorStatsByPostsCount = s.AuthorStats.AddIndex("by_author_posts_tag", func(a, b *AuthorStats) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			cmp.Compare(b.TotalPosts, a.TotalPosts),
			cmp.Compare(a.Tag, b.Tag),
		) < 0
	})

	db.Comments.Observe(s.onComment)
	return s
}

func compareBoolDesc(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// Find returns the record of comment under tag.
func (s *Store) Find(comment chain.ID, tag string) (*Tag, bool) {
	return s.ByComment.Find(&Tag{Comment: comment, Name: tag})
}

// ForComment returns every record of a comment ordered by tag name.
func (s *Store) ForComment(comment chain.ID) []*Tag {
	var out []*Tag
	s.ByComment.AscendFrom(&Tag{Comment: comment}, func(t *Tag) bool {
		if t.Comment != comment {
			return false
		}
		out = append(out, t)
		return true
	})
	return out
}

// PromotedBalance returns the promotion of a comment, taken from its first
// tag record.
func (s *Store) PromotedBalance(comment chain.ID) int64 {
	var balance int64
	s.ByComment.AscendFrom(&Tag{Comment: comment}, func(t *Tag) bool {
		if t.Comment == comment {
			balance = t.PromotedBalance
		}
		return false
	})
	return balance
}

// HasAnyTag reports whether comment is filed under one of tags.
func (s *Store) HasAnyTag(comment chain.ID, tags []string) bool {
	for _, tag := range tags {
		if _, ok := s.Find(comment, tag); ok {
			return true
		}
	}
	return false
}

// FindStats returns the aggregate of tag.
func (s *Store) FindStats(tag string) (*Stats, bool) {
	return s.StatsByTag.Find(&Stats{Name: tag})
}

// MaxScore is the pivot for descending score scans.
const MaxScore = math.MaxFloat64
