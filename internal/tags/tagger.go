package tags

import (
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

const (
	hotTimescale      = 10000
	trendingTimescale = 480000
)

// CalculateScore ranks a comment by the order of magnitude of its rshares,
// shifted by its age so that newer content wins ties.
func CalculateScore(netRshares int64, created time.Time, timescale float64) float64 {
	mod := netRshares / 10000000
	order := math.Log10(math.Max(math.Abs(float64(mod)), 1))
	sign := 0.0
	switch {
	case mod > 0:
		sign = 1
	case mod < 0:
		sign = -1
	}
	return sign*order + float64(created.Unix())/timescale
}

func (s *Store) onComment(c *chain.Comment, change chain.Change) error {
	if change == chain.Removed {
		return s.removeAll(c.ID)
	}
	return s.update(c)
}

// update refreshes every tag record of c. Paid out comments leave the index.
func (s *Store) update(c *chain.Comment) error {
	if c.CashoutTime.Equal(protocol.MaxTime) {
		return s.removeAll(c.ID)
	}

	names, err := CommentTags(c.Category, c.JSONMetadata, c.NetRshares)
	if err != nil {
		s.logger.Debug("ignoring malformed json_metadata",
			zap.String("comment", c.AuthorPermlink()),
			zap.Error(err))
	}

	parent := chain.ID(0)
	if !c.IsRoot() {
		if p, ok := s.db.Comments.Find(c.ParentAuthor, c.ParentPermlink); ok {
			parent = p.ID
		}
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	existing := s.ForComment(c.ID)
	var promoted int64
	for _, t := range existing {
		promoted = max(promoted, t.PromotedBalance)
	}

	for _, t := range existing {
		if !wanted[t.Name] {
			if err := s.removeTag(t); err != nil {
				return err
			}
			continue
		}
		delete(wanted, t.Name)
		if err := s.modifyTag(t, func(t *Tag) { fillTag(t, c, parent) }); err != nil {
			return err
		}
	}

	for _, n := range names {
		if !wanted[n] {
			continue
		}
		name := n
		t, err := s.Tags.Create(func(t *Tag) {
			t.Name = name
			t.PromotedBalance = promoted
			fillTag(t, c, parent)
		})
		if err != nil {
			return fmt.Errorf("create tag %q for %s: %w", name, c.AuthorPermlink(), err)
		}
		if err := s.addStats(t); err != nil {
			return err
		}
	}
	return nil
}

func fillTag(t *Tag, c *chain.Comment, parent chain.ID) {
	t.Comment = c.ID
	t.Parent = parent
	t.Author = c.Author
	t.Created = c.Created
	t.Active = c.Active
	t.Cashout = c.CashoutTime
	t.NetRshares = c.NetRshares
	t.NetVotes = c.NetVotes
	t.Children = c.Children
	t.ChildrenRshares2 = c.ChildrenRshares2
	t.Payout = c.TotalPayoutValue.Amount
	t.IsPost = c.IsRoot()
	t.Hot = CalculateScore(c.NetRshares, c.Created, hotTimescale)
	t.Trending = CalculateScore(c.NetRshares, c.Created, trendingTimescale)
}

func (s *Store) modifyTag(t *Tag, fn func(*Tag)) error {
	if err := s.subStats(t); err != nil {
		return err
	}
	if err := s.Tags.Modify(t, fn); err != nil {
		return err
	}
	return s.addStats(t)
}

func (s *Store) removeTag(t *Tag) error {
	if err := s.subStats(t); err != nil {
		return err
	}
	return s.Tags.Remove(t)
}

func (s *Store) removeAll(comment chain.ID) error {
	for _, t := range s.ForComment(comment) {
		if err := s.removeTag(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addStats(t *Tag) error {
	return s.adjustStats(t, 1)
}

func (s *Store) subStats(t *Tag) error {
	return s.adjustStats(t, -1)
}

// adjustStats adds (sign 1) or withdraws (sign -1) the contribution of t to
// its tag's aggregate and its author's counters.
func (s *Store) adjustStats(t *Tag, sign int) error {
	stats, ok := s.FindStats(t.Name)
	if !ok {
		if sign < 0 {
			return nil
		}
		var err error
		stats, err = s.Stats.Create(func(st *Stats) { st.Name = t.Name })
		if err != nil {
			return err
		}
	}

	err := s.Stats.Modify(stats, func(st *Stats) {
		r2 := &t.ChildrenRshares2
		if sign > 0 {
			st.TotalChildrenRshares2.Add(&st.TotalChildrenRshares2, r2)
		} else if st.TotalChildrenRshares2.Cmp(r2) >= 0 {
			st.TotalChildrenRshares2.Sub(&st.TotalChildrenRshares2, r2)
		} else {
			st.TotalChildrenRshares2 = uint256.Int{}
		}
		st.TotalPayout += int64(sign) * t.Payout
		st.NetVotes += int32(sign) * t.NetVotes
		if t.IsPost {
			st.TopPosts = addCount(st.TopPosts, sign)
		} else {
			st.Comments = addCount(st.Comments, sign)
		}
	})
	if err != nil {
		return err
	}

	if !t.IsPost {
		return nil
	}
	return s.adjustAuthorStats(t.Author, t.Name, sign)
}

func (s *Store) adjustAuthorStats(author, tag string, sign int) error {
	stats, ok := s.AuthorStatsByTag.Find(&AuthorStats{Author: author, Tag: tag})
	if !ok {
		if sign < 0 {
			return nil
		}
		_, err := s.AuthorStats.Create(func(a *AuthorStats) {
			a.Author = author
			a.Tag = tag
			a.TotalPosts = 1
		})
		return err
	}
	return s.AuthorStats.Modify(stats, func(a *AuthorStats) {
		a.TotalPosts = addCount(a.TotalPosts, sign)
	})
}

func addCount(n uint32, sign int) uint32 {
	if sign < 0 {
		if n == 0 {
			return 0
		}
		return n - 1
	}
	return n + 1
}

// Promote adds a GBG payment to the promotion balance of every record of the
// comment. It must run inside a write session.
func (s *Store) Promote(author, permlink string, amount protocol.Asset) error {
	if amount.Symbol != protocol.GBGSymbol {
		return nil
	}
	c, ok := s.db.Comments.Find(author, permlink)
	if !ok {
		return chain.NewMissingObject("comment", "author", author, "permlink", permlink)
	}
	for _, t := range s.ForComment(c.ID) {
		err := s.Tags.Modify(t, func(t *Tag) {
			t.PromotedBalance += amount.Amount
		})
		if err != nil {
			return err
		}
	}
	return nil
}
