package discussions

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/pkg/logging"
)

// Engine answers discussion listings and content lookups. Its methods read
// the database without locking; callers hold the read lock.
type Engine struct {
	db     *chain.Database
	tags   *tags.Store
	follow *follow.Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates an engine. followStore may be nil, in which case feeds, blogs
// and reputations are unavailable.
func New(db *chain.Database, tagStore *tags.Store, followStore *follow.Store) *Engine {
	return &Engine{
		db:     db,
		tags:   tagStore,
		follow: followStore,
		logger: logging.GetLogger().With(zap.String("component", "discussions")),
		now:    time.Now,
	}
}

// SetClock replaces the wall clock used by cashout listings.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

type match struct {
	tag        *tags.Tag
	discussion *objects.Discussion
}

// Discussions lists discussions by ranking. With several selected tags the
// per-tag results are merged, ordered by the ranking and cut to the limit.
func (e *Engine) Discussions(ranking Ranking, q Query) ([]*objects.Discussion, error) {
	s, ok := strategies[ranking]
	if !ok {
		return nil, protocol.NewParamError("ranking", "unknown ranking %q", ranking)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	parent := chain.ID(0)
	if q.HasParent() {
		c, ok := e.db.Comments.Find(q.ParentAuthor, q.ParentPermlink)
		if !ok {
			return nil, chain.NewMissingObject("comment", "author", q.ParentAuthor, "permlink", q.ParentPermlink)
		}
		parent = c.ID
	}

	var start *chain.Comment
	if q.HasStart() {
		c, ok := e.db.Comments.Find(q.StartAuthor, q.StartPermlink)
		if !ok {
			return nil, chain.NewMissingObject("comment", "author", q.StartAuthor, "permlink", q.StartPermlink)
		}
		start = c
	}

	selected := q.Tags()
	var found []match
	for _, tag := range selected {
		found = append(found, e.scan(s, tag, parent, start, &q)...)
	}

	if len(selected) > 1 {
		slices.SortStableFunc(found, func(a, b match) int {
			return cmp.Or(s.rank(a.tag, b.tag), cmp.Compare(a.tag.Comment, b.tag.Comment))
		})
		found = slices.CompactFunc(found, func(a, b match) bool {
			return a.tag.Comment == b.tag.Comment
		})
	}
	if len(found) > int(q.Limit) {
		found = found[:q.Limit]
	}

	out := make([]*objects.Discussion, len(found))
	for i, m := range found {
		out[i] = m.discussion
	}
	return out, nil
}

func (e *Engine) scan(s strategy, tag string, parent chain.ID, start *chain.Comment, q *Query) []match {
	pivot := s.start(tag, parent, e.now())
	isPost := pivot.IsPost
	if start != nil {
		if rec, ok := e.tags.Find(start.ID, tag); ok {
			pivot = rec
		}
	}

	var (
		out      []match
		count    = int(q.Limit)
		filtered int
		failed   int
	)
	s.index(e.tags).AscendFrom(pivot, func(t *tags.Tag) bool {
		if count <= 0 || t.Name != tag {
			return false
		}
		if s.partitioned && t.IsPost != isPost {
			return false
		}
		if !s.ignoreParent && t.Parent != parent {
			return !s.parentKeyed
		}

		c, d, err := e.candidate(t, q.TruncateBody)
		if err != nil {
			failed++
			e.logger.Warn("skipping discussion",
				zap.String("tag", tag),
				zap.Int64("comment", int64(t.Comment)),
				zap.Error(err))
			return true
		}

		switch {
		case e.filtered(s, q, c):
			filtered++
		case s.tagExit != nil && s.tagExit(t):
			return false
		default:
			out = append(out, match{tag: t, discussion: d})
			count--
		}
		return true
	})

	if filtered > 0 || failed > 0 {
		e.logger.Debug("discussion scan finished",
			zap.String("tag", tag),
			zap.Int("accepted", len(out)),
			zap.Int("filtered", filtered),
			zap.Int("failed", failed))
	}
	return out
}

func (e *Engine) candidate(t *tags.Tag, truncate uint32) (c *chain.Comment, d *objects.Discussion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building discussion: %v", r)
		}
	}()

	c, ok := e.db.Comments.Get(t.Comment)
	if !ok {
		return nil, nil, chain.NewMissingObject("comment", "id", fmt.Sprint(t.Comment))
	}
	d = e.discussion(c, truncate)
	d.Promoted = protocol.NewAsset(t.PromotedBalance, protocol.GBGSymbol)
	return c, d, nil
}

// filtered reports whether c is left out of a listing: by author selection,
// by filter_tags on its metadata or category, or by the ranking's own rule.
func (e *Engine) filtered(s strategy, q *Query, c *chain.Comment) bool {
	if !q.selectsAuthor(c.Author) {
		return true
	}
	if len(q.FilterTags) > 0 {
		meta, _ := tags.ParseMetadata(c.JSONMetadata)
		for _, tag := range meta.Tags {
			if q.filtersTag(tags.Normalize(tag)) {
				return true
			}
		}
		if q.filtersTag(tags.Normalize(c.Category)) {
			return true
		}
	}
	return s.exclude != nil && s.exclude(c)
}
