package discussions

import (
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/protocol"
)

var errNoFollow = chain.NewLogicError("follow_plugin_disabled", "node is not running the follow plugin")

// followQuery checks the parts of q shared by feed and blog listings and
// resolves the start comment.
func (e *Engine) followQuery(q *Query) (chain.ID, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	if e.follow == nil {
		return 0, errNoFollow
	}
	if len(q.SelectAuthors) == 0 {
		return 0, protocol.NewParamError("select_authors", "no such author to select feed from")
	}
	if q.StartAuthor == "" && q.StartPermlink == "" {
		return 0, nil
	}
	c, ok := e.db.Comments.Find(q.StartAuthor, q.StartPermlink)
	if !ok {
		return 0, chain.NewMissingObject("comment", "author", q.StartAuthor, "permlink", q.StartPermlink)
	}
	return c.ID, nil
}

func (e *Engine) matchesSelectedTags(q *Query, comment chain.ID) bool {
	return len(q.SelectTags) == 0 || e.tags.HasAnyTag(comment, q.Tags())
}

// GetDiscussionsByFeed lists the feeds of the selected accounts.
func (e *Engine) GetDiscussionsByFeed(q Query) ([]*objects.Discussion, error) {
	start, err := e.followQuery(&q)
	if err != nil {
		return nil, err
	}

	out := []*objects.Discussion{}
	for _, name := range q.SelectAuthors {
		if _, ok := e.db.Accounts.Find(name); !ok {
			return nil, chain.NewMissingObject("account", "name", name)
		}
		ok := e.follow.WalkFeed(name, start, func(entry *follow.FeedEntry) bool {
			if len(out) >= int(q.Limit) {
				return false
			}
			if !e.matchesSelectedTags(&q, entry.Comment) {
				return true
			}
			d, err := e.GetDiscussion(entry.Comment, q.TruncateBody)
			if err != nil {
				e.logger.Warn("skipping feed entry", zap.String("account", name), zap.Error(err))
				return true
			}
			if entry.FirstRebloggedBy != "" {
				d.RebloggedBy = append([]string{}, entry.RebloggedBy...)
				d.FirstRebloggedBy = entry.FirstRebloggedBy
				on := protocol.NewTime(entry.FirstRebloggedOn)
				d.FirstRebloggedOn = &on
			}
			out = append(out, d)
			return true
		})
		if !ok {
			return nil, chain.NewLogicError("comment_not_in_feed", "Comment is not in account's feed")
		}
	}
	return out, nil
}

// GetDiscussionsByBlog lists the blogs of the selected accounts.
func (e *Engine) GetDiscussionsByBlog(q Query) ([]*objects.Discussion, error) {
	start, err := e.followQuery(&q)
	if err != nil {
		return nil, err
	}

	out := []*objects.Discussion{}
	for _, name := range q.SelectAuthors {
		if _, ok := e.db.Accounts.Find(name); !ok {
			return nil, chain.NewMissingObject("account", "name", name)
		}
		ok := e.follow.WalkBlog(name, start, func(entry *follow.BlogEntry) bool {
			if len(out) >= int(q.Limit) {
				return false
			}
			if !e.matchesSelectedTags(&q, entry.Comment) {
				return true
			}
			d, err := e.GetDiscussion(entry.Comment, q.TruncateBody)
			if err != nil {
				e.logger.Warn("skipping blog entry", zap.String("account", name), zap.Error(err))
				return true
			}
			if !entry.RebloggedOn.IsZero() {
				on := protocol.NewTime(entry.RebloggedOn)
				d.FirstRebloggedOn = &on
			}
			out = append(out, d)
			return true
		})
		if !ok {
			return nil, chain.NewLogicError("comment_not_in_blog", "Comment is not in account's blog")
		}
	}
	return out, nil
}

// GetDiscussionsByComments lists the replies written by start_author,
// newest update first.
func (e *Engine) GetDiscussionsByComments(q Query) ([]*objects.Discussion, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.StartAuthor == "" {
		return nil, protocol.NewParamError("start_author", "must get comments for a specific author")
	}

	pivot := &chain.Comment{Author: q.StartAuthor, LastUpdate: protocol.MaxTime}
	if q.StartPermlink != "" {
		c, ok := e.db.Comments.Find(q.StartAuthor, q.StartPermlink)
		if !ok {
			return nil, chain.NewLogicError("comment_not_in_comments", "Comment is not in account's comments")
		}
		pivot = c
	}

	out := []*objects.Discussion{}
	e.db.Comments.ByAuthorLastUpdate.AscendFrom(pivot, func(c *chain.Comment) bool {
		if len(out) >= int(q.Limit) || c.Author != q.StartAuthor {
			return false
		}
		if c.IsRoot() || !q.selectsAuthor(c.Author) {
			return true
		}
		out = append(out, e.discussion(c, q.TruncateBody))
		return true
	})
	return out, nil
}
