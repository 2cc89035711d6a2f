package discussions

import (
	"time"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// GetContent returns the discussion at author/permlink, or an empty
// discussion when there is none.
func (e *Engine) GetContent(author, permlink string) *objects.Discussion {
	c, ok := e.db.Comments.Find(author, permlink)
	if !ok {
		return objects.EmptyDiscussion()
	}
	return e.content(c)
}

// GetContentReplies returns the direct replies of author/permlink in the
// order they were created.
func (e *Engine) GetContentReplies(author, permlink string) []*objects.Discussion {
	replies := e.db.Comments.Replies(author, permlink)
	out := make([]*objects.Discussion, 0, len(replies))
	for _, c := range replies {
		out = append(out, e.content(c))
	}
	return out
}

func (e *Engine) GetActiveVotes(author, permlink string) ([]objects.VoteState, error) {
	c, ok := e.db.Comments.Find(author, permlink)
	if !ok {
		return nil, chain.NewMissingObject("comment", "author", author, "permlink", permlink)
	}
	return e.activeVotes(c), nil
}

// GetAccountVotes lists every vote cast by voter.
func (e *Engine) GetAccountVotes(voter string) ([]objects.AccountVote, error) {
	if _, ok := e.db.Accounts.Find(voter); !ok {
		return nil, chain.NewMissingObject("account", "name", voter)
	}
	votes := e.db.Votes.ByVoter(voter)
	out := make([]objects.AccountVote, 0, len(votes))
	for _, v := range votes {
		c, ok := e.db.Comments.Get(v.Comment)
		if !ok {
			continue
		}
		out = append(out, objects.AccountVote{
			Authorperm: c.AuthorPermlink(),
			Weight:     v.Weight,
			Rshares:    v.Rshares,
			Percent:    v.VotePercent,
			Time:       protocol.NewTime(v.LastUpdate),
		})
	}
	return out, nil
}

// GetRepliesByLastUpdate pages through the replies made to an account,
// newest first. The first call passes the account and an empty permlink;
// later calls pass the last reply returned.
func (e *Engine) GetRepliesByLastUpdate(startParentAuthor, startPermlink string, limit uint32) ([]*objects.Discussion, error) {
	if limit > MaxLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxLimit)
	}

	parentAuthor := startParentAuthor
	pivot := &chain.Comment{ParentAuthor: startParentAuthor, LastUpdate: protocol.MaxTime}
	if startPermlink != "" {
		c, ok := e.db.Comments.Find(startParentAuthor, startPermlink)
		if !ok {
			return nil, chain.NewMissingObject("comment", "author", startParentAuthor, "permlink", startPermlink)
		}
		pivot = c
		parentAuthor = c.ParentAuthor
	}

	out := []*objects.Discussion{}
	e.db.Comments.ByLastUpdate.AscendFrom(pivot, func(c *chain.Comment) bool {
		if len(out) >= int(limit) || c.ParentAuthor != parentAuthor {
			return false
		}
		out = append(out, e.content(c))
		return true
	})
	return out, nil
}

// GetDiscussionsByAuthorBeforeDate lists an author's root posts by last
// update. A start permlink created before beforeDate resumes the listing
// there.
func (e *Engine) GetDiscussionsByAuthorBeforeDate(author, startPermlink string, beforeDate time.Time, limit uint32) ([]*objects.Discussion, error) {
	if limit > MaxLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxLimit)
	}
	if beforeDate.IsZero() || beforeDate.Unix() == 0 {
		beforeDate = protocol.MaxTime
	}

	pivot := &chain.Comment{Author: author, LastUpdate: protocol.MaxTime}
	if startPermlink != "" {
		c, ok := e.db.Comments.Find(author, startPermlink)
		if !ok {
			return nil, chain.NewMissingObject("comment", "author", author, "permlink", startPermlink)
		}
		if c.Created.Before(beforeDate) {
			pivot = c
		}
	}

	out := []*objects.Discussion{}
	e.db.Comments.ByAuthorLastUpdate.AscendFrom(pivot, func(c *chain.Comment) bool {
		if len(out) >= int(limit) || c.Author != author {
			return false
		}
		if c.IsRoot() {
			out = append(out, e.content(c))
		}
		return true
	})
	return out, nil
}

// GetTrendingTags lists tag stats in trending order starting at after.
func (e *Engine) GetTrendingTags(after string, limit uint32) []objects.Tag {
	stats := e.tags.TrendingTags(after, int(limit))
	out := make([]objects.Tag, 0, len(stats))
	for _, st := range stats {
		out = append(out, objects.NewTag(st))
	}
	return out
}

// GetTagsUsedByAuthor returns the tags author posted under, most used first.
func (e *Engine) GetTagsUsedByAuthor(author string) ([]objects.NameCount, error) {
	if _, ok := e.db.Accounts.Find(author); !ok {
		return nil, chain.NewMissingObject("account", "name", author)
	}
	used := e.tags.UsedByAuthor(author)
	out := make([]objects.NameCount, 0, len(used))
	for _, u := range used {
		out = append(out, objects.NameCount{Name: protocol.PruneInvalidUTF8(u.Tag), Count: u.TotalPosts})
	}
	return out, nil
}
