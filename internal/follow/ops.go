package follow

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golos/golosmind/internal/chain"
)

var (
	ErrFollowSelf       = errors.New("you cannot follow yourself")
	ErrReblogOwn        = errors.New("you cannot reblog your own content")
	ErrReblogReply      = errors.New("only top level posts can be reblogged")
	ErrAlreadyReblogged = errors.New("account has already reblogged this post")
)

// ParseWhat converts the "what" list of a follow operation.
func ParseWhat(what []string) (What, error) {
	var w What
	for _, item := range what {
		switch item {
		case "blog":
			w |= WhatBlog
		case "ignore":
			w |= WhatIgnore
		case "":
		default:
			return 0, fmt.Errorf("unknown follow relation %q", item)
		}
	}
	if w&WhatBlog != 0 && w&WhatIgnore != 0 {
		return 0, fmt.Errorf("cannot follow and ignore at the same time")
	}
	return w, nil
}

// Follow records that follower follows (or ignores) following. An empty
// relation removes the record.
func (s *Store) Follow(follower, following string, what What) error {
	if follower == following {
		return ErrFollowSelf
	}
	existing, ok := s.ByFollowerFollowing.Find(&Follow{Follower: follower, Following: following})
	switch {
	case ok && what == 0:
		return s.Follows.Remove(existing)
	case ok:
		return s.Follows.Modify(existing, func(f *Follow) { f.What = what })
	case what == 0:
		return nil
	default:
		_, err := s.Follows.Create(func(f *Follow) {
			f.Follower = follower
			f.Following = following
			f.What = what
		})
		return err
	}
}

// Reblog puts author's post on account's blog and the feeds of account's
// followers.
func (s *Store) Reblog(account, author, permlink string, when time.Time) error {
	if account == author {
		return ErrReblogOwn
	}
	c, ok := s.db.Comments.Find(author, permlink)
	if !ok {
		return chain.NewMissingObject("comment", "author", author, "permlink", permlink)
	}
	if !c.IsRoot() {
		return ErrReblogReply
	}
	if _, ok := s.BlogByAccountPost.Find(&BlogEntry{Account: account, Comment: c.ID}); ok {
		return ErrAlreadyReblogged
	}

	if err := s.addToBlog(account, c.ID, when); err != nil {
		return err
	}
	if err := s.countBlogAuthor(account, author); err != nil {
		return err
	}

	for _, f := range s.GetFollowers(account, "", WhatBlog, math.MaxInt) {
		if err := s.addToFeed(f.Follower, c.ID, account, when); err != nil {
			return err
		}
	}
	return nil
}

// ApplyVote moves the author's reputation by a vote. old is the rshares of
// the voter's previous vote on the same comment, if any.
func (s *Store) ApplyVote(voter, author string, old *int64, rshares int64) error {
	voterRep := s.GetAccountReputation(voter)
	if voterRep < 0 {
		return nil
	}

	delta := int64(0)
	if old != nil && s.counts(voterRep, author, *old) {
		delta -= *old >> 6
	}
	if s.counts(voterRep, author, rshares) {
		delta += rshares >> 6
	}
	if delta == 0 {
		return nil
	}
	return s.addReputation(author, delta)
}

// counts reports whether a vote of rshares by a voter with voterRep may move
// author's reputation. Downvotes only count from higher reputation voters.
func (s *Store) counts(voterRep int64, author string, rshares int64) bool {
	return rshares >= 0 || voterRep > s.GetAccountReputation(author)
}

func (s *Store) addReputation(account string, delta int64) error {
	r, ok := s.ReputationByName.Find(&Reputation{Account: account})
	if !ok {
		_, err := s.Reputations.Create(func(r *Reputation) {
			r.Account = account
			r.Reputation = delta
		})
		return err
	}
	return s.Reputations.Modify(r, func(r *Reputation) { r.Reputation += delta })
}

func (s *Store) onComment(c *chain.Comment, change chain.Change) error {
	if change == chain.Removed {
		return s.dropComment(c.ID)
	}
	if change != chain.Created || !c.IsRoot() {
		return nil
	}
	if err := s.addToBlog(c.Author, c.ID, time.Time{}); err != nil {
		return err
	}
	for _, f := range s.GetFollowers(c.Author, "", WhatBlog, math.MaxInt) {
		if err := s.addToFeed(f.Follower, c.ID, "", c.Created); err != nil {
			return err
		}
	}
	return nil
}

// dropComment removes the blog and feed entries of a deleted comment.
func (s *Store) dropComment(id chain.ID) error {
	var blog []*BlogEntry
	s.Blog.All(func(e *BlogEntry) bool {
		if e.Comment == id {
			blog = append(blog, e)
		}
		return true
	})
	for _, e := range blog {
		if err := s.Blog.Remove(e); err != nil {
			return err
		}
	}
	var feed []*FeedEntry
	s.Feed.All(func(e *FeedEntry) bool {
		if e.Comment == id {
			feed = append(feed, e)
		}
		return true
	})
	for _, e := range feed {
		if err := s.Feed.Remove(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addToBlog(account string, comment chain.ID, rebloggedOn time.Time) error {
	if _, ok := s.BlogByAccountPost.Find(&BlogEntry{Account: account, Comment: comment}); ok {
		return nil
	}
	next := uint32(0)
	s.WalkBlog(account, 0, func(e *BlogEntry) bool {
		next = e.BlogID + 1
		return false
	})
	_, err := s.Blog.Create(func(e *BlogEntry) {
		e.Account = account
		e.Comment = comment
		e.RebloggedOn = rebloggedOn
		e.BlogID = next
	})
	return err
}

func (s *Store) addToFeed(account string, comment chain.ID, rebloggedBy string, when time.Time) error {
	if existing, ok := s.FeedByAccountPost.Find(&FeedEntry{Account: account, Comment: comment}); ok {
		if rebloggedBy == "" {
			return nil
		}
		return s.Feed.Modify(existing, func(e *FeedEntry) {
			e.RebloggedBy = append(append([]string(nil), e.RebloggedBy...), rebloggedBy)
			e.Reblogs++
			if e.FirstRebloggedBy == "" {
				e.FirstRebloggedBy = rebloggedBy
				e.FirstRebloggedOn = when
			}
		})
	}

	next := uint32(0)
	s.WalkFeed(account, 0, func(e *FeedEntry) bool {
		next = e.FeedID + 1
		return false
	})
	_, err := s.Feed.Create(func(e *FeedEntry) {
		e.Account = account
		e.Comment = comment
		e.FeedID = next
		if rebloggedBy != "" {
			e.RebloggedBy = []string{rebloggedBy}
			e.FirstRebloggedBy = rebloggedBy
			e.FirstRebloggedOn = when
			e.Reblogs = 1
		}
	})
	if err != nil {
		return err
	}
	return s.trimFeed(account, next)
}

func (s *Store) trimFeed(account string, newest uint32) error {
	if newest < FeedSizeLimit {
		return nil
	}
	var stale []*FeedEntry
	s.FeedByAccount.AscendFrom(&FeedEntry{Account: account, FeedID: newest - FeedSizeLimit}, func(e *FeedEntry) bool {
		if e.Account != account {
			return false
		}
		stale = append(stale, e)
		return true
	})
	for _, e := range stale {
		if err := s.Feed.Remove(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) countBlogAuthor(blogger, guest string) error {
	stats, ok := s.BlogAuthorsByKey.Find(&BlogAuthor{Blogger: blogger, Guest: guest})
	if !ok {
		_, err := s.BlogAuthors.Create(func(b *BlogAuthor) {
			b.Blogger = blogger
			b.Guest = guest
			b.Count = 1
		})
		return err
	}
	return s.BlogAuthors.Modify(stats, func(b *BlogAuthor) { b.Count++ })
}
