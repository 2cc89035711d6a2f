package follow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/chain"
)

func setup(t *testing.T) (*chain.Database, *Store) {
	t.Helper()
	db := chain.NewDatabase()
	return db, New(db)
}

func TestParseWhat(t *testing.T) {
	tests := []struct {
		in      []string
		want    What
		wantErr bool
	}{
		{[]string{"blog"}, WhatBlog, false},
		{[]string{"ignore"}, WhatIgnore, false},
		{nil, 0, false},
		{[]string{""}, 0, false},
		{[]string{"blog", "ignore"}, 0, true},
		{[]string{"mute"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWhat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFeedAndReblog(t *testing.T) {
	db, s := setup(t)
	created := time.Unix(1500000000, 0).UTC()

	require.NoError(t, db.WithWriteLock(func() error {
		if err := s.Follow("carol", "alice", WhatBlog); err != nil {
			return err
		}
		if err := s.Follow("dave", "bob", WhatBlog); err != nil {
			return err
		}
		if err := s.Follow("erin", "alice", WhatIgnore); err != nil {
			return err
		}
		_, err := db.StoreComment(chain.Comment{Author: "alice", Permlink: "p1", Created: created})
		return err
	}))

	post, _ := db.Comments.Find("alice", "p1")
	feed := s.GetFeedEntries("carol", 0, 10)
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].Comment)
	assert.Empty(t, feed[0].RebloggedBy)
	assert.Empty(t, s.GetFeedEntries("erin", 0, 10))
	require.Len(t, s.GetBlogEntries("alice", 0, 10), 1)

	reblogged := created.Add(time.Hour)
	require.NoError(t, db.WithWriteLock(func() error {
		return s.Reblog("bob", "alice", "p1", reblogged)
	}))

	feed = s.GetFeedEntries("dave", 0, 10)
	require.Len(t, feed, 1)
	assert.Equal(t, []string{"bob"}, feed[0].RebloggedBy)
	assert.Equal(t, "bob", feed[0].FirstRebloggedBy)
	assert.Equal(t, reblogged, feed[0].FirstRebloggedOn)

	blog := s.GetBlogEntries("bob", 0, 10)
	require.Len(t, blog, 1)
	assert.Equal(t, reblogged, blog[0].RebloggedOn)

	authors := s.GetBlogAuthors("bob")
	require.Len(t, authors, 1)
	assert.Equal(t, "alice", authors[0].Guest)

	err := db.WithWriteLock(func() error { return s.Reblog("bob", "alice", "p1", reblogged) })
	assert.ErrorIs(t, err, ErrAlreadyReblogged)
	err = db.WithWriteLock(func() error { return s.Reblog("alice", "alice", "p1", reblogged) })
	assert.ErrorIs(t, err, ErrReblogOwn)

	followers, following := s.FollowCount("alice")
	assert.Equal(t, 1, followers)
	assert.Equal(t, 0, following)
}

func TestRemovedCommentLeavesFeeds(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.WithWriteLock(func() error {
		if err := s.Follow("carol", "alice", WhatBlog); err != nil {
			return err
		}
		_, err := db.StoreComment(chain.Comment{Author: "alice", Permlink: "p1"})
		return err
	}))
	require.Len(t, s.GetFeedEntries("carol", 0, 10), 1)

	require.NoError(t, db.WithWriteLock(func() error { return db.RemoveComment("alice", "p1") }))
	assert.Empty(t, s.GetFeedEntries("carol", 0, 10))
	assert.Empty(t, s.GetBlogEntries("alice", 0, 10))
	assert.Zero(t, s.Feed.Len())
	assert.Zero(t, s.Blog.Len())
}

func TestWalkFeedResume(t *testing.T) {
	db, s := setup(t)
	created := time.Unix(1500000000, 0).UTC()

	require.NoError(t, db.WithWriteLock(func() error {
		if err := s.Follow("carol", "alice", WhatBlog); err != nil {
			return err
		}
		for _, p := range []string{"p1", "p2", "p3"} {
			if _, err := db.StoreComment(chain.Comment{Author: "alice", Permlink: p, Created: created}); err != nil {
				return err
			}
		}
		return nil
	}))

	p2, _ := db.Comments.Find("alice", "p2")
	var seen []chain.ID
	ok := s.WalkFeed("carol", p2.ID, func(e *FeedEntry) bool {
		seen = append(seen, e.Comment)
		return true
	})
	require.True(t, ok)
	assert.Equal(t, []chain.ID{p2.ID, p2.ID - 1}, seen)

	assert.False(t, s.WalkFeed("carol", 999, func(*FeedEntry) bool { return true }))
}

func TestApplyVoteReputation(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.WithWriteLock(func() error {
		return s.ApplyVote("bob", "alice", nil, 640)
	}))
	assert.Equal(t, int64(10), s.GetAccountReputation("alice"))

	// a downvote from a lower reputation voter does not count
	require.NoError(t, db.WithWriteLock(func() error {
		return s.ApplyVote("bob", "alice", nil, -6400)
	}))
	assert.Equal(t, int64(10), s.GetAccountReputation("alice"))

	// changing a vote replaces its previous effect
	old := int64(640)
	require.NoError(t, db.WithWriteLock(func() error {
		return s.ApplyVote("bob", "alice", &old, 1280)
	}))
	assert.Equal(t, int64(20), s.GetAccountReputation("alice"))

	// alice now outranks carol and may downvote her
	require.NoError(t, db.WithWriteLock(func() error {
		return s.ApplyVote("alice", "carol", nil, -640)
	}))
	assert.Equal(t, int64(-10), s.GetAccountReputation("carol"))

	// negative reputation voters have no influence
	require.NoError(t, db.WithWriteLock(func() error {
		return s.ApplyVote("carol", "alice", nil, 6400)
	}))
	assert.Equal(t, int64(20), s.GetAccountReputation("alice"))
}
