package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
)

var t0 = time.Unix(1500000000, 0).UTC()

func setup(t *testing.T) (*chain.Database, *follow.Store, *Service) {
	t.Helper()
	db := chain.NewDatabase()
	tagStore := tags.New(db)
	followStore := follow.New(db)
	engine := discussions.New(db, tagStore, followStore)
	engine.SetClock(func() time.Time { return t0 })
	m := market.New(db)
	m.SetClock(func() time.Time { return t0 })
	s := New(db, followStore, engine, m)

	comment := func(author, permlink, parentAuthor, parentPermlink string, rshares int64, at time.Duration) chain.Comment {
		c := chain.Comment{
			Author: author, Permlink: permlink, Category: "golos",
			ParentAuthor: parentAuthor, ParentPermlink: parentPermlink,
			Body: "body", NetRshares: rshares,
			Created: t0.Add(at), LastUpdate: t0.Add(at), Active: t0.Add(at),
			CashoutTime: t0.Add(7 * 24 * time.Hour),
		}
		c.ChildrenRshares2.Set(uint256.NewInt(1))
		return c
	}

	require.NoError(t, db.WithWriteLock(func() error {
		for _, name := range []string{"alice", "bob", "carol", "dave"} {
			if _, err := db.StoreAccount(chain.Account{Name: name}); err != nil {
				return err
			}
		}
		if err := followStore.Follow("dave", "alice", follow.WhatBlog); err != nil {
			return err
		}
		comments := []chain.Comment{
			comment("alice", "post", "", "golos", 1000000000, 0),
			comment("bob", "r1", "alice", "post", 10, time.Minute),
			comment("carol", "r2", "bob", "r1", 10, 2*time.Minute),
			comment("carol", "r3", "alice", "post", 10, 3*time.Minute),
		}
		for _, c := range comments {
			if _, err := db.StoreComment(c); err != nil {
				return err
			}
		}
		post, _ := db.Comments.Find("alice", "post")
		if err := db.StoreVotes(post, []chain.CommentVote{{Voter: "bob", Rshares: 1000000000, VotePercent: 10000, LastUpdate: t0}}); err != nil {
			return err
		}
		if _, err := db.StoreWitness(chain.Witness{Owner: "bob", Votes: 20}); err != nil {
			return err
		}
		if _, err := db.StoreWitness(chain.Witness{Owner: "carol", Votes: 10, PowWorker: 3}); err != nil {
			return err
		}
		for i, op := range []string{"transfer", "vote", "account_update", "fill_order"} {
			_, err := db.AppendHistory("alice", chain.HistoryEntry{
				Block: uint32(i + 1), Timestamp: t0, OpName: op, OpBody: []byte(`{}`),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	return db, followStore, s
}

func TestGetStateTrending(t *testing.T) {
	_, _, s := setup(t)

	for _, path := range []string{"trending", "/trending", "", "/"} {
		st := s.GetState(path)
		require.Empty(t, st.Error, path)
		idx, ok := st.DiscussionIdx[""]
		require.True(t, ok, path)
		assert.Equal(t, []string{"alice/post"}, idx.Trending, path)
		require.Contains(t, st.Content, "alice/post", path)
		assert.Len(t, st.Content["alice/post"].ActiveVotes, 1)
		assert.Contains(t, st.Accounts, "alice", path)
		assert.Contains(t, st.TagIdx.Trending, "golos", path)
	}
}

func TestGetStateRankingBuckets(t *testing.T) {
	_, _, s := setup(t)

	st := s.GetState("created/golos")
	require.Empty(t, st.Error)
	assert.Equal(t, []string{"alice/post"}, st.DiscussionIdx["golos"].Created)

	st = s.GetState("recent/GOLOS")
	assert.Equal(t, []string{"alice/post"}, st.DiscussionIdx["golos"].Created)

	st = s.GetState("payout_comments")
	require.Empty(t, st.Error)
	assert.Len(t, st.DiscussionIdx[""].PayoutComments, 3)

	st = s.GetState("payout")
	assert.Equal(t, []string{"alice/post"}, st.DiscussionIdx[""].Payout)
}

func TestGetStateDiscussion(t *testing.T) {
	_, _, s := setup(t)

	st := s.GetState("/golos/@alice/post")
	require.Empty(t, st.Error)
	require.Len(t, st.Content, 4)

	root := st.Content["alice/post"]
	assert.Equal(t, []string{"bob/r1", "carol/r3"}, root.Replies)
	assert.Equal(t, []string{"carol/r2"}, st.Content["bob/r1"].Replies)
	assert.Empty(t, st.Content["carol/r2"].Replies)
	assert.Equal(t, "/golos/@alice/post#@carol/r2", st.Content["carol/r2"].URL)

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Contains(t, st.Accounts, name)
	}

	st = s.GetState("/golos/@alice/missing")
	require.Empty(t, st.Error)
	require.Contains(t, st.Content, "alice/missing")
	assert.Empty(t, st.Content["alice/missing"].Author)
}

func TestGetStateAccountPages(t *testing.T) {
	_, _, s := setup(t)

	st := s.GetState("@alice")
	require.Empty(t, st.Error)
	alice := st.Accounts["alice"]
	require.NotNil(t, alice.Blog)
	assert.Equal(t, []string{"alice/post"}, *alice.Blog)
	assert.Nil(t, alice.Feed)

	st = s.GetState("@dave/feed")
	require.NotNil(t, st.Accounts["dave"].Feed)
	assert.Equal(t, []string{"alice/post"}, *st.Accounts["dave"].Feed)

	st = s.GetState("@carol/comments")
	require.NotNil(t, st.Accounts["carol"].Comments)
	assert.ElementsMatch(t, []string{"carol/r2", "carol/r3"}, *st.Accounts["carol"].Comments)

	st = s.GetState("@alice/recent-replies")
	require.NotNil(t, st.Accounts["alice"].RecentReplies)
	assert.Equal(t, []string{"carol/r3", "bob/r1"}, *st.Accounts["alice"].RecentReplies)
	assert.Contains(t, st.Accounts, "carol")

	st = s.GetState("@alice/transfers")
	require.Empty(t, st.Error)
	alice = st.Accounts["alice"]
	assert.Len(t, alice.TransferHistory, 2)
	assert.Len(t, alice.OtherHistory, 1)

	st = s.GetState("@nobody")
	assert.NotEmpty(t, st.Error)
}

func TestGetStateWitnessesTagsAndMarket(t *testing.T) {
	_, _, s := setup(t)

	st := s.GetState("witnesses")
	require.Empty(t, st.Error)
	assert.Len(t, st.Witnesses, 2)
	assert.Equal(t, []string{"carol"}, st.PowQueue)

	st = s.GetState("tags")
	require.Contains(t, st.Tags, "golos")
	assert.Contains(t, st.TagIdx.Trending, "golos")

	st = s.GetState("market")
	require.Empty(t, st.Error)
	require.NotNil(t, st.MarketData)
	assert.Empty(t, st.MarketData.History)
}

func TestGetStateUnknownRoute(t *testing.T) {
	_, _, s := setup(t)

	st := s.GetState("sideways/golos")
	assert.Equal(t, "no route matches sideways/golos", st.Error)
	assert.Empty(t, st.Content)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"current_route":"sideways/golos"`)
	assert.NotContains(t, string(raw), `"market_data"`)
}

func TestAccountLookups(t *testing.T) {
	db, _, s := setup(t)

	accounts, err := s.GetAccounts([]string{"bob", "nobody", "alice"})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "bob", accounts[0].Name)
	assert.Equal(t, 4, s.GetAccountCount())

	history, err := s.GetAccountHistory("alice", -1, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Less(t, history[0].Sequence, history[1].Sequence)
	last, ok := db.History.LastSequence("alice")
	require.True(t, ok)
	assert.Equal(t, last, history[1].Sequence)

	history, err = s.GetAccountHistory("alice", -1, 100)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	var perr *protocol.ParamError
	_, err = s.GetAccountHistory("alice", 1, 10)
	assert.ErrorAs(t, err, &perr)
	_, err = s.GetAccountHistory("alice", -1, MaxAccountHistoryLimit+1)
	assert.ErrorAs(t, err, &perr)

	wits, err := s.GetWitnessesByVote("", 10)
	require.NoError(t, err)
	require.Len(t, wits, 2)
	assert.Equal(t, "bob", wits[0].Owner)

	wits, err = s.GetWitnessesByVote("carol", 10)
	require.NoError(t, err)
	require.Len(t, wits, 1)
	assert.Equal(t, "carol", wits[0].Owner)
}
