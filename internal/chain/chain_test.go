package chain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/protocol"
)

func write(t *testing.T, db *Database, fn func() error) {
	t.Helper()
	require.NoError(t, db.WithWriteLock(fn))
}

func TestTableCreateAndFind(t *testing.T) {
	db := NewDatabase()
	write(t, db, func() error {
		_, err := db.StoreComment(Comment{Author: "alice", Permlink: "hello", Category: "golos"})
		return err
	})

	c, ok := db.Comments.Find("alice", "hello")
	require.True(t, ok)
	assert.Equal(t, ID(1), c.ID)
	assert.Equal(t, c.ID, c.RootComment)
	assert.Equal(t, DefaultRewardFund, c.RewardFund)

	_, ok = db.Comments.Find("alice", "missing")
	assert.False(t, ok)
}

func TestMutationOutsideSession(t *testing.T) {
	db := NewDatabase()
	_, err := db.Comments.Create(func(c *Comment) {})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionRollback(t *testing.T) {
	db := NewDatabase()
	write(t, db, func() error {
		_, err := db.StoreComment(Comment{Author: "alice", Permlink: "hello", Title: "first"})
		return err
	})

	boom := errors.New("boom")
	err := db.WithWriteLock(func() error {
		c, _ := db.Comments.Find("alice", "hello")
		if err := db.Comments.Modify(c, func(c *Comment) { c.Title = "second"; c.Permlink = "moved" }); err != nil {
			return err
		}
		if _, err := db.StoreComment(Comment{Author: "bob", Permlink: "reply", ParentAuthor: "alice", ParentPermlink: "moved"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, ok := db.Comments.Find("alice", "hello")
	require.True(t, ok)
	assert.Equal(t, "first", c.Title)
	_, ok = db.Comments.Find("alice", "moved")
	assert.False(t, ok)
	_, ok = db.Comments.Find("bob", "reply")
	assert.False(t, ok)
	assert.Equal(t, 1, db.Comments.Len())
	assert.Equal(t, 1, db.Comments.ByParent.Len())

	write(t, db, func() error {
		c, err := db.StoreComment(Comment{Author: "bob", Permlink: "reply", ParentAuthor: "alice", ParentPermlink: "hello"})
		if err != nil {
			return err
		}
		assert.Equal(t, ID(2), c.ID)
		assert.Equal(t, ID(1), c.RootComment)
		assert.Equal(t, uint16(1), c.Depth)
		return nil
	})
}

func TestNestedSessionKeepsOuterChanges(t *testing.T) {
	db := NewDatabase()
	write(t, db, func() error {
		if _, err := db.StoreAccount(Account{Name: "alice"}); err != nil {
			return err
		}
		err := db.Session(func() error {
			if _, err := db.StoreAccount(Account{Name: "bob"}); err != nil {
				return err
			}
			return fmt.Errorf("rejected")
		})
		assert.Error(t, err)
		return nil
	})

	_, ok := db.Accounts.Find("alice")
	assert.True(t, ok)
	_, ok = db.Accounts.Find("bob")
	assert.False(t, ok)
}

func TestUniqueIndexConflict(t *testing.T) {
	db := NewDatabase()
	err := db.WithWriteLock(func() error {
		if _, err := db.Accounts.Create(func(a *Account) { a.Name = "alice" }); err != nil {
			return err
		}
		_, err := db.Accounts.Create(func(a *Account) { a.Name = "alice" })
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "by_name")
	assert.Equal(t, 0, db.Accounts.Len())
}

func TestStoreVotesReplacesSet(t *testing.T) {
	db := NewDatabase()
	write(t, db, func() error {
		c, err := db.StoreComment(Comment{Author: "alice", Permlink: "hello"})
		if err != nil {
			return err
		}
		return db.StoreVotes(c, []CommentVote{
			{Voter: "bob", Rshares: 100},
			{Voter: "carol", Rshares: 200},
		})
	})
	write(t, db, func() error {
		c, _ := db.Comments.Find("alice", "hello")
		return db.StoreVotes(c, []CommentVote{
			{Voter: "carol", Rshares: 250},
			{Voter: "dave", Rshares: 50},
		})
	})

	c, _ := db.Comments.Find("alice", "hello")
	votes := db.Votes.ForComment(c.ID)
	require.Len(t, votes, 2)
	assert.Equal(t, "carol", votes[0].Voter)
	assert.Equal(t, int64(250), votes[0].Rshares)
	assert.Equal(t, "dave", votes[1].Voter)
	assert.Empty(t, db.Votes.ByVoter("bob"))
}

func TestAppendHistorySequences(t *testing.T) {
	db := NewDatabase()
	write(t, db, func() error {
		for i := 0; i < 3; i++ {
			if _, err := db.AppendHistory("alice", HistoryEntry{OpName: "transfer"}); err != nil {
				return err
			}
		}
		_, err := db.AppendHistory("bob", HistoryEntry{OpName: "vote"})
		return err
	})

	seq, ok := db.History.LastSequence("alice")
	require.True(t, ok)
	assert.Equal(t, uint32(2), seq)
	seq, ok = db.History.LastSequence("bob")
	require.True(t, ok)
	assert.Equal(t, uint32(0), seq)
	_, ok = db.History.LastSequence("carol")
	assert.False(t, ok)
}

func TestSignalDisconnectsFailingSlots(t *testing.T) {
	db := NewDatabase()
	var good, bad, panicky int
	db.AppliedBlock.Connect(func(BlockNotice) error { good++; return nil })
	db.AppliedBlock.Connect(func(BlockNotice) error { bad++; return errors.New("closed") })
	db.AppliedBlock.Connect(func(BlockNotice) error { panicky++; panic("boom") })

	header := BlockHeader{Number: 1, Timestamp: time.Unix(1500000000, 0).UTC()}
	require.NoError(t, db.ApplyBlock(header, func() error { return nil }))
	header.Number = 2
	require.NoError(t, db.ApplyBlock(header, func() error { return nil }))

	assert.Equal(t, 2, good)
	assert.Equal(t, 1, bad)
	assert.Equal(t, 1, panicky)
	assert.Equal(t, 1, db.AppliedBlock.Len())
	assert.Equal(t, uint32(2), db.HeadBlockNum())
}

func TestApplyBlockReportsChanges(t *testing.T) {
	db := NewDatabase()
	var notice BlockNotice
	db.AppliedBlock.Connect(func(n BlockNotice) error { notice = n; return nil })

	err := db.ApplyBlock(BlockHeader{Number: 7}, func() error {
		_, err := db.StoreComment(Comment{Author: "alice", Permlink: "hello"})
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, notice.Changed, "alice/hello")
	assert.Contains(t, notice.Changed, "dynamic_global_properties")
}

func TestCalculateVShares(t *testing.T) {
	assert.True(t, CalculateVShares(-5, nil).IsZero())

	s := DefaultContentConstant
	want := new(uint256.Int).Mul(uint256.NewInt(1000), uint256.NewInt(1000+2*s))
	assert.Equal(t, want, CalculateVShares(1000, nil))

	linear := &RewardFund{AuthorRewardCurve: CurveLinear}
	assert.Equal(t, uint256.NewInt(1000), CalculateVShares(1000, linear))
}

func TestPayoutShare(t *testing.T) {
	pot := protocol.MustParseAsset("1000.000 GOLOS")
	got := PayoutShare(uint256.NewInt(1), pot, uint256.NewInt(3))
	assert.Equal(t, "333.333 GOLOS", got.String())

	got = PayoutShare(uint256.NewInt(1), pot, new(uint256.Int))
	assert.Equal(t, "0.000 GOLOS", got.String())
}

func TestLogicErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewLogicError("cannot_change_cost_symbol", "Cannot change cost symbol"))
	assert.ErrorIs(t, err, &LogicError{Code: "cannot_change_cost_symbol"})
	assert.NotErrorIs(t, err, &LogicError{Code: "other"})

	missing := NewMissingObject("worker_proposal_object", "author", "alice", "permlink", "p")
	assert.ErrorIs(t, missing, ErrMissingObject)
	assert.Equal(t, "missing object worker_proposal_object {author=alice, permlink=p}", missing.Error())
}

func TestContentEvaluators(t *testing.T) {
	db := NewDatabase()
	assert.False(t, db.HasEvaluator("comment"))
	db.RegisterContentEvaluators()
	assert.True(t, db.HasEvaluator("comment_operation"))

	now := time.Unix(1540000000, 0).UTC()
	write(t, db, func() error {
		return db.Props.Modify(func(p *DynamicGlobalProperties) { p.Time = now })
	})

	post := &protocol.CommentOperation{ParentPermlink: "golos", Author: "alice", Permlink: "post", Title: "hi", Body: "text"}
	reply := &protocol.CommentOperation{ParentAuthor: "alice", ParentPermlink: "post", Author: "bob", Permlink: "re", Body: "reply"}
	nested := &protocol.CommentOperation{ParentAuthor: "bob", ParentPermlink: "re", Author: "carol", Permlink: "re-re", Body: "nested"}
	for _, op := range []protocol.Operation{post, reply, nested} {
		require.NoError(t, db.PushOperation(op))
	}

	root, ok := db.Comments.Find("alice", "post")
	require.True(t, ok)
	assert.Equal(t, uint32(2), root.Children)
	assert.Equal(t, now.Add(CashoutWindow), root.CashoutTime)
	c, ok := db.Comments.Find("carol", "re-re")
	require.True(t, ok)
	assert.Equal(t, "golos", c.Category)
	assert.Equal(t, uint16(2), c.Depth)
	assert.Equal(t, root.ID, c.RootComment)

	moved := *reply
	moved.ParentPermlink = "other"
	err := db.PushOperation(&moved)
	assert.ErrorIs(t, err, NewLogicError("parent_of_comment_cannot_change", ""))

	edit := *post
	edit.Body = "edited"
	require.NoError(t, db.PushOperation(&edit))
	assert.Equal(t, "edited", root.Body)
	assert.Equal(t, uint32(2), root.Children)

	err = db.PushOperation(&protocol.DeleteCommentOperation{Author: "bob", Permlink: "re"})
	assert.ErrorIs(t, err, NewLogicError("cannot_delete_comment_with_replies", ""))
	require.NoError(t, db.PushOperation(&protocol.DeleteCommentOperation{Author: "carol", Permlink: "re-re"}))
	require.NoError(t, db.PushOperation(&protocol.DeleteCommentOperation{Author: "bob", Permlink: "re"}))
	assert.Zero(t, root.Children)
	assert.Equal(t, 1, db.Comments.Len())

	orphan := &protocol.CommentOperation{ParentAuthor: "dave", ParentPermlink: "gone", Author: "bob", Permlink: "lost", Body: "x"}
	assert.ErrorIs(t, db.PushOperation(orphan), ErrMissingObject)
}
