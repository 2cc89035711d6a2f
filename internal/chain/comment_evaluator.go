package chain

import (
	"time"

	"github.com/golos/golosmind/internal/protocol"
)

// CashoutWindow is how long a new comment stays open for payout voting.
const CashoutWindow = 7 * 24 * time.Hour

// FullWeight is 100% in basis points.
const FullWeight = 10000

// MaxAcceptedPayout is the payout cap of a comment created locally.
var MaxAcceptedPayout = protocol.NewAsset(1000000000, protocol.GBGSymbol)

// RegisterContentEvaluators lets the store accept comment and delete_comment
// operations itself. A node that syncs from upstream takes content from the
// node instead and must not register them.
func (db *Database) RegisterContentEvaluators() {
	db.RegisterEvaluator("comment", func(op protocol.Operation) error {
		c, ok := op.(*protocol.CommentOperation)
		if !ok {
			return NewLogicError("unexpected_operation", "unexpected operation "+op.Name())
		}
		return db.applyComment(c)
	})
	db.RegisterEvaluator("delete_comment", func(op protocol.Operation) error {
		c, ok := op.(*protocol.DeleteCommentOperation)
		if !ok {
			return NewLogicError("unexpected_operation", "unexpected operation "+op.Name())
		}
		return db.applyDeleteComment(c)
	})
}

func (db *Database) applyComment(op *protocol.CommentOperation) error {
	now := db.HeadBlockTime()

	var parent *Comment
	if !op.IsRoot() {
		p, ok := db.Comments.Find(op.ParentAuthor, op.ParentPermlink)
		if !ok {
			return NewMissingObject("comment", "author", op.ParentAuthor, "permlink", op.ParentPermlink)
		}
		if !p.AllowReplies {
			return NewLogicError("replies_are_not_allowed", "Comment does not allow replies")
		}
		parent = p
	}

	if existing, ok := db.Comments.Find(op.Author, op.Permlink); ok {
		if existing.ParentAuthor != op.ParentAuthor || existing.ParentPermlink != op.ParentPermlink {
			return NewLogicError("parent_of_comment_cannot_change", "The parent of a comment cannot change")
		}
		return db.Comments.Modify(existing, func(c *Comment) {
			c.Title = op.Title
			c.Body = op.Body
			c.JSONMetadata = op.JSONMetadata
			c.LastUpdate = now
			c.Active = now
		})
	}

	category := op.ParentPermlink
	if parent != nil {
		category = parent.Category
	}
	if _, err := db.StoreComment(Comment{
		Author:               op.Author,
		Permlink:             op.Permlink,
		ParentAuthor:         op.ParentAuthor,
		ParentPermlink:       op.ParentPermlink,
		Category:             category,
		Title:                op.Title,
		Body:                 op.Body,
		JSONMetadata:         op.JSONMetadata,
		LastUpdate:           now,
		Created:              now,
		Active:               now,
		LastPayout:           time.Unix(0, 0).UTC(),
		CashoutTime:          now.Add(CashoutWindow),
		MaxCashoutTime:       protocol.MaxTime,
		RewardWeight:         FullWeight,
		MaxAcceptedPayout:    MaxAcceptedPayout,
		PercentSteemDollars:  FullWeight,
		AllowReplies:         true,
		AllowVotes:           true,
		AllowCurationRewards: true,
	}); err != nil {
		return err
	}

	return db.walkAncestors(parent, func(c *Comment) {
		c.Children++
		c.Active = now
	})
}

func (db *Database) applyDeleteComment(op *protocol.DeleteCommentOperation) error {
	c, ok := db.Comments.Find(op.Author, op.Permlink)
	if !ok {
		return NewMissingObject("comment", "author", op.Author, "permlink", op.Permlink)
	}
	if c.Children > 0 {
		return NewLogicError("cannot_delete_comment_with_replies", "Cannot delete a comment with replies")
	}
	if c.NetRshares > 0 {
		return NewLogicError("cannot_delete_comment_with_positive_votes", "Cannot delete a comment with positive votes")
	}

	var parent *Comment
	if !c.IsRoot() {
		parent, _ = db.Comments.Find(c.ParentAuthor, c.ParentPermlink)
	}
	if err := db.RemoveComment(op.Author, op.Permlink); err != nil {
		return err
	}
	return db.walkAncestors(parent, func(c *Comment) {
		if c.Children > 0 {
			c.Children--
		}
	})
}

// walkAncestors applies fn to c and each of its ancestors up to the root post.
func (db *Database) walkAncestors(c *Comment, fn func(*Comment)) error {
	for c != nil {
		if err := db.Comments.Modify(c, fn); err != nil {
			return err
		}
		if c.IsRoot() {
			return nil
		}
		next, ok := db.Comments.Find(c.ParentAuthor, c.ParentPermlink)
		if !ok {
			return nil
		}
		c = next
	}
	return nil
}
