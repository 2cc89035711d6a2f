package chain

import (
	"fmt"
)

// The methods below copy state published by the upstream node into the
// store. They must run inside a write session.

// StoreComment inserts or replaces the comment identified by src's author
// and permlink. Root and depth are derived from the stored parent.
func (db *Database) StoreComment(src Comment) (*Comment, error) {
	fill := func(c *Comment) {
		id := c.ID
		*c = src
		c.ID = id
		c.RootComment = id
		c.Depth = 0
		if !src.IsRoot() {
			if parent, ok := db.Comments.Find(src.ParentAuthor, src.ParentPermlink); ok {
				c.RootComment = parent.RootComment
				c.Depth = parent.Depth + 1
			}
		}
		if c.RewardFund == "" {
			c.RewardFund = DefaultRewardFund
		}
	}

	if existing, ok := db.Comments.Find(src.Author, src.Permlink); ok {
		if err := db.Comments.Modify(existing, fill); err != nil {
			return nil, err
		}
		return existing, nil
	}
	return db.Comments.Create(fill)
}

// RemoveComment deletes a comment and the votes cast on it.
func (db *Database) RemoveComment(author, permlink string) error {
	c, ok := db.Comments.Find(author, permlink)
	if !ok {
		return NewMissingObject("comment", "author", author, "permlink", permlink)
	}
	for _, v := range db.Votes.ForComment(c.ID) {
		if err := db.Votes.Remove(v); err != nil {
			return err
		}
	}
	return db.Comments.Remove(c)
}

// StoreVotes makes the stored votes of c equal to votes.
func (db *Database) StoreVotes(c *Comment, votes []CommentVote) error {
	keep := make(map[string]CommentVote, len(votes))
	for _, v := range votes {
		keep[v.Voter] = v
	}

	for _, existing := range db.Votes.ForComment(c.ID) {
		v, ok := keep[existing.Voter]
		if !ok {
			if err := db.Votes.Remove(existing); err != nil {
				return err
			}
			continue
		}
		delete(keep, existing.Voter)
		err := db.Votes.Modify(existing, func(dst *CommentVote) {
			copyVote(dst, v, c.ID)
		})
		if err != nil {
			return err
		}
	}

	for _, v := range votes {
		if _, ok := keep[v.Voter]; !ok {
			continue
		}
		_, err := db.Votes.Create(func(dst *CommentVote) {
			copyVote(dst, v, c.ID)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func copyVote(dst *CommentVote, src CommentVote, comment ID) {
	id := dst.ID
	*dst = src
	dst.ID = id
	dst.Comment = comment
}

// StoreAccount inserts or replaces an account by name.
func (db *Database) StoreAccount(src Account) (*Account, error) {
	fill := func(a *Account) {
		id := a.ID
		*a = src
		a.ID = id
	}
	if existing, ok := db.Accounts.Find(src.Name); ok {
		return existing, db.Accounts.Modify(existing, fill)
	}
	return db.Accounts.Create(fill)
}

func (db *Database) StoreWitness(src Witness) (*Witness, error) {
	fill := func(w *Witness) {
		id := w.ID
		*w = src
		w.ID = id
	}
	if existing, ok := db.Witnesses.Find(src.Owner); ok {
		return existing, db.Witnesses.Modify(existing, fill)
	}
	return db.Witnesses.Create(fill)
}

func (db *Database) StoreRewardFund(src RewardFund) (*RewardFund, error) {
	fill := func(f *RewardFund) {
		id := f.ID
		*f = src
		f.ID = id
	}
	if existing, ok := db.RewardFunds.Find(src.Name); ok {
		return existing, db.RewardFunds.Modify(existing, fill)
	}
	return db.RewardFunds.Create(fill)
}

// StoreLimitOrder inserts or replaces an order keyed by seller and order id.
func (db *Database) StoreLimitOrder(src LimitOrder) (*LimitOrder, error) {
	fill := func(o *LimitOrder) {
		id := o.ID
		*o = src
		o.ID = id
	}
	if existing, ok := db.LimitOrders.Find(src.Seller, src.OrderID); ok {
		return existing, db.LimitOrders.Modify(existing, fill)
	}
	return db.LimitOrders.Create(fill)
}

// RemoveLimitOrder deletes an order if it is still open.
func (db *Database) RemoveLimitOrder(seller string, orderID uint32) error {
	o, ok := db.LimitOrders.Find(seller, orderID)
	if !ok {
		return nil
	}
	return db.LimitOrders.Remove(o)
}

// AppendTrade records a fill in market history.
func (db *Database) AppendTrade(src Trade) (*Trade, error) {
	return db.Trades.Create(func(t *Trade) {
		id := t.ID
		*t = src
		t.ID = id
	})
}

// AppendHistory adds entry to the account's history with the next sequence.
func (db *Database) AppendHistory(account string, entry HistoryEntry) (*HistoryEntry, error) {
	if account == "" {
		return nil, fmt.Errorf("history entry without account")
	}
	seq := uint32(0)
	if last, ok := db.History.LastSequence(account); ok {
		seq = last + 1
	}
	return db.History.Create(func(e *HistoryEntry) {
		id := e.ID
		*e = entry
		e.ID = id
		e.Account = account
		e.Sequence = seq
	})
}
