package discussions

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

const (
	prunedBody  = "body pruned due to size"
	prunedReply = "comment pruned due to size"
)

// SetPendingPayout fills the payout estimate, promotion, reputation and URL
// of d. It recomputes everything from the store and may be applied any
// number of times.
func (e *Engine) SetPendingPayout(d *objects.Discussion) {
	c, ok := e.db.Comments.Get(d.ID)
	if !ok || c.Author != d.Author || c.Permlink != d.Permlink {
		return
	}

	d.Promoted = protocol.NewAsset(e.tags.PromotedBalance(c.ID), protocol.GBGSymbol)

	pot, totalR2, fund := e.db.RewardPool(c)
	if median := e.db.FeedHistory.Get().CurrentMedianHistory; !median.IsNull() {
		converted, err := median.Convert(pot)
		if err != nil {
			e.logger.Debug("reward pot not converted",
				zap.String("comment", c.AuthorPermlink()),
				zap.Error(err))
		} else {
			pot = converted
		}
	}

	if props := e.db.Props.Get(); !props.TotalRewardShares2.IsZero() {
		vshares := chain.CalculateVShares(c.NetRshares, fund)
		d.PendingPayoutValue = chain.PayoutShare(vshares, pot, totalR2)
		d.TotalPendingPayoutValue = chain.PayoutShare(&c.ChildrenRshares2, pot, totalR2)
		if e.follow != nil {
			d.AuthorReputation = e.follow.GetAccountReputation(c.Author)
		}
	}

	if !c.IsRoot() {
		d.CashoutTime = protocol.NewTime(e.db.DiscussionPayoutTime(c))
	}

	if len(d.Body) > chain.MaxBodyLength {
		d.Body = prunedBody
	}
	if !c.IsRoot() && len(d.Body) > chain.MaxReplyBodyLength {
		d.Body = prunedReply
	}

	e.SetURL(d)
}

// SetURL fills the URL and root title of d from its root post.
func (e *Engine) SetURL(d *objects.Discussion) {
	root, ok := e.db.Comments.Get(d.RootComment)
	if !ok {
		d.URL = "/" + d.Category + "/@" + d.Author + "/" + d.Permlink
		d.RootTitle = d.Title
		return
	}
	d.URL = "/" + root.Category + "/@" + root.Author + "/" + root.Permlink
	d.RootTitle = root.Title
	if root.ID != d.ID {
		d.URL += "#@" + d.Author + "/" + d.Permlink
	}
}

// GetDiscussion builds the full view of comment id. A non-zero truncate
// cuts the body to that many bytes and prunes invalid UTF-8 from the text
// fields.
func (e *Engine) GetDiscussion(id chain.ID, truncate uint32) (*objects.Discussion, error) {
	c, ok := e.db.Comments.Get(id)
	if !ok {
		return nil, chain.NewMissingObject("comment", "id", fmt.Sprint(id))
	}
	return e.discussion(c, truncate), nil
}

func (e *Engine) discussion(c *chain.Comment, truncate uint32) *objects.Discussion {
	d := objects.NewDiscussion(c)
	e.SetPendingPayout(d)
	d.ActiveVotes = e.activeVotes(c)
	d.BodyLength = uint32(len(c.Body))
	if truncate > 0 {
		d.Body = protocol.TruncateUTF8(d.Body, int(truncate))
		d.Title = protocol.PruneInvalidUTF8(d.Title)
		d.Body = protocol.PruneInvalidUTF8(d.Body)
		d.Category = protocol.PruneInvalidUTF8(d.Category)
		d.JSONMetadata = protocol.PruneInvalidUTF8(d.JSONMetadata)
	}
	return d
}

// content decorates c the way content lookups return it.
func (e *Engine) content(c *chain.Comment) *objects.Discussion {
	d := objects.NewDiscussion(c)
	e.SetPendingPayout(d)
	d.ActiveVotes = e.activeVotes(c)
	return d
}

func (e *Engine) activeVotes(c *chain.Comment) []objects.VoteState {
	votes := e.db.Votes.ForComment(c.ID)
	out := make([]objects.VoteState, 0, len(votes))
	for _, v := range votes {
		state := objects.VoteState{
			Voter:   v.Voter,
			Weight:  v.Weight,
			Rshares: v.Rshares,
			Percent: v.VotePercent,
			Time:    protocol.NewTime(v.LastUpdate),
		}
		if e.follow != nil {
			state.Reputation = e.follow.GetAccountReputation(v.Voter)
		}
		out = append(out, state)
	}
	return out
}
