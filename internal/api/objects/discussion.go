package objects

import (
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// Comment is the API form of a stored comment.
type Comment struct {
	ID                   chain.ID       `json:"id"`
	Author               string         `json:"author"`
	Permlink             string         `json:"permlink"`
	Category             string         `json:"category"`
	ParentAuthor         string         `json:"parent_author"`
	ParentPermlink       string         `json:"parent_permlink"`
	Title                string         `json:"title"`
	Body                 string         `json:"body"`
	JSONMetadata         string         `json:"json_metadata"`
	LastUpdate           protocol.Time  `json:"last_update"`
	Created              protocol.Time  `json:"created"`
	Active               protocol.Time  `json:"active"`
	LastPayout           protocol.Time  `json:"last_payout"`
	Depth                uint16         `json:"depth"`
	Children             uint32         `json:"children"`
	ChildrenRshares2     string         `json:"children_rshares2"`
	NetRshares           int64          `json:"net_rshares"`
	AbsRshares           int64          `json:"abs_rshares"`
	VoteRshares          int64          `json:"vote_rshares"`
	ChildrenAbsRshares   int64          `json:"children_abs_rshares"`
	CashoutTime          protocol.Time  `json:"cashout_time"`
	MaxCashoutTime       protocol.Time  `json:"max_cashout_time"`
	TotalVoteWeight      uint64         `json:"total_vote_weight"`
	RewardWeight         uint16         `json:"reward_weight"`
	TotalPayoutValue     protocol.Asset `json:"total_payout_value"`
	CuratorPayoutValue   protocol.Asset `json:"curator_payout_value"`
	AuthorRewards        int64          `json:"author_rewards"`
	NetVotes             int32          `json:"net_votes"`
	RootComment          chain.ID       `json:"root_comment"`
	MaxAcceptedPayout    protocol.Asset `json:"max_accepted_payout"`
	PercentSteemDollars  uint16         `json:"percent_steem_dollars"`
	AllowReplies         bool           `json:"allow_replies"`
	AllowVotes           bool           `json:"allow_votes"`
	AllowCurationRewards bool           `json:"allow_curation_rewards"`
}

func NewComment(c *chain.Comment) Comment {
	return Comment{
		ID:                   c.ID,
		Author:               c.Author,
		Permlink:             c.Permlink,
		Category:             c.Category,
		ParentAuthor:         c.ParentAuthor,
		ParentPermlink:       c.ParentPermlink,
		Title:                c.Title,
		Body:                 c.Body,
		JSONMetadata:         c.JSONMetadata,
		LastUpdate:           protocol.NewTime(c.LastUpdate),
		Created:              protocol.NewTime(c.Created),
		Active:               protocol.NewTime(c.Active),
		LastPayout:           protocol.NewTime(c.LastPayout),
		Depth:                c.Depth,
		Children:             c.Children,
		ChildrenRshares2:     c.ChildrenRshares2.Dec(),
		NetRshares:           c.NetRshares,
		AbsRshares:           c.AbsRshares,
		VoteRshares:          c.VoteRshares,
		ChildrenAbsRshares:   c.ChildrenAbsRshares,
		CashoutTime:          protocol.NewTime(c.CashoutTime),
		MaxCashoutTime:       protocol.NewTime(c.MaxCashoutTime),
		TotalVoteWeight:      c.TotalVoteWeight,
		RewardWeight:         c.RewardWeight,
		TotalPayoutValue:     c.TotalPayoutValue,
		CuratorPayoutValue:   c.CuratorPayoutValue,
		AuthorRewards:        c.AuthorRewards,
		NetVotes:             c.NetVotes,
		RootComment:          c.RootComment,
		MaxAcceptedPayout:    c.MaxAcceptedPayout,
		PercentSteemDollars:  c.PercentSteemDollars,
		AllowReplies:         c.AllowReplies,
		AllowVotes:           c.AllowVotes,
		AllowCurationRewards: c.AllowCurationRewards,
	}
}

// Discussion is a comment decorated for display. It is built per request
// and never stored.
type Discussion struct {
	Comment

	URL                     string         `json:"url"`
	RootTitle               string         `json:"root_title"`
	PendingPayoutValue      protocol.Asset `json:"pending_payout_value"`
	TotalPendingPayoutValue protocol.Asset `json:"total_pending_payout_value"`
	ActiveVotes             []VoteState    `json:"active_votes"`
	Replies                 []string       `json:"replies"`
	AuthorReputation        int64          `json:"author_reputation"`
	Promoted                protocol.Asset `json:"promoted"`
	BodyLength              uint32         `json:"body_length"`
	RebloggedBy             []string       `json:"reblogged_by"`
	FirstRebloggedBy        string         `json:"first_reblogged_by,omitempty"`
	FirstRebloggedOn        *protocol.Time `json:"first_reblogged_on,omitempty"`
}

// NewDiscussion wraps c with empty decorations.
func NewDiscussion(c *chain.Comment) *Discussion {
	zero := protocol.Asset{Symbol: protocol.GBGSymbol}
	return &Discussion{
		Comment:                 NewComment(c),
		PendingPayoutValue:      zero,
		TotalPendingPayoutValue: zero,
		Promoted:                zero,
		ActiveVotes:             []VoteState{},
		Replies:                 []string{},
		RebloggedBy:             []string{},
	}
}

// EmptyDiscussion is returned for content that does not exist.
func EmptyDiscussion() *Discussion {
	return NewDiscussion(&chain.Comment{})
}

// Key returns the "author/permlink" content map key.
func (d *Discussion) Key() string {
	return d.Author + "/" + d.Permlink
}

// VoteState is a vote as listed under a discussion.
type VoteState struct {
	Voter      string        `json:"voter"`
	Weight     uint64        `json:"weight"`
	Rshares    int64         `json:"rshares"`
	Percent    int16         `json:"percent"`
	Reputation int64         `json:"reputation"`
	Time       protocol.Time `json:"time"`
}

// AccountVote is a vote as listed under its voter.
type AccountVote struct {
	Authorperm string        `json:"authorperm"`
	Weight     uint64        `json:"weight"`
	Rshares    int64         `json:"rshares"`
	Percent    int16         `json:"percent"`
	Time       protocol.Time `json:"time"`
}
