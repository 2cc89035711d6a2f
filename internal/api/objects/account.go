package objects

import (
	"encoding/json"
	"strconv"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

type Account struct {
	ID                chain.ID       `json:"id"`
	Name              string         `json:"name"`
	Created           protocol.Time  `json:"created"`
	Mined             bool           `json:"mined"`
	RecoveryAccount   string         `json:"recovery_account"`
	JSONMetadata      string         `json:"json_metadata"`
	PostCount         uint32         `json:"post_count"`
	CanVote           bool           `json:"can_vote"`
	VotingPower       uint16         `json:"voting_power"`
	LastVoteTime      protocol.Time  `json:"last_vote_time"`
	Balance           protocol.Asset `json:"balance"`
	SavingsBalance    protocol.Asset `json:"savings_balance"`
	SBDBalance        protocol.Asset `json:"sbd_balance"`
	SavingsSBDBalance protocol.Asset `json:"savings_sbd_balance"`
	VestingShares     protocol.Asset `json:"vesting_shares"`
	DelegatedVesting  protocol.Asset `json:"delegated_vesting_shares"`
	ReceivedVesting   protocol.Asset `json:"received_vesting_shares"`
	VestingWithdraw   protocol.Asset `json:"vesting_withdraw_rate"`
	CurationRewards   int64          `json:"curation_rewards"`
	PostingRewards    int64          `json:"posting_rewards"`
	Proxy             string         `json:"proxy"`
	WitnessesVotedFor uint16         `json:"witnesses_voted_for"`
	LastPost          protocol.Time  `json:"last_post"`
	LastRootPost      protocol.Time  `json:"last_root_post"`
	LifetimeVoteCount uint32         `json:"lifetime_vote_count"`
}

func NewAccount(a *chain.Account) Account {
	return Account{
		ID:                a.ID,
		Name:              a.Name,
		Created:           protocol.NewTime(a.Created),
		Mined:             a.Mined,
		RecoveryAccount:   a.RecoveryAccount,
		JSONMetadata:      a.JSONMetadata,
		PostCount:         a.PostCount,
		CanVote:           a.CanVote,
		VotingPower:       a.VotingPower,
		LastVoteTime:      protocol.NewTime(a.LastVoteTime),
		Balance:           a.Balance,
		SavingsBalance:    a.SavingsBalance,
		SBDBalance:        a.SBDBalance,
		SavingsSBDBalance: a.SavingsSBDBalance,
		VestingShares:     a.VestingShares,
		DelegatedVesting:  a.DelegatedVesting,
		ReceivedVesting:   a.ReceivedVesting,
		VestingWithdraw:   a.VestingWithdraw,
		CurationRewards:   a.CurationRewards,
		PostingRewards:    a.PostingRewards,
		Proxy:             a.Proxy,
		WitnessesVotedFor: a.WitnessesVotedFor,
		LastPost:          protocol.NewTime(a.LastPost),
		LastRootPost:      protocol.NewTime(a.LastRootPost),
		LifetimeVoteCount: a.LifetimeVoteCount,
	}
}

// NameCount is a (name, count) pair. It encodes as a two element array.
type NameCount struct {
	Name  string
	Count uint32
}

func (n NameCount) MarshalJSON() ([]byte, error) {
	name, err := json.Marshal(n.Name)
	if err != nil {
		return nil, err
	}
	out := append([]byte{'['}, name...)
	out = append(out, ',')
	out = strconv.AppendUint(out, uint64(n.Count), 10)
	return append(out, ']'), nil
}

// AppliedOperation is an operation as it appears in account history.
type AppliedOperation struct {
	TrxID      string        `json:"trx_id"`
	Block      uint32        `json:"block"`
	TrxInBlock uint32        `json:"trx_in_block"`
	OpInTrx    uint16        `json:"op_in_trx"`
	VirtualOp  uint64        `json:"virtual_op"`
	Timestamp  protocol.Time `json:"timestamp"`
	Op         [2]any        `json:"op"`
}

func NewAppliedOperation(e *chain.HistoryEntry) AppliedOperation {
	body := json.RawMessage(e.OpBody)
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	return AppliedOperation{
		TrxID:      e.TrxID,
		Block:      e.Block,
		TrxInBlock: e.TrxInBlock,
		OpInTrx:    e.OpInTrx,
		VirtualOp:  e.VirtualOp,
		Timestamp:  protocol.NewTime(e.Timestamp),
		Op:         [2]any{e.OpName, body},
	}
}

// ExtendedAccount is an account together with the page-specific lists
// get_state attaches to it.
type ExtendedAccount struct {
	Account

	VestingBalance  protocol.Asset              `json:"vesting_balance"`
	Reputation      int64                       `json:"reputation"`
	TransferHistory map[uint32]AppliedOperation `json:"transfer_history"`
	MarketHistory   map[uint32]AppliedOperation `json:"market_history"`
	PostHistory     map[uint32]AppliedOperation `json:"post_history"`
	VoteHistory     map[uint32]AppliedOperation `json:"vote_history"`
	OtherHistory    map[uint32]AppliedOperation `json:"other_history"`
	WitnessVotes    []string                    `json:"witness_votes"`
	TagsUsage       []NameCount                 `json:"tags_usage"`
	GuestBloggers   []NameCount                 `json:"guest_bloggers"`
	Comments        *[]string                   `json:"comments,omitempty"`
	Blog            *[]string                   `json:"blog,omitempty"`
	Feed            *[]string                   `json:"feed,omitempty"`
	RecentReplies   *[]string                   `json:"recent_replies,omitempty"`
}

// NewExtendedAccount converts a with its vesting shares priced in GOLOS at
// the current vesting fund ratio.
func NewExtendedAccount(a *chain.Account, props *chain.DynamicGlobalProperties) *ExtendedAccount {
	votes := append([]string{}, a.WitnessVotes...)
	return &ExtendedAccount{
		Account:         NewAccount(a),
		VestingBalance:  vestingBalance(a.VestingShares, props),
		TransferHistory: map[uint32]AppliedOperation{},
		MarketHistory:   map[uint32]AppliedOperation{},
		PostHistory:     map[uint32]AppliedOperation{},
		VoteHistory:     map[uint32]AppliedOperation{},
		OtherHistory:    map[uint32]AppliedOperation{},
		WitnessVotes:    votes,
		TagsUsage:       []NameCount{},
		GuestBloggers:   []NameCount{},
	}
}

func vestingBalance(shares protocol.Asset, props *chain.DynamicGlobalProperties) protocol.Asset {
	price := protocol.Price{Base: props.TotalVestingShares, Quote: props.TotalVestingFund}
	if price.IsNull() || shares.Symbol != props.TotalVestingShares.Symbol {
		return protocol.Asset{Symbol: protocol.GolosSymbol}
	}
	out, err := price.Convert(shares)
	if err != nil {
		return protocol.Asset{Symbol: protocol.GolosSymbol}
	}
	return out
}

// NewStringList returns a pointer to an empty list for optional fields.
func NewStringList() *[]string {
	list := []string{}
	return &list
}

// HistoryItem is one numbered entry of an account history. It encodes as
// [sequence, operation].
type HistoryItem struct {
	Sequence  uint32
	Operation AppliedOperation
}

func (h HistoryItem) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{h.Sequence, h.Operation})
}
