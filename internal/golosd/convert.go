package golosd

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cast"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// fields reads loosely typed node objects. Numbers may arrive as JSON
// numbers or as strings, so every read goes through cast. The first failed
// read is kept in err.
type fields struct {
	m   map[string]interface{}
	err error
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("field %s: %w", key, err)
	}
}

func (f *fields) str(key string) string {
	return cast.ToString(f.m[key])
}

func (f *fields) boolean(key string) bool {
	return cast.ToBool(f.m[key])
}

func (f *fields) int64(key string) int64 {
	v, err := cast.ToInt64E(f.m[key])
	if err != nil {
		f.fail(key, err)
	}
	return v
}

func (f *fields) uint64(key string) uint64 {
	v, err := cast.ToUint64E(f.m[key])
	if err != nil {
		f.fail(key, err)
	}
	return v
}

func (f *fields) time(key string) time.Time {
	s := f.str(key)
	if s == "" {
		return time.Time{}
	}
	t, err := protocol.ParseTime(s)
	if err != nil {
		f.fail(key, err)
	}
	return t
}

func (f *fields) asset(key string, symbol protocol.Symbol) protocol.Asset {
	s := f.str(key)
	if s == "" {
		return protocol.Asset{Symbol: symbol}
	}
	a, err := protocol.ParseAsset(s)
	if err != nil {
		f.fail(key, err)
	}
	return a
}

func (f *fields) u256(key string) uint256.Int {
	var v uint256.Int
	s := f.str(key)
	if s == "" {
		return v
	}
	if err := v.SetFromDecimal(s); err != nil {
		f.fail(key, err)
	}
	return v
}

// CommentFromContent converts a get_content object into a comment record.
func CommentFromContent(m map[string]interface{}) (chain.Comment, error) {
	f := &fields{m: m}
	c := chain.Comment{
		Author:         f.str("author"),
		Permlink:       f.str("permlink"),
		ParentAuthor:   f.str("parent_author"),
		ParentPermlink: f.str("parent_permlink"),
		Category:       f.str("category"),
		Title:          f.str("title"),
		Body:           f.str("body"),
		JSONMetadata:   f.str("json_metadata"),

		LastUpdate:     f.time("last_update"),
		Created:        f.time("created"),
		Active:         f.time("active"),
		LastPayout:     f.time("last_payout"),
		CashoutTime:    f.time("cashout_time"),
		MaxCashoutTime: f.time("max_cashout_time"),

		Depth:    uint16(f.uint64("depth")),
		Children: uint32(f.uint64("children")),

		NetRshares:         f.int64("net_rshares"),
		AbsRshares:         f.int64("abs_rshares"),
		VoteRshares:        f.int64("vote_rshares"),
		ChildrenAbsRshares: f.int64("children_abs_rshares"),
		ChildrenRshares2:   f.u256("children_rshares2"),
		TotalVoteWeight:    f.uint64("total_vote_weight"),
		NetVotes:           int32(f.int64("net_votes")),

		RewardWeight:         uint16(f.uint64("reward_weight")),
		TotalPayoutValue:     f.asset("total_payout_value", protocol.GBGSymbol),
		CuratorPayoutValue:   f.asset("curator_payout_value", protocol.GBGSymbol),
		AuthorRewards:        f.int64("author_rewards"),
		MaxAcceptedPayout:    f.asset("max_accepted_payout", protocol.GBGSymbol),
		PercentSteemDollars:  uint16(f.uint64("percent_steem_dollars")),
		AllowReplies:         f.boolean("allow_replies"),
		AllowVotes:           f.boolean("allow_votes"),
		AllowCurationRewards: f.boolean("allow_curation_rewards"),
		RewardFund:           chain.DefaultRewardFund,
	}
	if c.Author == "" || c.Permlink == "" {
		return c, fmt.Errorf("content without author or permlink")
	}
	return c, f.err
}

// VoteFromActiveVote converts a get_active_votes entry.
func VoteFromActiveVote(m map[string]interface{}) (chain.CommentVote, error) {
	f := &fields{m: m}
	v := chain.CommentVote{
		Voter:       f.str("voter"),
		Weight:      f.uint64("weight"),
		Rshares:     f.int64("rshares"),
		VotePercent: int16(f.int64("percent")),
		LastUpdate:  f.time("time"),
	}
	if v.Voter == "" {
		return v, fmt.Errorf("vote without voter")
	}
	return v, f.err
}

// AccountFromObject converts a get_accounts entry.
func AccountFromObject(m map[string]interface{}) (chain.Account, error) {
	f := &fields{m: m}
	a := chain.Account{
		Name:              f.str("name"),
		Created:           f.time("created"),
		Mined:             f.boolean("mined"),
		RecoveryAccount:   f.str("recovery_account"),
		JSONMetadata:      f.str("json_metadata"),
		PostCount:         uint32(f.uint64("post_count")),
		CanVote:           f.boolean("can_vote"),
		VotingPower:       uint16(f.uint64("voting_power")),
		LastVoteTime:      f.time("last_vote_time"),
		Balance:           f.asset("balance", protocol.GolosSymbol),
		SavingsBalance:    f.asset("savings_balance", protocol.GolosSymbol),
		SBDBalance:        f.asset("sbd_balance", protocol.GBGSymbol),
		SavingsSBDBalance: f.asset("savings_sbd_balance", protocol.GBGSymbol),
		VestingShares:     f.asset("vesting_shares", protocol.GestsSymbol),
		DelegatedVesting:  f.asset("delegated_vesting_shares", protocol.GestsSymbol),
		ReceivedVesting:   f.asset("received_vesting_shares", protocol.GestsSymbol),
		VestingWithdraw:   f.asset("vesting_withdraw_rate", protocol.GestsSymbol),
		CurationRewards:   f.int64("curation_rewards"),
		PostingRewards:    f.int64("posting_rewards"),
		Proxy:             f.str("proxy"),
		WitnessesVotedFor: uint16(f.uint64("witnesses_voted_for")),
		WitnessVotes:      cast.ToStringSlice(m["witness_votes"]),
		LastPost:          f.time("last_post"),
		LastRootPost:      f.time("last_root_post"),
		LifetimeVoteCount: uint32(f.uint64("lifetime_vote_count")),
	}
	if a.Name == "" {
		return a, fmt.Errorf("account without name")
	}
	return a, f.err
}
