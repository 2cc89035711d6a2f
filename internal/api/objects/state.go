package objects

import (
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
)

// DynamicGlobalProperties is the API form of the chain head properties.
type DynamicGlobalProperties struct {
	HeadBlockNumber          uint32         `json:"head_block_number"`
	HeadBlockID              string         `json:"head_block_id"`
	Time                     protocol.Time  `json:"time"`
	CurrentWitness           string         `json:"current_witness"`
	TotalPow                 uint64         `json:"total_pow"`
	NumPowWitnesses          uint32         `json:"num_pow_witnesses"`
	VirtualSupply            protocol.Asset `json:"virtual_supply"`
	CurrentSupply            protocol.Asset `json:"current_supply"`
	ConfidentialSupply       protocol.Asset `json:"confidential_supply"`
	CurrentSBDSupply         protocol.Asset `json:"current_sbd_supply"`
	ConfidentialSBDSupply    protocol.Asset `json:"confidential_sbd_supply"`
	TotalVestingFund         protocol.Asset `json:"total_vesting_fund_steem"`
	TotalVestingShares       protocol.Asset `json:"total_vesting_shares"`
	TotalRewardFundSteem     protocol.Asset `json:"total_reward_fund_steem"`
	TotalRewardShares2       string         `json:"total_reward_shares2"`
	SBDInterestRate          uint16         `json:"sbd_interest_rate"`
	SBDPrintRate             uint16         `json:"sbd_print_rate"`
	AverageBlockSize         uint32         `json:"average_block_size"`
	MaximumBlockSize         uint32         `json:"maximum_block_size"`
	CurrentAslot             uint64         `json:"current_aslot"`
	RecentSlotsFilled        string         `json:"recent_slots_filled"`
	ParticipationCount       uint8          `json:"participation_count"`
	LastIrreversibleBlockNum uint32         `json:"last_irreversible_block_num"`
	MaxVirtualBandwidth      string         `json:"max_virtual_bandwidth"`
	CurrentReserveRatio      uint64         `json:"current_reserve_ratio"`
}

func NewDynamicGlobalProperties(p *chain.DynamicGlobalProperties) DynamicGlobalProperties {
	return DynamicGlobalProperties{
		HeadBlockNumber:          p.HeadBlockNumber,
		HeadBlockID:              p.HeadBlockID,
		Time:                     protocol.NewTime(p.Time),
		CurrentWitness:           p.CurrentWitness,
		TotalPow:                 p.TotalPow,
		NumPowWitnesses:          p.NumPowWitnesses,
		VirtualSupply:            p.VirtualSupply,
		CurrentSupply:            p.CurrentSupply,
		ConfidentialSupply:       protocol.Asset{Symbol: protocol.GolosSymbol},
		CurrentSBDSupply:         p.CurrentSBDSupply,
		ConfidentialSBDSupply:    protocol.Asset{Symbol: protocol.GBGSymbol},
		TotalVestingFund:         p.TotalVestingFund,
		TotalVestingShares:       p.TotalVestingShares,
		TotalRewardFundSteem:     p.TotalRewardFundSteem,
		TotalRewardShares2:       p.TotalRewardShares2.Dec(),
		SBDInterestRate:          p.SBDInterestRate,
		SBDPrintRate:             p.SBDPrintRate,
		AverageBlockSize:         p.AverageBlockSize,
		MaximumBlockSize:         p.MaximumBlockSize,
		CurrentAslot:             p.CurrentAslot,
		RecentSlotsFilled:        p.RecentSlotsFilled,
		ParticipationCount:       p.ParticipationCount,
		LastIrreversibleBlockNum: p.LastIrreversibleBlockNum,
		MaxVirtualBandwidth:      p.MaxVirtualBandwidth,
		CurrentReserveRatio:      p.CurrentReserveRatio,
	}
}

type FeedHistory struct {
	CurrentMedianHistory protocol.Price   `json:"current_median_history"`
	PriceHistory         []protocol.Price `json:"price_history"`
}

func NewFeedHistory(h *chain.FeedHistory) FeedHistory {
	return FeedHistory{
		CurrentMedianHistory: h.CurrentMedianHistory,
		PriceHistory:         append([]protocol.Price{}, h.PriceHistory...),
	}
}

type RewardFund struct {
	ID                     chain.ID       `json:"id"`
	Name                   string         `json:"name"`
	RewardBalance          protocol.Asset `json:"reward_balance"`
	RecentClaims           string         `json:"recent_claims"`
	LastUpdate             protocol.Time  `json:"last_update"`
	ContentConstant        string         `json:"content_constant"`
	PercentCurationRewards uint16         `json:"percent_curation_rewards"`
	PercentContentRewards  uint16         `json:"percent_content_rewards"`
	AuthorRewardCurve      string         `json:"author_reward_curve"`
	CurationRewardCurve    string         `json:"curation_reward_curve"`
}

func NewRewardFund(f *chain.RewardFund) RewardFund {
	return RewardFund{
		ID:                     f.ID,
		Name:                   f.Name,
		RewardBalance:          f.RewardBalance,
		RecentClaims:           f.RecentClaims.Dec(),
		LastUpdate:             protocol.NewTime(f.LastUpdate),
		ContentConstant:        f.ContentConstant.Dec(),
		PercentCurationRewards: f.PercentCurationRewards,
		PercentContentRewards:  f.PercentContentRewards,
		AuthorRewardCurve:      curveName(f.AuthorRewardCurve),
		CurationRewardCurve:    curveName(f.CurationRewardCurve),
	}
}

func curveName(c chain.RewardCurve) string {
	if c == chain.CurveLinear {
		return "linear"
	}
	return "quadratic"
}

type Witness struct {
	ID                    chain.ID              `json:"id"`
	Owner                 string                `json:"owner"`
	Created               protocol.Time         `json:"created"`
	URL                   string                `json:"url"`
	Votes                 int64                 `json:"votes"`
	TotalMissed           uint32                `json:"total_missed"`
	LastAslot             uint64                `json:"last_aslot"`
	LastConfirmedBlockNum uint64                `json:"last_confirmed_block_num"`
	PowWorker             uint64                `json:"pow_worker"`
	SigningKey            string                `json:"signing_key"`
	Props                 chain.ChainProperties `json:"props"`
	SBDExchangeRate       protocol.Price        `json:"sbd_exchange_rate"`
	LastSBDExchangeUpdate protocol.Time         `json:"last_sbd_exchange_update"`
	RunningVersion        string                `json:"running_version"`
}

func NewWitness(w *chain.Witness) Witness {
	return Witness{
		ID:                    w.ID,
		Owner:                 w.Owner,
		Created:               protocol.NewTime(w.Created),
		URL:                   w.URL,
		Votes:                 w.Votes,
		TotalMissed:           w.TotalMissed,
		LastAslot:             w.LastAslot,
		LastConfirmedBlockNum: w.LastConfirmedBlockNum,
		PowWorker:             w.PowWorker,
		SigningKey:            w.SigningKey,
		Props:                 w.Props,
		SBDExchangeRate:       w.SBDExchangeRate,
		LastSBDExchangeUpdate: protocol.NewTime(w.LastSBDExchangeUpdate),
		RunningVersion:        w.RunningVersion,
	}
}

type WitnessSchedule struct {
	CurrentVirtualTime       string                `json:"current_virtual_time"`
	NextShuffleBlockNum      uint32                `json:"next_shuffle_block_num"`
	CurrentShuffledWitnesses []string              `json:"current_shuffled_witnesses"`
	NumScheduledWitnesses    uint8                 `json:"num_scheduled_witnesses"`
	MedianProps              chain.ChainProperties `json:"median_props"`
	MajorityVersion          string                `json:"majority_version"`
}

func NewWitnessSchedule(s *chain.WitnessSchedule) WitnessSchedule {
	return WitnessSchedule{
		CurrentVirtualTime:       s.CurrentVirtualTime,
		NextShuffleBlockNum:      s.NextShuffleBlockNum,
		CurrentShuffledWitnesses: append([]string{}, s.CurrentShuffledWitnesses...),
		NumScheduledWitnesses:    s.NumScheduledWitnesses,
		MedianProps:              s.MedianProps,
		MajorityVersion:          s.MajorityVersion,
	}
}

// Tag is the API form of a tag's aggregate stats.
type Tag struct {
	Name                  string         `json:"name"`
	TotalChildrenRshares2 string         `json:"total_children_rshares2"`
	TotalPayouts          protocol.Asset `json:"total_payouts"`
	NetVotes              int32          `json:"net_votes"`
	TopPosts              uint32         `json:"top_posts"`
	Comments              uint32         `json:"comments"`
}

func NewTag(s *tags.Stats) Tag {
	return Tag{
		Name:                  protocol.PruneInvalidUTF8(s.Name),
		TotalChildrenRshares2: s.TotalChildrenRshares2.Dec(),
		TotalPayouts:          protocol.NewAsset(s.TotalPayout, protocol.GBGSymbol),
		NetVotes:              s.NetVotes,
		TopPosts:              s.TopPosts,
		Comments:              s.Comments,
	}
}

// DiscussionIndex lists content keys of one tag per ranking.
type DiscussionIndex struct {
	Category       string   `json:"category"`
	Trending       []string `json:"trending"`
	Payout         []string `json:"payout"`
	PayoutComments []string `json:"payout_comments"`
	Trending30     []string `json:"trending30"`
	Updated        []string `json:"updated"`
	Created        []string `json:"created"`
	Responses      []string `json:"responses"`
	Active         []string `json:"active"`
	Votes          []string `json:"votes"`
	Maturing       []string `json:"maturing"`
	Best           []string `json:"best"`
	Hot            []string `json:"hot"`
	Promoted       []string `json:"promoted"`
	Cashout        []string `json:"cashout"`
}

func NewDiscussionIndex(category string) *DiscussionIndex {
	return &DiscussionIndex{
		Category:       category,
		Trending:       []string{},
		Payout:         []string{},
		PayoutComments: []string{},
		Trending30:     []string{},
		Updated:        []string{},
		Created:        []string{},
		Responses:      []string{},
		Active:         []string{},
		Votes:          []string{},
		Maturing:       []string{},
		Best:           []string{},
		Hot:            []string{},
		Promoted:       []string{},
		Cashout:        []string{},
	}
}

type CategoryIndex struct {
	Active []string `json:"active"`
	Recent []string `json:"recent"`
	Best   []string `json:"best"`
}

type TagIndex struct {
	Trending []string `json:"trending"`
}

// State is the composite page view returned by get_state.
type State struct {
	CurrentRoute    string                      `json:"current_route"`
	Props           DynamicGlobalProperties     `json:"props"`
	CategoryIdx     CategoryIndex               `json:"category_idx"`
	TagIdx          TagIndex                    `json:"tag_idx"`
	Categories      map[string]struct{}         `json:"categories"`
	Tags            map[string]Tag              `json:"tags"`
	Content         map[string]*Discussion      `json:"content"`
	Accounts        map[string]*ExtendedAccount `json:"accounts"`
	PowQueue        []string                    `json:"pow_queue"`
	Witnesses       map[string]Witness          `json:"witnesses"`
	DiscussionIdx   map[string]*DiscussionIndex `json:"discussion_idx"`
	WitnessSchedule WitnessSchedule             `json:"witness_schedule"`
	FeedPrice       protocol.Price              `json:"feed_price"`
	Error           string                      `json:"error"`
	MarketData      *MarketData                 `json:"market_data,omitempty"`
}

func NewState(route string) *State {
	return &State{
		CurrentRoute:  route,
		CategoryIdx:   CategoryIndex{Active: []string{}, Recent: []string{}, Best: []string{}},
		TagIdx:        TagIndex{Trending: []string{}},
		Categories:    map[string]struct{}{},
		Tags:          map[string]Tag{},
		Content:       map[string]*Discussion{},
		Accounts:      map[string]*ExtendedAccount{},
		PowQueue:      []string{},
		Witnesses:     map[string]Witness{},
		DiscussionIdx: map[string]*DiscussionIndex{},
	}
}

// DiscussionIndexFor returns the index of tag, creating it on first use.
func (s *State) DiscussionIndexFor(tag string) *DiscussionIndex {
	idx, ok := s.DiscussionIdx[tag]
	if !ok {
		idx = NewDiscussionIndex(tag)
		s.DiscussionIdx[tag] = idx
	}
	return idx
}
