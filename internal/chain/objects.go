package chain

import (
	"cmp"
	"time"

	"github.com/holiman/uint256"

	"github.com/golos/golosmind/internal/protocol"
)

const (
	// MaxShareSupply bounds every share amount on the chain.
	MaxShareSupply int64 = 1000000000000000

	// MaxBodyLength and MaxReplyBodyLength cap the text returned for posts
	// and replies.
	MaxBodyLength      = 1024 * 128
	MaxReplyBodyLength = 1024 * 16

	DefaultRewardFund = "post"
)

// Comment is a post or a reply.
type Comment struct {
	ObjectBase

	Author         string
	Permlink       string
	ParentAuthor   string
	ParentPermlink string
	Category       string
	Title          string
	Body           string
	JSONMetadata   string

	LastUpdate     time.Time
	Created        time.Time
	Active         time.Time
	LastPayout     time.Time
	CashoutTime    time.Time
	MaxCashoutTime time.Time

	Depth    uint16
	Children uint32

	NetRshares         int64
	AbsRshares         int64
	VoteRshares        int64
	ChildrenAbsRshares int64
	ChildrenRshares2   uint256.Int
	TotalVoteWeight    uint64
	NetVotes           int32

	RewardWeight         uint16
	TotalPayoutValue     protocol.Asset
	CuratorPayoutValue   protocol.Asset
	AuthorRewards        int64
	MaxAcceptedPayout    protocol.Asset
	PercentSteemDollars  uint16
	AllowReplies         bool
	AllowVotes           bool
	AllowCurationRewards bool
	RewardFund           string

	RootComment ID
}

// IsRoot reports whether the comment is a top-level post.
func (c *Comment) IsRoot() bool {
	return c.ParentAuthor == protocol.RootPostParent
}

// AuthorPermlink returns the "author/permlink" key used by content maps.
func (c *Comment) AuthorPermlink() string {
	return c.Author + "/" + c.Permlink
}

type CommentTable struct {
	*Table[Comment, *Comment]

	ByPermlink         *Index[Comment, *Comment]
	ByParent           *Index[Comment, *Comment]
	ByLastUpdate       *Index[Comment, *Comment]
	ByAuthorLastUpdate *Index[Comment, *Comment]
	ByRoot             *Index[Comment, *Comment]
}

func newCommentTable(db *Database) *CommentTable {
	t := &CommentTable{Table: NewTable[Comment, *Comment](db, "comment")}
	t.SetKey(func(c *Comment) string { return c.AuthorPermlink() })

	t.ByPermlink = t.AddUniqueIndex("by_permlink", func(a, b *Comment) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			cmp.Compare(a.Permlink, b.Permlink),
		) < 0
	})
	t.ByParent = t.AddIndex("by_parent", func(a, b *Comment) bool {
		return cmp.Or(
			cmp.Compare(a.ParentAuthor, b.ParentAuthor),
			cmp.Compare(a.ParentPermlink, b.ParentPermlink),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	t.ByLastUpdate = t.AddIndex("by_last_update", func(a, b *Comment) bool {
		return cmp.Or(
			cmp.Compare(a.ParentAuthor, b.ParentAuthor),
			b.LastUpdate.Compare(a.LastUpdate),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	t.ByAuthorLastUpdate = t.AddIndex("by_author_last_update", func(a, b *Comment) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			b.LastUpdate.Compare(a.LastUpdate),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	t.ByRoot = t.AddIndex("by_root", func(a, b *Comment) bool {
		return cmp.Or(
			cmp.Compare(a.RootComment, b.RootComment),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	return t
}

// Find looks a comment up by author and permlink.
func (t *CommentTable) Find(author, permlink string) (*Comment, bool) {
	return t.ByPermlink.Find(&Comment{Author: author, Permlink: permlink})
}

// Replies returns the direct replies of (author, permlink) in creation order.
func (t *CommentTable) Replies(author, permlink string) []*Comment {
	var out []*Comment
	t.ByParent.AscendFrom(&Comment{ParentAuthor: author, ParentPermlink: permlink}, func(c *Comment) bool {
		if c.ParentAuthor != author || c.ParentPermlink != permlink {
			return false
		}
		out = append(out, c)
		return true
	})
	return out
}

// CommentVote is one account's vote on one comment.
type CommentVote struct {
	ObjectBase

	Voter       string
	Comment     ID
	Weight      uint64
	Rshares     int64
	VotePercent int16
	LastUpdate  time.Time
	NumChanges  int8
}

type VoteTable struct {
	*Table[CommentVote, *CommentVote]

	ByCommentVoter *Index[CommentVote, *CommentVote]
	ByVoterComment *Index[CommentVote, *CommentVote]
}

func newVoteTable(db *Database) *VoteTable {
	t := &VoteTable{Table: NewTable[CommentVote, *CommentVote](db, "comment_vote")}
	t.ByCommentVoter = t.AddUniqueIndex("by_comment_voter", func(a, b *CommentVote) bool {
		return cmp.Or(
			cmp.Compare(a.Comment, b.Comment),
			cmp.Compare(a.Voter, b.Voter),
		) < 0
	})
	t.ByVoterComment = t.AddUniqueIndex("by_voter_comment", func(a, b *CommentVote) bool {
		return cmp.Or(
			cmp.Compare(a.Voter, b.Voter),
			cmp.Compare(a.Comment, b.Comment),
		) < 0
	})
	return t
}

// ForComment returns the votes cast on a comment, ordered by voter.
func (t *VoteTable) ForComment(comment ID) []*CommentVote {
	var out []*CommentVote
	t.ByCommentVoter.AscendFrom(&CommentVote{Comment: comment}, func(v *CommentVote) bool {
		if v.Comment != comment {
			return false
		}
		out = append(out, v)
		return true
	})
	return out
}

// ByVoter returns the votes cast by voter, ordered by comment.
func (t *VoteTable) ByVoter(voter string) []*CommentVote {
	var out []*CommentVote
	t.ByVoterComment.AscendFrom(&CommentVote{Voter: voter}, func(v *CommentVote) bool {
		if v.Voter != voter {
			return false
		}
		out = append(out, v)
		return true
	})
	return out
}

type Account struct {
	ObjectBase

	Name              string
	Created           time.Time
	Mined             bool
	RecoveryAccount   string
	JSONMetadata      string
	PostCount         uint32
	CanVote           bool
	VotingPower       uint16
	LastVoteTime      time.Time
	Balance           protocol.Asset
	SavingsBalance    protocol.Asset
	SBDBalance        protocol.Asset
	SavingsSBDBalance protocol.Asset
	VestingShares     protocol.Asset
	DelegatedVesting  protocol.Asset
	ReceivedVesting   protocol.Asset
	VestingWithdraw   protocol.Asset
	CurationRewards   int64
	PostingRewards    int64
	Proxy             string
	WitnessesVotedFor uint16
	WitnessVotes      []string
	LastPost          time.Time
	LastRootPost      time.Time
	LifetimeVoteCount uint32
}

type AccountTable struct {
	*Table[Account, *Account]

	ByName *Index[Account, *Account]
}

func newAccountTable(db *Database) *AccountTable {
	t := &AccountTable{Table: NewTable[Account, *Account](db, "account")}
	t.SetKey(func(a *Account) string { return a.Name })
	t.ByName = t.AddUniqueIndex("by_name", func(a, b *Account) bool {
		return a.Name < b.Name
	})
	return t
}

func (t *AccountTable) Find(name string) (*Account, bool) {
	return t.ByName.Find(&Account{Name: name})
}

// RewardCurve selects how rshares map onto reward shares.
type RewardCurve uint8

const (
	CurveQuadratic RewardCurve = iota
	CurveLinear
)

// RewardFund is a named pool paid out to content.
type RewardFund struct {
	ObjectBase

	Name                   string
	RewardBalance          protocol.Asset
	RecentClaims           uint256.Int
	LastUpdate             time.Time
	ContentConstant        uint256.Int
	PercentCurationRewards uint16
	PercentContentRewards  uint16
	AuthorRewardCurve      RewardCurve
	CurationRewardCurve    RewardCurve
}

type RewardFundTable struct {
	*Table[RewardFund, *RewardFund]

	ByName *Index[RewardFund, *RewardFund]
}

func newRewardFundTable(db *Database) *RewardFundTable {
	t := &RewardFundTable{Table: NewTable[RewardFund, *RewardFund](db, "reward_fund")}
	t.ByName = t.AddUniqueIndex("by_name", func(a, b *RewardFund) bool {
		return a.Name < b.Name
	})
	return t
}

func (t *RewardFundTable) Find(name string) (*RewardFund, bool) {
	return t.ByName.Find(&RewardFund{Name: name})
}

// ChainProperties are the median witness-voted parameters.
type ChainProperties struct {
	AccountCreationFee protocol.Asset `json:"account_creation_fee"`
	MaximumBlockSize   uint32         `json:"maximum_block_size"`
	SBDInterestRate    uint16         `json:"sbd_interest_rate"`
}

type Witness struct {
	ObjectBase

	Owner                 string
	Created               time.Time
	URL                   string
	Votes                 int64
	TotalMissed           uint32
	LastAslot             uint64
	LastConfirmedBlockNum uint64
	PowWorker             uint64
	SigningKey            string
	Props                 ChainProperties
	SBDExchangeRate       protocol.Price
	LastSBDExchangeUpdate time.Time
	RunningVersion        string
}

type WitnessTable struct {
	*Table[Witness, *Witness]

	ByName *Index[Witness, *Witness]
	ByVote *Index[Witness, *Witness]
	ByPow  *Index[Witness, *Witness]
}

func newWitnessTable(db *Database) *WitnessTable {
	t := &WitnessTable{Table: NewTable[Witness, *Witness](db, "witness")}
	t.SetKey(func(w *Witness) string { return "witness:" + w.Owner })
	t.ByName = t.AddUniqueIndex("by_name", func(a, b *Witness) bool {
		return a.Owner < b.Owner
	})
	t.ByVote = t.AddIndex("by_vote", func(a, b *Witness) bool {
		return cmp.Or(
			cmp.Compare(b.Votes, a.Votes),
			cmp.Compare(a.Owner, b.Owner),
		) < 0
	})
	t.ByPow = t.AddIndex("by_pow", func(a, b *Witness) bool {
		return cmp.Or(
			cmp.Compare(a.PowWorker, b.PowWorker),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	return t
}

func (t *WitnessTable) Find(owner string) (*Witness, bool) {
	return t.ByName.Find(&Witness{Owner: owner})
}

// LimitOrder is an open order selling SellPrice.Base for SellPrice.Quote.
type LimitOrder struct {
	ObjectBase

	OrderID    uint32
	Seller     string
	Created    time.Time
	Expiration time.Time
	ForSale    int64
	SellPrice  protocol.Price
}

type LimitOrderTable struct {
	*Table[LimitOrder, *LimitOrder]

	ByPrice   *Index[LimitOrder, *LimitOrder]
	ByAccount *Index[LimitOrder, *LimitOrder]
}

func newLimitOrderTable(db *Database) *LimitOrderTable {
	t := &LimitOrderTable{Table: NewTable[LimitOrder, *LimitOrder](db, "limit_order")}
	t.ByPrice = t.AddIndex("by_price", func(a, b *LimitOrder) bool {
		return cmp.Or(
			cmp.Compare(a.SellPrice.Base.Symbol.Name, b.SellPrice.Base.Symbol.Name),
			cmp.Compare(a.SellPrice.Quote.Symbol.Name, b.SellPrice.Quote.Symbol.Name),
			-ComparePrices(a.SellPrice, b.SellPrice),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	t.ByAccount = t.AddUniqueIndex("by_account", func(a, b *LimitOrder) bool {
		return cmp.Or(
			cmp.Compare(a.Seller, b.Seller),
			cmp.Compare(a.OrderID, b.OrderID),
		) < 0
	})
	return t
}

func (t *LimitOrderTable) Find(seller string, orderID uint32) (*LimitOrder, bool) {
	return t.ByAccount.Find(&LimitOrder{Seller: seller, OrderID: orderID})
}

// ComparePrices orders prices of the same market by base/quote ratio.
func ComparePrices(a, b protocol.Price) int {
	left := new(uint256.Int).Mul(uint256.NewInt(uint64(max(a.Base.Amount, 0))), uint256.NewInt(uint64(max(b.Quote.Amount, 0))))
	right := new(uint256.Int).Mul(uint256.NewInt(uint64(max(b.Base.Amount, 0))), uint256.NewInt(uint64(max(a.Quote.Amount, 0))))
	return left.Cmp(right)
}

// Trade is a filled order pair recorded by market history.
type Trade struct {
	ObjectBase

	Time        time.Time
	CurrentPays protocol.Asset
	OpenPays    protocol.Asset
}

type TradeTable struct {
	*Table[Trade, *Trade]

	ByTime *Index[Trade, *Trade]
}

func newTradeTable(db *Database) *TradeTable {
	t := &TradeTable{Table: NewTable[Trade, *Trade](db, "order_history")}
	t.ByTime = t.AddIndex("by_time", func(a, b *Trade) bool {
		return cmp.Or(
			a.Time.Compare(b.Time),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	return t
}

// HistoryEntry is one operation in an account's history.
type HistoryEntry struct {
	ObjectBase

	Account    string
	Sequence   uint32
	TrxID      string
	Block      uint32
	TrxInBlock uint32
	OpInTrx    uint16
	VirtualOp  uint64
	Timestamp  time.Time
	OpName     string
	OpBody     []byte
}

type HistoryTable struct {
	*Table[HistoryEntry, *HistoryEntry]

	ByAccount *Index[HistoryEntry, *HistoryEntry]
}

func newHistoryTable(db *Database) *HistoryTable {
	t := &HistoryTable{Table: NewTable[HistoryEntry, *HistoryEntry](db, "account_history")}
	t.ByAccount = t.AddUniqueIndex("by_account", func(a, b *HistoryEntry) bool {
		return cmp.Or(
			cmp.Compare(a.Account, b.Account),
			cmp.Compare(b.Sequence, a.Sequence),
		) < 0
	})
	return t
}

// LastSequence returns the sequence of the account's newest entry.
func (t *HistoryTable) LastSequence(account string) (uint32, bool) {
	e, ok := t.ByAccount.LowerBound(&HistoryEntry{Account: account, Sequence: ^uint32(0)})
	if !ok || e.Account != account {
		return 0, false
	}
	return e.Sequence, true
}

// DynamicGlobalProperties tracks the head of the chain and global supplies.
type DynamicGlobalProperties struct {
	HeadBlockNumber          uint32
	HeadBlockID              string
	Time                     time.Time
	CurrentWitness           string
	TotalPow                 uint64
	NumPowWitnesses          uint32
	VirtualSupply            protocol.Asset
	CurrentSupply            protocol.Asset
	CurrentSBDSupply         protocol.Asset
	TotalVestingFund         protocol.Asset
	TotalVestingShares       protocol.Asset
	TotalRewardFundSteem     protocol.Asset
	TotalRewardShares2       uint256.Int
	SBDInterestRate          uint16
	SBDPrintRate             uint16
	AverageBlockSize         uint32
	MaximumBlockSize         uint32
	CurrentAslot             uint64
	RecentSlotsFilled        string
	ParticipationCount       uint8
	LastIrreversibleBlockNum uint32
	MaxVirtualBandwidth      string
	CurrentReserveRatio      uint64
}

// FeedHistory holds the median price of GBG in GOLOS.
type FeedHistory struct {
	CurrentMedianHistory protocol.Price
	PriceHistory         []protocol.Price
}

type WitnessSchedule struct {
	CurrentVirtualTime       string
	NextShuffleBlockNum      uint32
	CurrentShuffledWitnesses []string
	NumScheduledWitnesses    uint8
	MedianProps              ChainProperties
	MajorityVersion          string
}
