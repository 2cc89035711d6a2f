package chain

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/golos/golosmind/internal/protocol"
)

// DefaultContentConstant is the curve offset used before reward funds carry
// their own.
const DefaultContentConstant uint64 = 2000000000000

// CalculateVShares maps rshares onto reward shares. Negative rshares earn
// nothing.
func CalculateVShares(rshares int64, fund *RewardFund) *uint256.Int {
	r := uint256.NewInt(uint64(max(rshares, 0)))
	if fund != nil && fund.AuthorRewardCurve == CurveLinear {
		return r
	}

	s := uint256.NewInt(DefaultContentConstant)
	if fund != nil && !fund.ContentConstant.IsZero() {
		s = new(uint256.Int).Set(&fund.ContentConstant)
	}

	sum := new(uint256.Int).Add(r, s)
	sum.Mul(sum, sum)
	return sum.Sub(sum, new(uint256.Int).Mul(s, s))
}

// RewardPool returns the pot and the total claims a comment's payout is
// measured against, plus the reward fund when one exists.
func (db *Database) RewardPool(c *Comment) (protocol.Asset, *uint256.Int, *RewardFund) {
	name := c.RewardFund
	if name == "" {
		name = DefaultRewardFund
	}
	if fund, ok := db.RewardFunds.Find(name); ok {
		return fund.RewardBalance, new(uint256.Int).Set(&fund.RecentClaims), fund
	}
	props := db.Props.Get()
	return props.TotalRewardFundSteem, new(uint256.Int).Set(&props.TotalRewardShares2), nil
}

// PayoutShare returns shares*pot/total, floored, in the pot's symbol.
func PayoutShare(shares *uint256.Int, pot protocol.Asset, total *uint256.Int) protocol.Asset {
	if total.IsZero() || pot.Amount <= 0 {
		return protocol.Asset{Symbol: pot.Symbol}
	}
	r := new(uint256.Int).Mul(shares, uint256.NewInt(uint64(pot.Amount)))
	r.Div(r, total)
	if !r.IsUint64() || r.Uint64() > uint64(MaxShareSupply) {
		return protocol.Asset{Amount: MaxShareSupply, Symbol: pot.Symbol}
	}
	return protocol.Asset{Amount: int64(r.Uint64()), Symbol: pot.Symbol}
}

// DiscussionPayoutTime returns when a comment's thread pays out. Replies pay
// out with their root post.
func (db *Database) DiscussionPayoutTime(c *Comment) time.Time {
	if c.IsRoot() || c.RootComment == c.ID {
		return c.CashoutTime
	}
	if root, ok := db.Comments.Get(c.RootComment); ok {
		return root.CashoutTime
	}
	return c.CashoutTime
}
