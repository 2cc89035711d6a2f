package indexer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// MarketIndexer keeps the internal market's open orders and fill history.
type MarketIndexer struct {
	db     *chain.Database
	logger *zap.Logger
}

func NewMarketIndexer(db *chain.Database, logger *zap.Logger) *MarketIndexer {
	return &MarketIndexer{db: db, logger: logger}
}

// CreateOrder stores an order placed with limit_order_create.
func (mi *MarketIndexer) CreateOrder(op limitOrderCreateOp, blockDate time.Time) error {
	return mi.store(op.Owner, op.OrderID, op.AmountToSell, protocol.Price{
		Base:  op.AmountToSell,
		Quote: op.MinToReceive,
	}, op.Expiration.Time, blockDate)
}

// CreateOrder2 stores an order placed with an explicit exchange rate.
func (mi *MarketIndexer) CreateOrder2(op limitOrderCreate2Op, blockDate time.Time) error {
	return mi.store(op.Owner, op.OrderID, op.AmountToSell, op.ExchangeRate, op.Expiration.Time, blockDate)
}

func (mi *MarketIndexer) store(owner string, orderID uint32, forSale protocol.Asset, price protocol.Price, expiration, created time.Time) error {
	if forSale.Symbol != price.Base.Symbol {
		return fmt.Errorf("order %s/%d sells %s at a %s price", owner, orderID, forSale.Symbol.Name, price.Base.Symbol.Name)
	}
	_, err := mi.db.StoreLimitOrder(chain.LimitOrder{
		OrderID:    orderID,
		Seller:     owner,
		Created:    created,
		Expiration: expiration,
		ForSale:    forSale.Amount,
		SellPrice:  price,
	})
	return err
}

// CancelOrder removes an order.
func (mi *MarketIndexer) CancelOrder(op limitOrderCancelOp) error {
	return mi.db.RemoveLimitOrder(op.Owner, op.OrderID)
}

// Fill records a trade and takes the paid amounts off both orders.
func (mi *MarketIndexer) Fill(op fillOrderOp, blockDate time.Time) error {
	if _, err := mi.db.AppendTrade(chain.Trade{
		Time:        blockDate,
		CurrentPays: op.CurrentPays,
		OpenPays:    op.OpenPays,
	}); err != nil {
		return err
	}
	if err := mi.reduce(op.CurrentOwner, op.CurrentOrderID, op.CurrentPays); err != nil {
		return err
	}
	return mi.reduce(op.OpenOwner, op.OpenOrderID, op.OpenPays)
}

func (mi *MarketIndexer) reduce(owner string, orderID uint32, paid protocol.Asset) error {
	order, ok := mi.db.LimitOrders.Find(owner, orderID)
	if !ok {
		return nil
	}
	if order.ForSale <= paid.Amount {
		return mi.db.LimitOrders.Remove(order)
	}
	return mi.db.LimitOrders.Modify(order, func(o *chain.LimitOrder) {
		o.ForSale -= paid.Amount
	})
}

// Expire drops orders whose expiration has passed.
func (mi *MarketIndexer) Expire(now time.Time) error {
	var expired []*chain.LimitOrder
	mi.db.LimitOrders.All(func(o *chain.LimitOrder) bool {
		if !o.Expiration.IsZero() && !o.Expiration.After(now) {
			expired = append(expired, o)
		}
		return true
	})
	for _, o := range expired {
		if err := mi.db.LimitOrders.Remove(o); err != nil {
			return err
		}
	}
	if len(expired) > 0 {
		mi.logger.Debug("Expired limit orders", zap.Int("count", len(expired)))
	}
	return nil
}
