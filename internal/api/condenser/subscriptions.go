package condenser

import (
	"context"

	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/session"
)

// ErrNoSession is returned by subscription methods called over plain HTTP.
var ErrNoSession = chain.NewLogicError("subscriptions_require_websocket", "subscriptions are only available over a websocket connection")

// SubscriptionsAPI manages the callbacks of a websocket session.
type SubscriptionsAPI struct{}

func NewSubscriptionsAPI() *SubscriptionsAPI {
	return &SubscriptionsAPI{}
}

func callbackSession(ctx context.Context) (*session.Session, error) {
	s := rpc.SessionFrom(ctx)
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

func callbackID(p rpc.Params) (uint64, error) {
	cb, err := p.Int64(0, "callback", -1)
	if err != nil {
		return 0, err
	}
	if cb < 0 {
		return 0, protocol.NewParamError("callback", "is required")
	}
	return uint64(cb), nil
}

// SetSubscribeCallback handles set_subscribe_callback(cb, clear_filter)
func (a *SubscriptionsAPI) SetSubscribeCallback(ctx context.Context, p rpc.Params) (interface{}, error) {
	s, err := callbackSession(ctx)
	if err != nil {
		return nil, err
	}
	cb, err := callbackID(p)
	if err != nil {
		return nil, err
	}
	clearFilter, err := p.Bool(1, "clear_filter", false)
	if err != nil {
		return nil, err
	}
	s.SetSubscribeCallback(cb, clearFilter)
	return nil, nil
}

// SetBlockAppliedCallback handles set_block_applied_callback(cb)
func (a *SubscriptionsAPI) SetBlockAppliedCallback(ctx context.Context, p rpc.Params) (interface{}, error) {
	s, err := callbackSession(ctx)
	if err != nil {
		return nil, err
	}
	cb, err := callbackID(p)
	if err != nil {
		return nil, err
	}
	s.SetBlockAppliedCallback(cb)
	return nil, nil
}

// CancelAllSubscriptions handles cancel_all_subscriptions()
func (a *SubscriptionsAPI) CancelAllSubscriptions(ctx context.Context, p rpc.Params) (interface{}, error) {
	s, err := callbackSession(ctx)
	if err != nil {
		return nil, err
	}
	s.CancelAllSubscriptions()
	return nil, nil
}

// SubscribeToMarket handles subscribe_to_market(cb, a, b)
func (a *SubscriptionsAPI) SubscribeToMarket(ctx context.Context, p rpc.Params) (interface{}, error) {
	s, err := callbackSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Require(3, "callback", "a", "b"); err != nil {
		return nil, err
	}
	cb, err := callbackID(p)
	if err != nil {
		return nil, err
	}
	first, err := p.String(1, "a")
	if err != nil {
		return nil, err
	}
	second, err := p.String(2, "b")
	if err != nil {
		return nil, err
	}
	return nil, s.SubscribeToMarket(cb, first, second)
}

// UnsubscribeFromMarket handles unsubscribe_from_market(a, b)
func (a *SubscriptionsAPI) UnsubscribeFromMarket(ctx context.Context, p rpc.Params) (interface{}, error) {
	s, err := callbackSession(ctx)
	if err != nil {
		return nil, err
	}
	first, err := p.String(0, "a")
	if err != nil {
		return nil, err
	}
	second, err := p.String(1, "b")
	if err != nil {
		return nil, err
	}
	return nil, s.UnsubscribeFromMarket(first, second)
}
