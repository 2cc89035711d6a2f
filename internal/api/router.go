package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/condenser"
	"github.com/golos/golosmind/internal/api/governance"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/cache"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/state"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/logging"
	"github.com/golos/golosmind/pkg/telemetry"
)

// Namespaces that expose the database API.
var databaseNamespaces = []string{"database_api", "condenser_api", "tags_api"}

// Services are the stores and query services the API serves from.
type Services struct {
	DB         *chain.Database
	Engine     *discussions.Engine
	Follow     *follow.Store
	State      *state.Service
	Market     *market.Market
	Workers    *worker.Store
	Cache      *cache.Cache
	Standalone bool
}

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	ws      *WebsocketHandler
	svc     Services
	logger  *zap.Logger
}

func NewRouter(svc Services) *Router {
	handler := NewJSONRPCHandler()
	router := &Router{
		handler: handler,
		ws:      NewWebsocketHandler(handler, svc.DB, svc.Market),
		svc:     svc,
		logger:  logging.WithComponent("api-router"),
	}
	router.registerMethods()

	if svc.Cache != nil {
		svc.DB.AppliedBlock.Connect(func(chain.BlockNotice) error {
			svc.Cache.FlushLocal()
			return nil
		})
	}
	return router
}

// Handler exposes the dispatcher, mainly for tests.
func (r *Router) Handler() *JSONRPCHandler {
	return r.handler
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	engine.GET("/ws", r.ws.Handle)
	engine.POST("/", r.handler.Handle)
}

func (r *Router) register(namespaces []string, method string, handler rpc.Handler) {
	for _, ns := range namespaces {
		r.handler.RegisterMethod(ns+"."+method, handler)
	}
}

// cached serves a method through the response cache. Keys include the head
// block, so a cached answer never outlives the state it was computed from.
// Websocket calls bypass the cache because they feed the session filter.
// A standalone node changes state without new blocks and is never cached.
func (r *Router) cached(method string, handler rpc.Handler) rpc.Handler {
	c := r.svc.Cache
	if c == nil || r.svc.Standalone {
		return handler
	}
	return func(ctx context.Context, p rpc.Params) (interface{}, error) {
		if rpc.SessionFrom(ctx) != nil {
			return handler(ctx, p)
		}
		args, err := p.MarshalJSON()
		if err != nil {
			return handler(ctx, p)
		}
		var head uint32
		r.svc.DB.WithReadLock(func() { head = r.svc.DB.HeadBlockNum() })
		key := cache.HashKey(method, strconv.FormatUint(uint64(head), 10), string(args))
		if data, ok := c.Load(ctx, key); ok {
			return jsoniter.RawMessage(data), nil
		}
		result, err := handler(ctx, p)
		if err != nil {
			return nil, err
		}
		data, err := c.Store(ctx, key, result)
		if err != nil {
			r.logger.Warn("cache store failed", zap.String("method", method), zap.Error(err))
			return result, nil
		}
		return jsoniter.RawMessage(data), nil
	}
}

func (r *Router) registerMethods() {
	svc := r.svc

	database := condenser.NewDatabaseAPI(svc.DB, svc.State)
	content := condenser.NewContentAPI(svc.DB, svc.Engine)
	disc := condenser.NewDiscussionsAPI(svc.DB, svc.Engine)
	tagsAPI := condenser.NewTagsAPI(svc.DB, svc.Engine)
	followAPI := condenser.NewFollowAPI(svc.DB, svc.Follow)
	marketAPI := condenser.NewMarketAPI(svc.DB, svc.Market)
	subs := condenser.NewSubscriptionsAPI()
	gov := governance.New(svc.DB, svc.Workers, svc.Standalone)

	databaseMethods := map[string]rpc.Handler{
		"get_dynamic_global_properties":    database.GetDynamicGlobalProperties,
		"get_config":                       database.GetConfig,
		"get_feed_history":                 database.GetFeedHistory,
		"get_current_median_history_price": database.GetCurrentMedianHistoryPrice,
		"get_reward_fund":                  database.GetRewardFund,
		"get_accounts":                     database.GetAccounts,
		"get_account_count":                database.GetAccountCount,
		"get_account_history":              database.GetAccountHistory,
		"get_witnesses_by_vote":            database.GetWitnessesByVote,
		"get_miner_queue":                  database.GetMinerQueue,
		"get_witness_schedule":             database.GetWitnessSchedule,
		"get_state":                        r.cached("get_state", database.GetState),

		"get_content":                           content.GetContent,
		"get_content_replies":                   content.GetContentReplies,
		"get_active_votes":                      content.GetActiveVotes,
		"get_account_votes":                     content.GetAccountVotes,
		"get_replies_by_last_update":            content.GetRepliesByLastUpdate,
		"get_discussions_by_author_before_date": content.GetDiscussionsByAuthorBeforeDate,

		"get_discussions_by_feed":           disc.GetDiscussionsByFeed,
		"get_discussions_by_blog":           disc.GetDiscussionsByBlog,
		"get_discussions_by_comments":       disc.GetDiscussionsByComments,
		"get_post_discussions_by_payout":    r.cached("get_post_discussions_by_payout", disc.Ranked(discussions.PostPayout)),
		"get_comment_discussions_by_payout": r.cached("get_comment_discussions_by_payout", disc.Ranked(discussions.CommentPayout)),

		"get_trending_tags":       r.cached("get_trending_tags", tagsAPI.GetTrendingTags),
		"get_tags_used_by_author": tagsAPI.GetTagsUsedByAuthor,

		"set_subscribe_callback":     subs.SetSubscribeCallback,
		"set_block_applied_callback": subs.SetBlockAppliedCallback,
		"cancel_all_subscriptions":   subs.CancelAllSubscriptions,
		"subscribe_to_market":        subs.SubscribeToMarket,
		"unsubscribe_from_market":    subs.UnsubscribeFromMarket,
	}
	for _, ranking := range []discussions.Ranking{
		discussions.Trending, discussions.Hot, discussions.Promoted,
		discussions.Created, discussions.Active, discussions.Cashout,
		discussions.Payout, discussions.Votes, discussions.Children,
	} {
		name := "get_discussions_by_" + string(ranking)
		databaseMethods[name] = r.cached(name, disc.Ranked(ranking))
	}
	for name, h := range databaseMethods {
		r.register(databaseNamespaces, name, h)
	}

	followMethods := map[string]rpc.Handler{
		"get_followers":           followAPI.GetFollowers,
		"get_following":           followAPI.GetFollowing,
		"get_follow_count":        followAPI.GetFollowCount,
		"get_feed_entries":        followAPI.GetFeedEntries,
		"get_blog_entries":        followAPI.GetBlogEntries,
		"get_blog_authors":        followAPI.GetBlogAuthors,
		"get_account_reputations": followAPI.GetAccountReputations,
	}
	for name, h := range followMethods {
		r.register([]string{"follow_api", "condenser_api"}, name, h)
	}

	marketMethods := map[string]rpc.Handler{
		"get_ticker":                 marketAPI.GetTicker,
		"get_volume":                 marketAPI.GetVolume,
		"get_order_book":             marketAPI.GetOrderBook,
		"get_trade_history":          marketAPI.GetTradeHistory,
		"get_recent_trades":          marketAPI.GetRecentTrades,
		"get_market_history":         marketAPI.GetMarketHistory,
		"get_market_history_buckets": marketAPI.GetMarketHistoryBuckets,
	}
	for name, h := range marketMethods {
		r.register([]string{"market_history_api", "condenser_api"}, name, h)
	}

	r.handler.RegisterMethod("worker_api.get_worker_proposals_by_created", gov.GetWorkerProposalsByCreated)
	r.handler.RegisterMethod("worker_api.get_worker_proposals_by_rshares", gov.GetWorkerProposalsByRshares)
	r.handler.RegisterMethod("worker_api.get_worker_techspecs", gov.GetWorkerTechspecs)
	r.register([]string{"network_broadcast_api", "condenser_api"}, "broadcast_operation", gov.BroadcastOperation)

	r.logger.Debug("methods registered", zap.Int("count", len(r.handler.methods)))
}

// healthHandler reports the head block and whether the cache answers.
func (r *Router) healthHandler(c *gin.Context) {
	var head uint32
	var headTime time.Time
	r.svc.DB.WithReadLock(func() {
		head = r.svc.DB.HeadBlockNum()
		headTime = r.svc.DB.HeadBlockTime()
	})
	status := gin.H{
		"status":        "OK",
		"service":       "golosmind-api",
		"head_block":    head,
		"head_block_at": headTime.UTC().Format(time.RFC3339),
	}
	if r.svc.Cache != nil {
		if err := r.svc.Cache.Health(c.Request.Context()); err != nil {
			status["cache"] = err.Error()
		} else {
			status["cache"] = "OK"
		}
	}
	c.JSON(http.StatusOK, status)
}
