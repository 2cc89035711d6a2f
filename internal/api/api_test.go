package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/cache"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/state"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/config"
)

var t0 = time.Unix(1540000000, 0).UTC()

type testResponse struct {
	ID     jsoniter.RawMessage `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	} `json:"error"`
}

func setup(t *testing.T, standalone bool) (*chain.Database, *Router, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := chain.NewDatabase()
	tagStore := tags.New(db)
	followStore := follow.New(db)
	engine := discussions.New(db, tagStore, followStore)
	m := market.New(db)
	svc := Services{
		DB:         db,
		Engine:     engine,
		Follow:     followStore,
		State:      state.New(db, followStore, engine, m),
		Market:     m,
		Workers:    worker.New(db),
		Standalone: standalone,
	}

	require.NoError(t, db.WithWriteLock(func() error {
		if err := db.Props.Modify(func(p *chain.DynamicGlobalProperties) { p.Time = t0 }); err != nil {
			return err
		}
		for _, name := range []string{"alice", "bob"} {
			if _, err := db.StoreAccount(chain.Account{Name: name, Created: t0}); err != nil {
				return err
			}
		}
		_, err := db.StoreComment(chain.Comment{
			Author:         "alice",
			Permlink:       "post",
			ParentPermlink: "golos",
			Category:       "golos",
			Title:          "hello",
			Body:           "world",
			Created:        t0,
		})
		return err
	}))

	router := NewRouter(svc)
	e := gin.New()
	router.SetupRoutes(e)
	return db, router, e
}

func post(t *testing.T, e *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w
}

func call(t *testing.T, e *gin.Engine, body string) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(post(t, e, body).Body.Bytes(), &resp))
	return resp
}

func TestGetContent(t *testing.T) {
	_, _, e := setup(t, false)

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"condenser_api.get_content","params":["alice","post"]}`,
		`{"jsonrpc":"2.0","id":1,"method":"call","params":["database_api","get_content",["alice","post"]]}`,
		`{"jsonrpc":"2.0","id":1,"method":"get_content","params":["alice","post"]}`,
	} {
		resp := call(t, e, body)
		require.Nil(t, resp.Error, body)
		assert.Equal(t, "1", string(resp.ID))

		var d struct {
			Author   string `json:"author"`
			Permlink string `json:"permlink"`
			Title    string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &d))
		assert.Equal(t, "alice", d.Author)
		assert.Equal(t, "post", d.Permlink)
		assert.Equal(t, "hello", d.Title)
	}
}

func TestErrorMapping(t *testing.T) {
	_, _, e := setup(t, false)

	tests := []struct {
		name string
		body string
		code int
		key  string
		want interface{}
	}{
		{
			name: "unknown method",
			body: `{"jsonrpc":"2.0","id":1,"method":"database_api.get_nothing","params":[]}`,
			code: ErrMethodNotFound,
		},
		{
			name: "wrong version",
			body: `{"jsonrpc":"1.0","id":1,"method":"database_api.get_config","params":[]}`,
			code: ErrInvalidRequest,
		},
		{
			name: "missing argument",
			body: `{"jsonrpc":"2.0","id":1,"method":"database_api.get_content","params":["alice"]}`,
			code: ErrInvalidParams,
			key:  "param",
			want: "permlink",
		},
		{
			name: "missing reward fund",
			body: `{"jsonrpc":"2.0","id":1,"method":"database_api.get_reward_fund","params":["nope"]}`,
			code: ErrMissingObject,
			key:  "type",
			want: "reward_fund",
		},
		{
			name: "broadcast on a follower node",
			body: `{"jsonrpc":"2.0","id":1,"method":"network_broadcast_api.broadcast_operation","params":[["worker_proposal",{"author":"alice","permlink":"post","type":"task"}]]}`,
			code: ErrLogic,
			key:  "code",
			want: "broadcast_disabled",
		},
		{
			name: "subscription over http",
			body: `{"jsonrpc":"2.0","id":1,"method":"database_api.set_block_applied_callback","params":[1]}`,
			code: ErrLogic,
			key:  "code",
			want: "subscriptions_require_websocket",
		},
		{
			name: "account history limit",
			body: `{"jsonrpc":"2.0","id":1,"method":"database_api.get_account_history","params":["alice",-1,10001]}`,
			code: ErrInvalidParams,
			key:  "param",
			want: "limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, e, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.key != "" {
				assert.Equal(t, tt.want, resp.Error.Data[tt.key])
			}
		})
	}
}

func TestParseErrorAndBatch(t *testing.T) {
	_, _, e := setup(t, false)

	resp := call(t, e, `{"jsonrpc":`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrParseError, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))

	var batch []testResponse
	w := post(t, e, `[
		{"jsonrpc":"2.0","id":1,"method":"database_api.get_account_count","params":[]},
		{"jsonrpc":"2.0","id":"two","method":"database_api.get_nothing","params":[]}
	]`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	require.Len(t, batch, 2)
	assert.Equal(t, "2", string(batch[0].Result))
	assert.Equal(t, `"two"`, string(batch[1].ID))
	assert.Equal(t, ErrMethodNotFound, batch[1].Error.Code)
}

func TestBroadcastOperationStandalone(t *testing.T) {
	_, _, e := setup(t, true)

	resp := call(t, e, `{"jsonrpc":"2.0","id":1,"method":"network_broadcast_api.broadcast_operation","params":[["worker_proposal",{"author":"alice","permlink":"post","type":"task"}]]}`)
	require.Nil(t, resp.Error)

	resp = call(t, e, `{"jsonrpc":"2.0","id":2,"method":"worker_api.get_worker_proposals_by_created","params":[{"limit":10}]}`)
	require.Nil(t, resp.Error)
	var proposals []struct {
		Author string `json:"author"`
		Type   string `json:"type"`
		State  string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, "alice", proposals[0].Author)
	assert.Equal(t, "task", proposals[0].Type)

	resp = call(t, e, `{"jsonrpc":"2.0","id":3,"method":"network_broadcast_api.broadcast_operation","params":[["worker_proposal",{"author":"bob","permlink":"missing","type":"task"}]]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMissingObject, resp.Error.Code)
}

func TestCachedHandler(t *testing.T) {
	db, router, _ := setup(t, false)
	c, err := cache.New(&config.RedisConfig{}, &config.CacheConfig{TTL: time.Minute, LocalExpiry: time.Minute})
	require.NoError(t, err)
	router.svc.Cache = c

	calls := 0
	h := router.cached("count", func(ctx context.Context, p rpc.Params) (interface{}, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	})

	first, err := h(context.Background(), rpc.NewParams("a"))
	require.NoError(t, err)
	second, err := h(context.Background(), rpc.NewParams("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = h(context.Background(), rpc.NewParams("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	require.NoError(t, db.ApplyBlock(chain.BlockHeader{Number: 1, Timestamp: t0.Add(3 * time.Second)}, func() error { return nil }))
	_, err = h(context.Background(), rpc.NewParams("a"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestStandaloneSkipsCache(t *testing.T) {
	_, router, _ := setup(t, true)
	c, err := cache.New(&config.RedisConfig{}, &config.CacheConfig{TTL: time.Minute, LocalExpiry: time.Minute})
	require.NoError(t, err)
	router.svc.Cache = c

	calls := 0
	h := router.cached("count", func(ctx context.Context, p rpc.Params) (interface{}, error) {
		calls++
		return calls, nil
	})
	for i := 0; i < 2; i++ {
		_, err := h(context.Background(), rpc.NewParams("a"))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestWebsocketBlockNotice(t *testing.T) {
	db, _, e := setup(t, false)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"database_api.set_block_applied_callback","params":[3]}`)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp testResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Nil(t, resp.Error)

	header := chain.BlockHeader{Number: 1, ID: "0001", Timestamp: t0.Add(3 * time.Second)}
	require.NoError(t, db.ApplyBlock(header, func() error { return nil }))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var n struct {
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, "notice", n.Method)
	require.Len(t, n.Params, 2)
	assert.Equal(t, float64(3), n.Params[0])
	payload := n.Params[1].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(1), payload["block_num"])
	assert.Equal(t, "0001", payload["block_id"])
}
