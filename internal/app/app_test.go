package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/api"
	"github.com/golos/golosmind/pkg/config"
)

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func serve(t *testing.T, standalone bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Server: config.ServerConfig{Standalone: standalone}}
	// a standalone app never dials the node, so only it can ask for a syncer
	a, err := New(cfg, standalone, false)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Load(context.Background()))

	e := gin.New()
	api.NewRouter(a.Services()).SetupRoutes(e)
	return e
}

func rpc(t *testing.T, e *gin.Engine, method string, params string) rpcResponse {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":` + params + `}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp rpcResponse
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func broadcast(t *testing.T, e *gin.Engine, op string) rpcResponse {
	t.Helper()
	return rpc(t, e, "network_broadcast_api.broadcast_operation", "["+op+"]")
}

func TestStandaloneBroadcast(t *testing.T) {
	e := serve(t, true)

	resp := broadcast(t, e, `["worker_proposal",{"author":"alice","permlink":"proposal","type":"task"}]`)
	require.NotNil(t, resp.Error)

	resp = broadcast(t, e, `["comment",{"parent_author":"","parent_permlink":"golos","author":"alice","permlink":"proposal","title":"Proposal","body":"Fund the explorer","json_metadata":"{\"tags\":[\"workers\"]}"}]`)
	require.Nil(t, resp.Error, resp.Error)
	resp = broadcast(t, e, `["comment_operation",{"parent_author":"alice","parent_permlink":"proposal","author":"bob","permlink":"re-proposal","title":"","body":"+1","json_metadata":""}]`)
	require.Nil(t, resp.Error, resp.Error)

	resp = rpc(t, e, "condenser_api.get_content", `["alice","proposal"]`)
	require.Nil(t, resp.Error)
	var post struct {
		Category string `json:"category"`
		Children uint32 `json:"children"`
		Body     string `json:"body"`
	}
	require.NoError(t, jsoniter.Unmarshal(resp.Result, &post))
	assert.Equal(t, "golos", post.Category)
	assert.Equal(t, uint32(1), post.Children)
	assert.Equal(t, "Fund the explorer", post.Body)

	resp = broadcast(t, e, `["worker_proposal",{"author":"alice","permlink":"proposal","type":"task"}]`)
	require.Nil(t, resp.Error, resp.Error)
	resp = broadcast(t, e, `["worker_proposal",{"author":"bob","permlink":"re-proposal","type":"task"}]`)
	require.NotNil(t, resp.Error)

	resp = rpc(t, e, "worker_api.get_worker_proposals_by_created", `[{"limit":10}]`)
	require.Nil(t, resp.Error)
	var proposals []struct {
		Author   string `json:"author"`
		Permlink string `json:"permlink"`
		State    string `json:"state"`
	}
	require.NoError(t, jsoniter.Unmarshal(resp.Result, &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, "alice", proposals[0].Author)
	assert.Equal(t, "proposal", proposals[0].Permlink)

	resp = broadcast(t, e, `["delete_comment",{"author":"alice","permlink":"proposal"}]`)
	require.NotNil(t, resp.Error)
	resp = broadcast(t, e, `["delete_comment",{"author":"bob","permlink":"re-proposal"}]`)
	require.Nil(t, resp.Error, resp.Error)

	resp = rpc(t, e, "condenser_api.get_content", `["alice","proposal"]`)
	require.Nil(t, resp.Error)
	require.NoError(t, jsoniter.Unmarshal(resp.Result, &post))
	assert.Zero(t, post.Children)
}

func TestBroadcastNeedsStandalone(t *testing.T) {
	e := serve(t, false)

	resp := broadcast(t, e, `["comment",{"parent_author":"","parent_permlink":"golos","author":"alice","permlink":"post","title":"","body":"text","json_metadata":""}]`)
	require.NotNil(t, resp.Error)

	resp = rpc(t, e, "condenser_api.get_content", `["alice","post"]`)
	require.Nil(t, resp.Error)
	var post struct {
		Author string `json:"author"`
	}
	require.NoError(t, jsoniter.Unmarshal(resp.Result, &post))
	assert.Empty(t, post.Author)
}
