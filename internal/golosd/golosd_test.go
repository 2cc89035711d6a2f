package golosd

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/golos/golosmind/pkg/config"
)

// fakeNode answers get_block for any number and get_content for alice/post.
func fakeNode(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(r.Body)
		answer := func(req RPCRequest) RPCResponse {
			method, _ := req.Params[1].(string)
			args, _ := req.Params[2].([]interface{})
			switch method {
			case "get_block":
				num, _ := args[0].(stdjson.Number).Int64()
				if num > 100 {
					return RPCResponse{ID: req.ID, Result: []byte("null")}
				}
				return RPCResponse{ID: req.ID, Result: []byte(`{"block_id":"00000001","previous":"00000000","timestamp":"2018-10-20T01:46:40","witness":"cyberfounder","transactions":[{"operations":[["vote",{"voter":"bob"}]]}]}`)}
			case "get_content":
				return RPCResponse{ID: req.ID, Result: []byte(`{"author":"alice","permlink":"post","net_rshares":"9223372036854775807","children":2,"created":"2018-10-20T01:46:40","total_payout_value":"1.000 GBG"}`)}
			}
			return RPCResponse{ID: req.ID, Error: &RPCError{Code: -32601, Message: "method not found"}}
		}

		var out interface{}
		if body[0] == '[' {
			var reqs []RPCRequest
			if err := json.Unmarshal(body, &reqs); err != nil {
				t.Errorf("bad batch: %v", err)
			}
			resps := make([]RPCResponse, 0, len(reqs))
			// reversed, ids must restore the order
			for i := len(reqs) - 1; i >= 0; i-- {
				resps = append(resps, answer(reqs[i]))
			}
			out = resps
		} else {
			var req RPCRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("bad request: %v", err)
			}
			out = answer(req)
		}
		data, _ := json.Marshal(out)
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCallRetries(t *testing.T) {
	srv, hits := fakeNode(t, 2)
	c := NewRPCClient(srv.URL, time.Second, 2, zap.NewNop())

	raw, err := c.Call(context.Background(), "database_api", "get_block", []interface{}{1})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("Expected a result")
	}
	if hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits.Load())
	}

	srv2, _ := fakeNode(t, 5)
	c = NewRPCClient(srv2.URL, time.Second, 1, zap.NewNop())
	if _, err := c.Call(context.Background(), "database_api", "get_block", []interface{}{1}); err == nil {
		t.Error("Expected error after retries are exhausted")
	}
}

func TestCallNodeError(t *testing.T) {
	srv, _ := fakeNode(t, 0)
	c := NewRPCClient(srv.URL, time.Second, 0, zap.NewNop())

	_, err := c.Call(context.Background(), "database_api", "get_nothing", nil)
	if err == nil {
		t.Fatal("Expected node error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Errorf("Expected wrapped RPCError, got %v", err)
	}
}

func TestClientBlocks(t *testing.T) {
	srv, _ := fakeNode(t, 0)
	c, err := New(&config.NodeConfig{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to uint32
		want     int
		wantErr  bool
	}{
		{"single", 5, 5, 1, false},
		{"range", 1, 10, 10, false},
		{"empty", 10, 9, 0, false},
		{"beyond head", 99, 101, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := c.GetBlocks(context.Background(), tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetBlocks error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(blocks) != tt.want {
				t.Fatalf("Expected %d blocks, got %d", tt.want, len(blocks))
			}
			for i, b := range blocks {
				if b.Number != tt.from+uint32(i) {
					t.Errorf("Block %d numbered %d", i, b.Number)
				}
			}
		})
	}

	block, err := c.GetBlock(context.Background(), 101)
	if err != nil || block != nil {
		t.Errorf("Expected no block past head, got %v, %v", block, err)
	}
	block, err = c.GetBlock(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	h := block.Header()
	if h.Number != 7 || h.Witness != "cyberfounder" || h.Timestamp.Unix() != 1540000000 {
		t.Errorf("Unexpected header: %+v", h)
	}
	if len(block.Transactions) != 1 || len(block.Transactions[0].Operations) != 1 {
		t.Errorf("Unexpected transactions: %+v", block.Transactions)
	}
}

func TestCommentFromContent(t *testing.T) {
	srv, _ := fakeNode(t, 0)
	c, err := New(&config.NodeConfig{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	content, err := c.GetContent(context.Background(), "alice", "post")
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}

	comment, err := CommentFromContent(content)
	if err != nil {
		t.Fatalf("CommentFromContent failed: %v", err)
	}
	if comment.NetRshares != 9223372036854775807 {
		t.Errorf("Expected exact rshares, got %d", comment.NetRshares)
	}
	if comment.Children != 2 {
		t.Errorf("Expected 2 children, got %d", comment.Children)
	}
	if comment.TotalPayoutValue.String() != "1.000 GBG" {
		t.Errorf("Unexpected payout: %s", comment.TotalPayoutValue)
	}

	if _, err := CommentFromContent(map[string]interface{}{"author": "alice"}); err == nil {
		t.Error("Expected error without permlink")
	}
	if _, err := CommentFromContent(map[string]interface{}{"author": "a", "permlink": "p", "created": "yesterday"}); err == nil {
		t.Error("Expected error for a bad time")
	}
}

func TestVoteFromActiveVote(t *testing.T) {
	vote, err := VoteFromActiveVote(map[string]interface{}{
		"voter":   "bob",
		"weight":  stdjson.Number("12"),
		"rshares": "-300",
		"percent": float64(-10000),
		"time":    "2018-10-20T01:46:40",
	})
	if err != nil {
		t.Fatalf("VoteFromActiveVote failed: %v", err)
	}
	if vote.Weight != 12 || vote.Rshares != -300 || vote.VotePercent != -10000 {
		t.Errorf("Unexpected vote: %+v", vote)
	}
}
