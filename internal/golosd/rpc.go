// Package golosd talks JSON-RPC to an upstream Golos node.
package golosd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Node objects are decoded into maps with numbers kept as json.Number, so
// 64-bit share amounts survive.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// RPCRequest is a request in the node's legacy "call" envelope.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type RPCResponse struct {
	ID     int64               `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *RPCError           `json:"error"`
}

// RPCError is an error reported by the node.
type RPCError struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("golosd error %d: %s", e.Code, e.Message)
}

// RPCClient posts requests to one node URL, retrying transport failures.
type RPCClient struct {
	url     string
	http    *http.Client
	retries int
	nextID  atomic.Int64
	logger  *zap.Logger
}

func NewRPCClient(url string, timeout time.Duration, retries int, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		logger:  logger,
	}
}

func (c *RPCClient) request(api, method string, params []interface{}) RPCRequest {
	if params == nil {
		params = []interface{}{}
	}
	return RPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "call",
		Params:  []interface{}{api, method, params},
	}
}

// Call invokes api.method and returns the raw result.
func (c *RPCClient) Call(ctx context.Context, api, method string, params []interface{}) (jsoniter.RawMessage, error) {
	req := c.request(api, method, params)
	var resp RPCResponse
	if err := c.post(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", api, method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s.%s: %w", api, method, resp.Error)
	}
	return resp.Result, nil
}

// BatchCall is one entry of a CallBatch.
type BatchCall struct {
	API    string
	Method string
	Params []interface{}
}

// CallBatch sends calls in one HTTP request and returns results in call
// order. Any failed entry fails the batch.
func (c *RPCClient) CallBatch(ctx context.Context, calls []BatchCall) ([]jsoniter.RawMessage, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]RPCRequest, len(calls))
	index := make(map[int64]int, len(calls))
	for i, call := range calls {
		reqs[i] = c.request(call.API, call.Method, call.Params)
		index[reqs[i].ID] = i
	}

	var resps []RPCResponse
	if err := c.post(ctx, reqs, &resps); err != nil {
		return nil, fmt.Errorf("batch of %d: %w", len(calls), err)
	}
	if len(resps) != len(calls) {
		return nil, fmt.Errorf("batch of %d: got %d responses", len(calls), len(resps))
	}

	out := make([]jsoniter.RawMessage, len(calls))
	for _, resp := range resps {
		i, ok := index[resp.ID]
		if !ok {
			return nil, fmt.Errorf("batch: unexpected response id %d", resp.ID)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s.%s: %w", calls[i].API, calls[i].Method, resp.Error)
		}
		out[i] = resp.Result
	}
	return out, nil
}

func (c *RPCClient) post(ctx context.Context, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			c.logger.Debug("retrying golosd request", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		data, err := c.roundTrip(ctx, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func (c *RPCClient) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return data, nil
}
