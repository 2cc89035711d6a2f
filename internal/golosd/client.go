package golosd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/config"
	"github.com/golos/golosmind/pkg/logging"
	"github.com/golos/golosmind/pkg/telemetry"
)

// DynamicGlobalProperties is the subset of node properties the syncer reads.
type DynamicGlobalProperties struct {
	HeadBlockNumber          uint32        `json:"head_block_number"`
	HeadBlockID              string        `json:"head_block_id"`
	LastIrreversibleBlockNum uint32        `json:"last_irreversible_block_num"`
	Time                     protocol.Time `json:"time"`
}

// Transaction carries its operations undecoded.
type Transaction struct {
	Operations []jsoniter.RawMessage `json:"operations"`
}

// Block is a signed block as returned by get_block.
type Block struct {
	Number       uint32        `json:"-"`
	BlockID      string        `json:"block_id"`
	Previous     string        `json:"previous"`
	Timestamp    protocol.Time `json:"timestamp"`
	Witness      string        `json:"witness"`
	Transactions []Transaction `json:"transactions"`
}

// Header returns the block header announced to subscribers.
func (b *Block) Header() chain.BlockHeader {
	return chain.BlockHeader{
		Number:    b.Number,
		ID:        b.BlockID,
		Previous:  b.Previous,
		Timestamp: b.Timestamp.Time,
		Witness:   b.Witness,
	}
}

// AppliedOperation is an entry of get_ops_in_block.
type AppliedOperation struct {
	TrxID      string              `json:"trx_id"`
	Block      uint32              `json:"block"`
	TrxInBlock uint32              `json:"trx_in_block"`
	OpInTrx    uint16              `json:"op_in_trx"`
	VirtualOp  uint64              `json:"virtual_op"`
	Timestamp  protocol.Time       `json:"timestamp"`
	Op         jsoniter.RawMessage `json:"op"`
}

// Client is a typed wrapper over the node's database and follow APIs.
type Client struct {
	rpc    *RPCClient
	logger *zap.Logger
}

func New(cfg *config.NodeConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("golosd: node url is required")
	}
	logger := logging.WithComponent("golosd")
	logger.Info("Using golosd node", zap.String("url", cfg.URL))
	return &Client{
		rpc:    NewRPCClient(cfg.URL, cfg.Timeout, cfg.Retries, logger),
		logger: logger,
	}, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, dst interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "golosd."+method)
	defer span.End()

	start := time.Now()
	raw, err := c.rpc.Call(ctx, "database_api", method, params)
	if err != nil {
		span.RecordError(err)
		return err
	}
	c.logger.Debug("golosd call", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func (c *Client) GetDynamicGlobalProperties(ctx context.Context) (*DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	if err := c.call(ctx, "get_dynamic_global_properties", nil, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

// GetBlock returns block num, or nil when the node does not have it yet.
func (c *Client) GetBlock(ctx context.Context, num uint32) (*Block, error) {
	var block *Block
	if err := c.call(ctx, "get_block", []interface{}{num}, &block); err != nil {
		return nil, err
	}
	if block != nil {
		block.Number = num
	}
	return block, nil
}

// GetBlocks fetches the blocks in [from, to] with one batch request.
func (c *Client) GetBlocks(ctx context.Context, from, to uint32) ([]*Block, error) {
	if to < from {
		return nil, nil
	}
	ctx, span := telemetry.StartSpan(ctx, "golosd.get_blocks")
	defer span.End()
	span.SetAttributes(attribute.Int64("from", int64(from)), attribute.Int64("to", int64(to)))

	calls := make([]BatchCall, 0, to-from+1)
	for num := from; num <= to; num++ {
		calls = append(calls, BatchCall{API: "database_api", Method: "get_block", Params: []interface{}{num}})
	}
	results, err := c.rpc.CallBatch(ctx, calls)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	blocks := make([]*Block, 0, len(results))
	for i, raw := range results {
		var block *Block
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, fmt.Errorf("decode block %d: %w", from+uint32(i), err)
		}
		if block == nil {
			return nil, fmt.Errorf("block %d not available", from+uint32(i))
		}
		block.Number = from + uint32(i)
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// GetOpsInBlock returns the operations applied in a block. With onlyVirtual
// set only operations the chain generated itself are returned.
func (c *Client) GetOpsInBlock(ctx context.Context, num uint32, onlyVirtual bool) ([]AppliedOperation, error) {
	var ops []AppliedOperation
	if err := c.call(ctx, "get_ops_in_block", []interface{}{num, onlyVirtual}, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// GetOpsInBlocks fetches the operations of every block in [from, to] with one
// batch request, indexed from from.
func (c *Client) GetOpsInBlocks(ctx context.Context, from, to uint32) ([][]AppliedOperation, error) {
	if to < from {
		return nil, nil
	}
	calls := make([]BatchCall, 0, to-from+1)
	for num := from; num <= to; num++ {
		calls = append(calls, BatchCall{API: "database_api", Method: "get_ops_in_block", Params: []interface{}{num, false}})
	}
	results, err := c.rpc.CallBatch(ctx, calls)
	if err != nil {
		return nil, err
	}
	out := make([][]AppliedOperation, len(results))
	for i, raw := range results {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("decode ops of block %d: %w", from+uint32(i), err)
		}
	}
	return out, nil
}

// GetContent returns the raw content object, or nil if the node reports an
// empty author.
func (c *Client) GetContent(ctx context.Context, author, permlink string) (map[string]interface{}, error) {
	var content map[string]interface{}
	if err := c.call(ctx, "get_content", []interface{}{author, permlink}, &content); err != nil {
		return nil, err
	}
	if a, _ := content["author"].(string); a == "" {
		return nil, nil
	}
	return content, nil
}

func (c *Client) GetActiveVotes(ctx context.Context, author, permlink string) ([]map[string]interface{}, error) {
	var votes []map[string]interface{}
	if err := c.call(ctx, "get_active_votes", []interface{}{author, permlink}, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *Client) GetAccounts(ctx context.Context, names []string) ([]map[string]interface{}, error) {
	var accounts []map[string]interface{}
	if err := c.call(ctx, "get_accounts", []interface{}{names}, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
