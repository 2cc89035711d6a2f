package indexer

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/golosd"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/pkg/logging"
	"github.com/golos/golosmind/pkg/telemetry"
)

// decodedOp is an applied operation split into its name and body.
type decodedOp struct {
	golosd.AppliedOperation
	name string
	body jsoniter.RawMessage
}

// BlockProcessor processes blockchain blocks
type BlockProcessor struct {
	db        *chain.Database
	accounts  *AccountIndexer
	posts     *PostIndexer
	payments  *PaymentIndexer
	customOps *CustomOpProcessor
	market    *MarketIndexer
	logger    *zap.Logger

	// Worker operations at or below this block are already in the
	// restored governance state.
	governanceHead uint32
}

// NewBlockProcessor creates a new block processor
func NewBlockProcessor(node Node, db *chain.Database, follows *follow.Store, tagStore *tags.Store) *BlockProcessor {
	logger := logging.WithComponent("block-processor")

	return &BlockProcessor{
		db:        db,
		accounts:  NewAccountIndexer(node, db, logger),
		posts:     NewPostIndexer(node, db, follows, logger),
		payments:  NewPaymentIndexer(tagStore, logger),
		customOps: NewCustomOpProcessor(db, follows, logger),
		market:    NewMarketIndexer(db, logger),
		logger:    logger,
	}
}

// SetGovernanceHead skips worker operations up to and including num.
func (bp *BlockProcessor) SetGovernanceHead(num uint32) {
	bp.governanceHead = num
}

// ProcessBlock fetches what the block touched from the node and then applies
// the block to the store as one unit.
func (bp *BlockProcessor) ProcessBlock(ctx context.Context, block *golosd.Block, ops []golosd.AppliedOperation) error {
	ctx, span := telemetry.StartSpan(ctx, "indexer.block")
	defer span.End()
	span.SetAttributes(attribute.Int64("block_num", int64(block.Number)), attribute.Int("ops", len(ops)))

	decoded := make([]decodedOp, 0, len(ops))
	var votes []voteOp
	for _, applied := range ops {
		name, body, err := protocol.SplitOperation(applied.Op)
		if err != nil {
			bp.logger.Warn("Skipping undecodable operation",
				zap.Uint32("block", block.Number),
				zap.String("trx_id", applied.TrxID),
				zap.Error(err))
			continue
		}
		name = protocol.NormalizeOperationName(name)
		op := decodedOp{AppliedOperation: applied, name: name, body: body}
		decoded = append(decoded, op)

		for _, account := range impactedAccounts(body) {
			bp.accounts.MarkDirty(account)
		}
		if contentOps[name] {
			bp.markContent(op)
		}
		if name == "vote" {
			var v voteOp
			if err := json.Unmarshal(body, &v); err == nil {
				votes = append(votes, v)
			}
		}
	}

	accounts, err := bp.accounts.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("block %d: %w", block.Number, err)
	}
	posts, err := bp.posts.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("block %d: %w", block.Number, err)
	}

	blockDate := block.Timestamp.Time
	err = bp.db.ApplyBlock(block.Header(), func() error {
		if err := bp.accounts.Apply(accounts); err != nil {
			return err
		}
		if err := bp.posts.Apply(posts, votes); err != nil {
			return err
		}

		var fills []fillOrderOp
		for _, op := range decoded {
			if err := bp.appendHistory(op); err != nil {
				return err
			}
			if op.name == "fill_order" {
				var fill fillOrderOp
				if err := json.Unmarshal(op.body, &fill); err != nil {
					bp.logger.Warn("Malformed fill_order", zap.Uint32("block", block.Number), zap.Error(err))
					continue
				}
				fills = append(fills, fill)
				continue
			}
			bp.processOperation(block.Number, blockDate, op)
		}
		for _, fill := range fills {
			if err := bp.market.Fill(fill, blockDate); err != nil {
				return fmt.Errorf("fill order: %w", err)
			}
		}
		return bp.market.Expire(blockDate)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	telemetry.RecordBlock(ctx)
	for _, op := range decoded {
		telemetry.RecordOperation(ctx, op.name)
	}
	return nil
}

func (bp *BlockProcessor) markContent(op decodedOp) {
	if op.name == "comment" {
		var c commentOp
		if err := json.Unmarshal(op.body, &c); err != nil {
			return
		}
		bp.posts.MarkDirty(c.Author, c.Permlink)
		bp.posts.MarkDirty(c.ParentAuthor, c.ParentPermlink)
		return
	}
	var ref contentRef
	if err := json.Unmarshal(op.body, &ref); err != nil {
		return
	}
	bp.posts.MarkDirty(ref.key())
}

func (bp *BlockProcessor) appendHistory(op decodedOp) error {
	for _, account := range impactedAccounts(op.body) {
		_, err := bp.db.AppendHistory(account, chain.HistoryEntry{
			TrxID:      op.TrxID,
			Block:      op.Block,
			TrxInBlock: op.TrxInBlock,
			OpInTrx:    op.OpInTrx,
			VirtualOp:  op.VirtualOp,
			Timestamp:  op.Timestamp.Time,
			OpName:     op.name,
			OpBody:     op.body,
		})
		if err != nil {
			return fmt.Errorf("history of %s: %w", account, err)
		}
	}
	return nil
}

// processOperation applies the operations the store evaluates itself.
// Rejected operations are logged; the node has already accepted them.
func (bp *BlockProcessor) processOperation(blockNum uint32, blockDate time.Time, op decodedOp) {
	var err error
	switch op.name {
	case "custom_json":
		var c customJSONOp
		if err = json.Unmarshal(op.body, &c); err == nil {
			bp.customOps.ProcessOp(c, blockDate)
		}
	case "transfer":
		var t transferOp
		if err = json.Unmarshal(op.body, &t); err == nil {
			bp.payments.ProcessTransfer(t)
		}
	case "limit_order_create":
		var o limitOrderCreateOp
		if err = json.Unmarshal(op.body, &o); err == nil {
			err = bp.market.CreateOrder(o, blockDate)
		}
	case "limit_order_create2":
		var o limitOrderCreate2Op
		if err = json.Unmarshal(op.body, &o); err == nil {
			err = bp.market.CreateOrder2(o, blockDate)
		}
	case "limit_order_cancel":
		var o limitOrderCancelOp
		if err = json.Unmarshal(op.body, &o); err == nil {
			err = bp.market.CancelOrder(o)
		}
	default:
		if !protocol.IsWorkerOperation(op.name) || blockNum <= bp.governanceHead {
			return
		}
		var decoded protocol.Operation
		if decoded, err = protocol.DecodeOperationBody(op.name, op.body); err == nil {
			err = bp.db.ApplyOperation(decoded)
		}
	}
	if err != nil {
		bp.logger.Warn("Failed to apply operation",
			zap.String("op", op.name),
			zap.Uint32("block", blockNum),
			zap.String("trx_id", op.TrxID),
			zap.Error(err))
	}
}
