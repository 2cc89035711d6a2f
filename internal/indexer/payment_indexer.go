package indexer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/tags"
)

// promotionAccount burns the transfers that promote a post.
const promotionAccount = "null"

// PaymentIndexer handles payment indexing
type PaymentIndexer struct {
	tags   *tags.Store
	logger *zap.Logger
}

// NewPaymentIndexer creates a new payment indexer
func NewPaymentIndexer(tagStore *tags.Store, logger *zap.Logger) *PaymentIndexer {
	return &PaymentIndexer{
		tags:   tagStore,
		logger: logger,
	}
}

// ProcessTransfer credits a transfer to null with a "@author/permlink" memo
// to the post's promotion balance. It must run inside a write session.
func (pay *PaymentIndexer) ProcessTransfer(op transferOp) {
	if op.To != promotionAccount || pay.tags == nil {
		return
	}
	author, permlink, ok := parsePromotionMemo(op.Memo)
	if !ok {
		return
	}
	if err := pay.tags.Promote(author, permlink, op.Amount); err != nil {
		pay.logger.Warn("Failed to promote post",
			zap.String("author", author),
			zap.String("permlink", permlink),
			zap.Error(err))
		return
	}

	pay.logger.Debug("Processed payment",
		zap.String("from", op.From),
		zap.String("amount", op.Amount.String()),
		zap.String("author", author),
		zap.String("permlink", permlink))
}

func parsePromotionMemo(memo string) (string, string, bool) {
	memo = strings.TrimSpace(memo)
	if !strings.HasPrefix(memo, "@") {
		return "", "", false
	}
	author, permlink, ok := strings.Cut(memo[1:], "/")
	if !ok || author == "" || permlink == "" {
		return "", "", false
	}
	return author, permlink, true
}
