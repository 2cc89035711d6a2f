package indexer

import (
	"context"

	"github.com/golos/golosmind/internal/golosd"
)

// Node is the part of the golosd client the indexer reads from.
type Node interface {
	GetDynamicGlobalProperties(ctx context.Context) (*golosd.DynamicGlobalProperties, error)
	GetBlocks(ctx context.Context, from, to uint32) ([]*golosd.Block, error)
	GetOpsInBlocks(ctx context.Context, from, to uint32) ([][]golosd.AppliedOperation, error)
	GetContent(ctx context.Context, author, permlink string) (map[string]interface{}, error)
	GetActiveVotes(ctx context.Context, author, permlink string) ([]map[string]interface{}, error)
	GetAccounts(ctx context.Context, names []string) ([]map[string]interface{}, error)
}

var _ Node = (*golosd.Client)(nil)
