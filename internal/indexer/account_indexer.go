package indexer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/golosd"
)

// maxAccountFetch bounds one get_accounts call.
const maxAccountFetch = 1000

// AccountIndexer handles account indexing
type AccountIndexer struct {
	node   Node
	db     *chain.Database
	logger *zap.Logger
	dirty  map[string]bool // Dirty queue for accounts that need updates
}

// NewAccountIndexer creates a new account indexer
func NewAccountIndexer(node Node, db *chain.Database, logger *zap.Logger) *AccountIndexer {
	return &AccountIndexer{
		node:   node,
		db:     db,
		logger: logger,
		dirty:  make(map[string]bool),
	}
}

// MarkDirty marks an account as needing a refresh
func (ai *AccountIndexer) MarkDirty(name string) {
	ai.dirty[name] = true
}

// Fetch loads every dirty account from the node and clears the queue.
func (ai *AccountIndexer) Fetch(ctx context.Context) ([]chain.Account, error) {
	if len(ai.dirty) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(ai.dirty))
	for name := range ai.dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	var accounts []chain.Account
	for start := 0; start < len(names); start += maxAccountFetch {
		end := min(start+maxAccountFetch, len(names))
		raw, err := ai.node.GetAccounts(ctx, names[start:end])
		if err != nil {
			return nil, fmt.Errorf("get_accounts: %w", err)
		}
		for _, m := range raw {
			a, err := golosd.AccountFromObject(m)
			if err != nil {
				ai.logger.Warn("Skipping malformed account", zap.Error(err))
				continue
			}
			accounts = append(accounts, a)
		}
	}
	ai.dirty = make(map[string]bool)
	return accounts, nil
}

// Apply stores fetched accounts. It must run inside a write session.
func (ai *AccountIndexer) Apply(accounts []chain.Account) error {
	for _, a := range accounts {
		if _, err := ai.db.StoreAccount(a); err != nil {
			return fmt.Errorf("store account %s: %w", a.Name, err)
		}
	}
	return nil
}
