package indexer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/follow"
)

// FollowIndexer handles follow relationship indexing
type FollowIndexer struct {
	follows *follow.Store
	logger  *zap.Logger
}

// NewFollowIndexer creates a new follow indexer
func NewFollowIndexer(follows *follow.Store, logger *zap.Logger) *FollowIndexer {
	return &FollowIndexer{
		follows: follows,
		logger:  logger,
	}
}

// ProcessFollow processes a follow operation
func (fi *FollowIndexer) ProcessFollow(account string, op followPayload) error {
	if op.Follower == "" || op.Following == "" {
		return fmt.Errorf("invalid follow operation: missing follower or following")
	}

	// Validate account matches operation signer
	if op.Follower != account {
		return fmt.Errorf("follower account mismatch")
	}

	what, err := follow.ParseWhat(op.What)
	if err != nil {
		return err
	}
	if err := fi.follows.Follow(op.Follower, op.Following, what); err != nil {
		return err
	}

	fi.logger.Debug("Processed follow",
		zap.String("follower", op.Follower),
		zap.String("following", op.Following),
		zap.Strings("what", op.What))
	return nil
}
