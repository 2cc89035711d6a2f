package indexer

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
)

// followPluginID is the custom_json id of follow and reblog operations.
const followPluginID = "follow"

type reblogPayload struct {
	Account  string `json:"account"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

type followPayload struct {
	Follower  string   `json:"follower"`
	Following string   `json:"following"`
	What      []string `json:"what"`
}

// CustomOpProcessor processes custom JSON operations
type CustomOpProcessor struct {
	db            *chain.Database
	followIndexer *FollowIndexer
	logger        *zap.Logger
}

// NewCustomOpProcessor creates a new custom op processor
func NewCustomOpProcessor(db *chain.Database, follows *follow.Store, logger *zap.Logger) *CustomOpProcessor {
	return &CustomOpProcessor{
		db:            db,
		followIndexer: NewFollowIndexer(follows, logger),
		logger:        logger,
	}
}

// ProcessOp applies one custom_json operation. Rejected payloads are logged
// and skipped; each runs in its own session so a failure leaves no trace.
// It must run inside a write session.
func (cop *CustomOpProcessor) ProcessOp(op customJSONOp, blockDate time.Time) {
	if op.ID != followPluginID || cop.followIndexer.follows == nil {
		return
	}
	if len(op.RequiredPostingAuths) != 1 {
		cop.logger.Warn("Unexpected auths in custom_json", zap.Int("count", len(op.RequiredPostingAuths)))
		return
	}
	account := op.RequiredPostingAuths[0]

	cmd, payload, err := parseFollowJSON(op.JSON)
	if err != nil {
		cop.logger.Warn("Malformed follow operation", zap.String("account", account), zap.Error(err))
		return
	}

	err = cop.db.Session(func() error {
		switch cmd {
		case "reblog":
			var r reblogPayload
			if err := json.Unmarshal(payload, &r); err != nil {
				return err
			}
			return cop.ProcessReblog(account, r, blockDate)
		case "follow":
			var f followPayload
			if err := json.Unmarshal(payload, &f); err != nil {
				return err
			}
			return cop.followIndexer.ProcessFollow(account, f)
		default:
			return fmt.Errorf("unknown follow plugin command %q", cmd)
		}
	})
	if err != nil {
		cop.logger.Warn("Failed to process follow operation",
			zap.String("account", account),
			zap.String("command", cmd),
			zap.Error(err))
	}
}

// parseFollowJSON accepts both the ["command", {...}] form and a bare object,
// which is a reblog when it names a permlink and a follow otherwise.
func parseFollowJSON(raw string) (string, []byte, error) {
	var pair []jsoniter.RawMessage
	if err := json.Unmarshal([]byte(raw), &pair); err == nil {
		if len(pair) != 2 {
			return "", nil, fmt.Errorf("expected [command, payload], got %d items", len(pair))
		}
		var cmd string
		if err := json.Unmarshal(pair[0], &cmd); err != nil {
			return "", nil, fmt.Errorf("command: %w", err)
		}
		return cmd, pair[1], nil
	}

	var obj map[string]jsoniter.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", nil, err
	}
	if _, ok := obj["permlink"]; ok {
		return "reblog", []byte(raw), nil
	}
	return "follow", []byte(raw), nil
}

// ProcessReblog processes a reblog operation
func (cop *CustomOpProcessor) ProcessReblog(account string, r reblogPayload, blockDate time.Time) error {
	if r.Account != "" && r.Account != account {
		return fmt.Errorf("reblog account %s does not match signer %s", r.Account, account)
	}
	if r.Author == "" || r.Permlink == "" {
		return fmt.Errorf("missing author or permlink in reblog op")
	}
	if err := cop.followIndexer.follows.Reblog(account, r.Author, r.Permlink, blockDate); err != nil {
		return err
	}
	cop.logger.Debug("Created reblog",
		zap.String("account", account),
		zap.String("author", r.Author),
		zap.String("permlink", r.Permlink))
	return nil
}
