package condenser

import (
	"context"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/state"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	maxAccountLookup = 1000
	maxHistoryLimit  = 10000
)

// DatabaseAPI serves chain state: globals, accounts, witnesses and get_state.
type DatabaseAPI struct {
	db     *chain.Database
	state  *state.Service
	logger *zap.Logger
}

func NewDatabaseAPI(db *chain.Database, st *state.Service) *DatabaseAPI {
	return &DatabaseAPI{
		db:     db,
		state:  st,
		logger: logging.WithComponent("condenser-api-database"),
	}
}

// GetDynamicGlobalProperties handles get_dynamic_global_properties()
func (d *DatabaseAPI) GetDynamicGlobalProperties(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (objects.DynamicGlobalProperties, error) {
		return objects.NewDynamicGlobalProperties(d.db.Props.Get()), nil
	})
}

// GetConfig handles get_config()
func (d *DatabaseAPI) GetConfig(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (map[string]interface{}, error) {
		schedule := d.db.Schedule.Get()
		return map[string]interface{}{
			"STEEMIT_BLOCKCHAIN_VERSION":      schedule.MajorityVersion,
			"STEEMIT_HEAD_BLOCK_NUMBER":       d.db.HeadBlockNum(),
			"STEEMIT_MAX_BLOCK_SIZE":          schedule.MedianProps.MaximumBlockSize,
			"STEEMIT_SYMBOL":                  protocol.GolosSymbol.Name,
			"STEEMIT_SBD_SYMBOL":              protocol.GBGSymbol.Name,
			"STEEMIT_VESTS_SYMBOL":            protocol.GestsSymbol.Name,
			"STEEMIT_MAX_SHARE_SUPPLY":        chain.MaxShareSupply,
			"STEEMIT_MIN_ACCOUNT_NAME_LENGTH": protocol.MinAccountNameLength,
			"STEEMIT_MAX_ACCOUNT_NAME_LENGTH": protocol.MaxAccountNameLength,
			"STEEMIT_MAX_PERMLINK_LENGTH":     protocol.MaxPermlinkLength,
			"STEEMIT_ROOT_POST_PARENT":        protocol.RootPostParent,
		}, nil
	})
}

// GetFeedHistory handles get_feed_history()
func (d *DatabaseAPI) GetFeedHistory(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (objects.FeedHistory, error) {
		return objects.NewFeedHistory(d.db.FeedHistory.Get()), nil
	})
}

// GetCurrentMedianHistoryPrice handles get_current_median_history_price()
func (d *DatabaseAPI) GetCurrentMedianHistoryPrice(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (protocol.Price, error) {
		return d.db.FeedHistory.Get().CurrentMedianHistory, nil
	})
}

// GetRewardFund handles get_reward_fund(name)
func (d *DatabaseAPI) GetRewardFund(ctx context.Context, p rpc.Params) (interface{}, error) {
	name, err := p.OptString(0, "name", chain.DefaultRewardFund)
	if err != nil {
		return nil, err
	}
	return read(d.db, func() (objects.RewardFund, error) {
		f, ok := d.db.RewardFunds.Find(name)
		if !ok {
			return objects.RewardFund{}, chain.NewMissingObject("reward_fund", "name", name)
		}
		return objects.NewRewardFund(f), nil
	})
}

// GetAccounts handles get_accounts(names)
func (d *DatabaseAPI) GetAccounts(ctx context.Context, p rpc.Params) (interface{}, error) {
	names, err := p.Strings(0, "names")
	if err != nil {
		return nil, err
	}
	if len(names) > maxAccountLookup {
		return nil, protocol.NewParamError("names", "at most %d accounts may be looked up", maxAccountLookup)
	}
	return read(d.db, func() ([]*objects.ExtendedAccount, error) {
		return d.state.GetAccounts(names)
	})
}

// GetAccountCount handles get_account_count()
func (d *DatabaseAPI) GetAccountCount(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (int, error) {
		return d.state.GetAccountCount(), nil
	})
}

// GetAccountHistory handles get_account_history(account, from, limit)
func (d *DatabaseAPI) GetAccountHistory(ctx context.Context, p rpc.Params) (interface{}, error) {
	if err := p.Require(3, "account", "from", "limit"); err != nil {
		return nil, err
	}
	account, err := p.String(0, "account")
	if err != nil {
		return nil, err
	}
	from, err := p.Int64(1, "from", -1)
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(2, "limit", 100)
	if err != nil {
		return nil, err
	}
	if limit > maxHistoryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxHistoryLimit)
	}
	return read(d.db, func() ([]objects.HistoryItem, error) {
		return d.state.GetAccountHistory(account, from, limit)
	})
}

// GetWitnessesByVote handles get_witnesses_by_vote(from, limit)
func (d *DatabaseAPI) GetWitnessesByVote(ctx context.Context, p rpc.Params) (interface{}, error) {
	from, err := p.OptString(0, "from", "")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(1, "limit", 100)
	if err != nil {
		return nil, err
	}
	return read(d.db, func() ([]objects.Witness, error) {
		return d.state.GetWitnessesByVote(from, limit)
	})
}

// GetMinerQueue handles get_miner_queue()
func (d *DatabaseAPI) GetMinerQueue(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() ([]string, error) {
		return d.state.GetMinerQueue(), nil
	})
}

// GetWitnessSchedule handles get_witness_schedule()
func (d *DatabaseAPI) GetWitnessSchedule(ctx context.Context, p rpc.Params) (interface{}, error) {
	return read(d.db, func() (objects.WitnessSchedule, error) {
		return objects.NewWitnessSchedule(d.db.Schedule.Get()), nil
	})
}

// GetState handles get_state(path)
func (d *DatabaseAPI) GetState(ctx context.Context, p rpc.Params) (interface{}, error) {
	path, err := p.OptString(0, "path", "")
	if err != nil {
		return nil, err
	}
	var st *objects.State
	d.db.WithReadLock(func() {
		st = d.state.GetState(path)
	})
	if st.Error != "" {
		d.logger.Debug("get_state degraded", zap.String("path", path), zap.String("error", st.Error))
	}
	if s := rpc.SessionFrom(ctx); s != nil {
		keys := make([]string, 0, len(st.Content))
		for key := range st.Content {
			keys = append(keys, key)
		}
		s.Watch(keys...)
	}
	return st, nil
}
