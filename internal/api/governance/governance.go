// Package governance serves worker_api and network_broadcast_api.
package governance

import (
	"context"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/logging"
)

// ErrNotStandalone rejects broadcasts on a node that follows an upstream
// chain; such operations must be sent to the upstream node.
var ErrNotStandalone = chain.NewLogicError("broadcast_disabled", "operations are only accepted by a standalone node")

// API provides worker proposal queries and local operation broadcast.
type API struct {
	db         *chain.Database
	workers    *worker.Store
	standalone bool
	logger     *zap.Logger
}

func New(db *chain.Database, workers *worker.Store, standalone bool) *API {
	return &API{
		db:         db,
		workers:    workers,
		standalone: standalone,
		logger:     logging.WithComponent("governance-api"),
	}
}

func (a *API) proposals(p rpc.Params, fn func(worker.ProposalQuery) ([]worker.ProposalObject, error)) (interface{}, error) {
	q := worker.ProposalQuery{Limit: worker.DefaultQueryLimit}
	if p.Len() > 0 {
		if err := p.Decode(0, "query", &q); err != nil {
			return nil, err
		}
	}
	var out []worker.ProposalObject
	var err error
	a.db.WithReadLock(func() {
		out, err = fn(q)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkerProposalsByCreated handles get_worker_proposals_by_created(query)
func (a *API) GetWorkerProposalsByCreated(ctx context.Context, p rpc.Params) (interface{}, error) {
	return a.proposals(p, a.workers.GetWorkerProposalsByCreated)
}

// GetWorkerProposalsByRshares handles get_worker_proposals_by_rshares(query)
func (a *API) GetWorkerProposalsByRshares(ctx context.Context, p rpc.Params) (interface{}, error) {
	return a.proposals(p, a.workers.GetWorkerProposalsByRshares)
}

// GetWorkerTechspecs handles
// get_worker_techspecs(worker_proposal_author, worker_proposal_permlink, limit)
func (a *API) GetWorkerTechspecs(ctx context.Context, p rpc.Params) (interface{}, error) {
	if err := p.Require(2, "worker_proposal_author", "worker_proposal_permlink"); err != nil {
		return nil, err
	}
	var q worker.TechspecQuery
	var err error
	if q.WorkerProposalAuthor, err = p.String(0, "worker_proposal_author"); err != nil {
		return nil, err
	}
	if q.WorkerProposalPermlink, err = p.String(1, "worker_proposal_permlink"); err != nil {
		return nil, err
	}
	if q.Limit, err = p.Uint32(2, "limit", worker.DefaultQueryLimit); err != nil {
		return nil, err
	}
	var out []worker.TechspecObject
	a.db.WithReadLock(func() {
		out, err = a.workers.GetWorkerTechspecs(q)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BroadcastOperation handles broadcast_operation(operation). The operation
// is a tagged variant [name, body] and is applied to the local store.
func (a *API) BroadcastOperation(ctx context.Context, p rpc.Params) (interface{}, error) {
	if !a.standalone {
		return nil, ErrNotStandalone
	}
	raw := p.Raw(0)
	if raw == nil {
		return nil, protocol.NewParamError("operation", "is required")
	}
	op, err := protocol.DecodeOperation(raw)
	if err != nil {
		return nil, protocol.NewParamError("operation", "%v", err)
	}
	if !a.db.HasEvaluator(op.Name()) {
		return nil, protocol.NewParamError("operation", "%s is not accepted by this node", op.Name())
	}
	if err := a.db.PushOperation(op); err != nil {
		return nil, err
	}
	a.logger.Info("operation applied", zap.String("operation", op.Name()))
	return map[string]interface{}{"operation": op.Name(), "applied": true}, nil
}
