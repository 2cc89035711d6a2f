package worker

import (
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

// Store owns the governance tables and applies the worker operations that
// mutate them.
type Store struct {
	db     *chain.Database
	logger *zap.Logger

	Proposals *ProposalTable
	Techspecs *TechspecTable
}

// New creates the worker tables on db and registers their evaluators.
func New(db *chain.Database) *Store {
	s := &Store{
		db:        db,
		logger:    logging.GetLogger().With(zap.String("component", "worker")),
		Proposals: newProposalTable(db),
		Techspecs: newTechspecTable(db),
	}
	db.RegisterEvaluator("worker_proposal", evaluator(s.applyProposal))
	db.RegisterEvaluator("worker_proposal_delete", evaluator(s.applyProposalDelete))
	db.RegisterEvaluator("worker_techspec", evaluator(s.applyTechspec))
	db.RegisterEvaluator("worker_techspec_delete", evaluator(s.applyTechspecDelete))
	return s
}

// evaluator adapts a typed apply function to chain.Evaluator.
func evaluator[T protocol.Operation](apply func(T) error) chain.Evaluator {
	return func(op protocol.Operation) error {
		typed, ok := op.(T)
		if !ok {
			return chain.NewLogicError("unexpected_operation", "unexpected operation "+op.Name())
		}
		return apply(typed)
	}
}

// rootPost returns the comment at author/permlink, which must be a post.
func (s *Store) rootPost(author, permlink, code, message string) (*chain.Comment, error) {
	c, ok := s.db.Comments.Find(author, permlink)
	if !ok {
		return nil, chain.NewMissingObject("comment", "author", author, "permlink", permlink)
	}
	if !c.IsRoot() {
		return nil, chain.NewLogicError(code, message)
	}
	return c, nil
}

func (s *Store) applyProposal(op *protocol.WorkerProposalOperation) error {
	if _, err := s.rootPost(op.Author, op.Permlink,
		"worker_proposal_can_be_created_only_on_post",
		"Worker proposal can be created only on post"); err != nil {
		return err
	}

	now := s.db.HeadBlockTime()
	if p, ok := s.Proposals.Find(op.Author, op.Permlink); ok {
		return s.Proposals.Modify(p, func(p *Proposal) {
			p.Type = op.Type
			p.Modified = now
		})
	}

	_, err := s.Proposals.Create(func(p *Proposal) {
		p.Author = op.Author
		p.Permlink = op.Permlink
		p.Type = op.Type
		p.State = StateCreated
		p.Deposit = protocol.Asset{Symbol: protocol.GolosSymbol}
		p.Created = now
		p.Modified = now
	})
	return err
}

func (s *Store) applyProposalDelete(op *protocol.WorkerProposalDeleteOperation) error {
	p, ok := s.Proposals.Find(op.Author, op.Permlink)
	if !ok {
		return chain.NewMissingObject("worker_proposal_object", "author", op.Author, "permlink", op.Permlink)
	}
	if p.State != StateCreated {
		return chain.NewLogicError("cannot_delete_worker_proposal_with_approved_techspec",
			"Cannot delete worker proposal with approved techspec")
	}
	if p.Type != protocol.WorkerProposalTask {
		return chain.NewLogicError("cannot_delete_worker_proposal_with_premade_work",
			"Cannot delete worker proposal with premade work")
	}

	// Collect first: removing while walking would invalidate the index walk.
	techspecs := s.Techspecs.ForProposal(p.Author, p.Permlink)
	for _, ts := range techspecs {
		if err := s.Techspecs.Remove(ts); err != nil {
			return err
		}
	}
	if err := s.Proposals.Remove(p); err != nil {
		return err
	}
	s.logger.Debug("worker proposal deleted",
		zap.String("author", op.Author),
		zap.String("permlink", op.Permlink),
		zap.Int("techspecs", len(techspecs)))
	return nil
}

func (s *Store) applyTechspec(op *protocol.WorkerTechspecOperation) error {
	if _, err := s.rootPost(op.Author, op.Permlink,
		"worker_techspec_can_be_created_only_on_post",
		"Worker techspec can be created only on post"); err != nil {
		return err
	}

	ts, exists := s.Techspecs.Find(op.Author, op.Permlink)
	if exists && (ts.WorkerProposalAuthor != op.WorkerProposalAuthor ||
		ts.WorkerProposalPermlink != op.WorkerProposalPermlink) {
		return chain.NewLogicError("this_worker_techspec_is_already_used_by_another_worker_proposal",
			"This worker techspec is already used by another worker proposal")
	}

	p, ok := s.Proposals.Find(op.WorkerProposalAuthor, op.WorkerProposalPermlink)
	if !ok {
		return chain.NewMissingObject("worker_proposal_object",
			"author", op.WorkerProposalAuthor, "permlink", op.WorkerProposalPermlink)
	}
	if p.State != StateCreated {
		return chain.NewLogicError("this_worker_proposal_already_has_approved_techspec",
			"This worker proposal already has approved techspec")
	}
	if p.Type != protocol.WorkerProposalTask {
		return chain.NewLogicError("cannot_create_techspec_for_premade_worker_proposal",
			"Cannot create techspec for premade worker proposal")
	}

	now := s.db.HeadBlockTime()
	if exists {
		if ts.SpecificationCost.Symbol != op.SpecificationCost.Symbol ||
			ts.DevelopmentCost.Symbol != op.DevelopmentCost.Symbol {
			return chain.NewLogicError("cannot_change_cost_symbol", "Cannot change cost symbol")
		}
		return s.Techspecs.Modify(ts, func(ts *Techspec) {
			ts.SpecificationCost = op.SpecificationCost
			ts.SpecificationEta = op.SpecificationEta.Time
			ts.DevelopmentCost = op.DevelopmentCost
			ts.DevelopmentEta = op.DevelopmentEta.Time
			ts.PaymentsCount = op.PaymentsCount
			ts.PaymentsInterval = op.PaymentsInterval
			ts.Modified = now
		})
	}

	_, err := s.Techspecs.Create(func(ts *Techspec) {
		ts.Author = op.Author
		ts.Permlink = op.Permlink
		ts.WorkerProposalAuthor = op.WorkerProposalAuthor
		ts.WorkerProposalPermlink = op.WorkerProposalPermlink
		ts.Created = now
		ts.Modified = now
		ts.SpecificationCost = op.SpecificationCost
		ts.SpecificationEta = op.SpecificationEta.Time
		ts.DevelopmentCost = op.DevelopmentCost
		ts.DevelopmentEta = op.DevelopmentEta.Time
		ts.PaymentsCount = op.PaymentsCount
		ts.PaymentsInterval = op.PaymentsInterval
	})
	return err
}

func (s *Store) applyTechspecDelete(op *protocol.WorkerTechspecDeleteOperation) error {
	ts, ok := s.Techspecs.Find(op.Author, op.Permlink)
	if !ok {
		return chain.NewMissingObject("worker_techspec_object", "author", op.Author, "permlink", op.Permlink)
	}
	if p, ok := s.Proposals.Find(ts.WorkerProposalAuthor, ts.WorkerProposalPermlink); ok && p.ApprovedTechspec == ts.ID {
		return chain.NewLogicError("cannot_delete_approved_techspec", "Cannot delete approved techspec")
	}
	return s.Techspecs.Remove(ts)
}

// Approve records ts as the approved techspec of its proposal and moves the
// proposal to the techspec stage. It must run inside a write session.
func (s *Store) Approve(ts *Techspec) error {
	p, ok := s.Proposals.Find(ts.WorkerProposalAuthor, ts.WorkerProposalPermlink)
	if !ok {
		return chain.NewMissingObject("worker_proposal_object",
			"author", ts.WorkerProposalAuthor, "permlink", ts.WorkerProposalPermlink)
	}
	if p.State != StateCreated {
		return chain.NewLogicError("this_worker_proposal_already_has_approved_techspec",
			"This worker proposal already has approved techspec")
	}
	return s.Proposals.Modify(p, func(p *Proposal) {
		p.ApprovedTechspec = ts.ID
		p.State = StateTechspec
		p.Modified = s.db.HeadBlockTime()
	})
}
