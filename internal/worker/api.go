package worker

import (
	"cmp"
	"slices"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
)

// ProposalObject is the API form of a worker proposal.
type ProposalObject struct {
	Author               string                      `json:"author"`
	Permlink             string                      `json:"permlink"`
	Type                 protocol.WorkerProposalType `json:"type"`
	State                ProposalState               `json:"state"`
	Deposit              protocol.Asset              `json:"deposit"`
	ApprovedTechspec     chain.ID                    `json:"approved_techspec_id"`
	Worker               string                      `json:"worker"`
	WorkBeginningTime    protocol.Time               `json:"work_beginning_time"`
	WorkerPaymentsCount  uint8                       `json:"worker_payments_count"`
	PaymentBeginningTime protocol.Time               `json:"payment_beginning_time"`
	Created              protocol.Time               `json:"created"`
	Modified             protocol.Time               `json:"modified"`
	NetRshares           int64                       `json:"net_rshares"`
}

func newProposalObject(p *Proposal) ProposalObject {
	return ProposalObject{
		Author:               p.Author,
		Permlink:             p.Permlink,
		Type:                 p.Type,
		State:                p.State,
		Deposit:              p.Deposit,
		ApprovedTechspec:     p.ApprovedTechspec,
		Worker:               p.Worker,
		WorkBeginningTime:    protocol.NewTime(p.WorkBeginningTime),
		WorkerPaymentsCount:  p.WorkerPaymentsCount,
		PaymentBeginningTime: protocol.NewTime(p.PaymentBeginningTime),
		Created:              protocol.NewTime(p.Created),
		Modified:             protocol.NewTime(p.Modified),
	}
}

// TechspecObject is the API form of a worker techspec.
type TechspecObject struct {
	ID                     chain.ID       `json:"id"`
	Author                 string         `json:"author"`
	Permlink               string         `json:"permlink"`
	WorkerProposalAuthor   string         `json:"worker_proposal_author"`
	WorkerProposalPermlink string         `json:"worker_proposal_permlink"`
	Created                protocol.Time  `json:"created"`
	Modified               protocol.Time  `json:"modified"`
	SpecificationCost      protocol.Asset `json:"specification_cost"`
	SpecificationEta       protocol.Time  `json:"specification_eta"`
	DevelopmentCost        protocol.Asset `json:"development_cost"`
	DevelopmentEta         protocol.Time  `json:"development_eta"`
	PaymentsCount          uint16         `json:"payments_count"`
	PaymentsInterval       uint32         `json:"payments_interval"`
	Approved               bool           `json:"approved"`
}

func newTechspecObject(ts *Techspec, approved bool) TechspecObject {
	return TechspecObject{
		ID:                     ts.ID,
		Author:                 ts.Author,
		Permlink:               ts.Permlink,
		WorkerProposalAuthor:   ts.WorkerProposalAuthor,
		WorkerProposalPermlink: ts.WorkerProposalPermlink,
		Created:                protocol.NewTime(ts.Created),
		Modified:               protocol.NewTime(ts.Modified),
		SpecificationCost:      ts.SpecificationCost,
		SpecificationEta:       protocol.NewTime(ts.SpecificationEta),
		DevelopmentCost:        ts.DevelopmentCost,
		DevelopmentEta:         protocol.NewTime(ts.DevelopmentEta),
		PaymentsCount:          ts.PaymentsCount,
		PaymentsInterval:       ts.PaymentsInterval,
		Approved:               approved,
	}
}

// ProposalQuery pages worker proposals. Without a start author every
// proposal is considered; with one, only that author's, narrowed to one
// permlink when it is set.
type ProposalQuery struct {
	Limit         uint32 `json:"limit"`
	StartAuthor   string `json:"start_author"`
	StartPermlink string `json:"start_permlink"`
}

func (q *ProposalQuery) Validate() error {
	if q.Limit > MaxQueryLimit {
		return protocol.NewParamError("limit", "must not exceed %d", MaxQueryLimit)
	}
	if q.StartPermlink != "" && q.StartAuthor == "" {
		return protocol.NewParamError("start_permlink", "start_permlink without start_author is useless")
	}
	if q.StartAuthor != "" {
		return protocol.ValidateAccountName("start_author", q.StartAuthor)
	}
	return nil
}

func (q *ProposalQuery) limit() int {
	if q.Limit == 0 {
		return DefaultQueryLimit
	}
	return int(q.Limit)
}

// selectProposals returns the proposals matched by q in key order.
func (s *Store) selectProposals(q ProposalQuery) []*Proposal {
	var out []*Proposal
	collect := func(p *Proposal) bool {
		if q.StartAuthor != "" && p.Author != q.StartAuthor {
			return false
		}
		if q.StartPermlink != "" && p.Permlink != q.StartPermlink {
			return false
		}
		out = append(out, p)
		return true
	}
	if q.StartAuthor == "" {
		s.Proposals.ByPermlink.Ascend(collect)
	} else {
		s.Proposals.ByPermlink.AscendFrom(&Proposal{Author: q.StartAuthor, Permlink: q.StartPermlink}, collect)
	}
	return out
}

func (s *Store) proposals(q ProposalQuery, order func(a, b *ProposalObject) int) ([]ProposalObject, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	selected := s.selectProposals(q)
	out := make([]ProposalObject, len(selected))
	for i, p := range selected {
		out[i] = s.proposalObject(p)
	}
	slices.SortStableFunc(out, func(a, b ProposalObject) int { return order(&a, &b) })
	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

func (s *Store) proposalObject(p *Proposal) ProposalObject {
	obj := newProposalObject(p)
	if c, ok := s.db.Comments.Find(p.Author, p.Permlink); ok {
		obj.NetRshares = c.NetRshares
	}
	return obj
}

// GetWorkerProposalsByCreated lists proposals newest first.
func (s *Store) GetWorkerProposalsByCreated(q ProposalQuery) ([]ProposalObject, error) {
	if q.StartAuthor != "" {
		return s.proposals(q, func(a, b *ProposalObject) int {
			return b.Created.Compare(a.Created.Time)
		})
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	out := []ProposalObject{}
	s.Proposals.ByCreated.Descend(func(p *Proposal) bool {
		if len(out) >= q.limit() {
			return false
		}
		out = append(out, s.proposalObject(p))
		return true
	})
	return out, nil
}

// GetWorkerProposalsByRshares lists proposals by the net rshares of their
// posts, highest first.
func (s *Store) GetWorkerProposalsByRshares(q ProposalQuery) ([]ProposalObject, error) {
	return s.proposals(q, func(a, b *ProposalObject) int {
		return cmp.Compare(b.NetRshares, a.NetRshares)
	})
}

// TechspecQuery selects the techspecs offered against one proposal.
type TechspecQuery struct {
	WorkerProposalAuthor   string `json:"worker_proposal_author"`
	WorkerProposalPermlink string `json:"worker_proposal_permlink"`
	Limit                  uint32 `json:"limit"`
}

// GetWorkerTechspecs lists a proposal's techspecs in creation order.
func (s *Store) GetWorkerTechspecs(q TechspecQuery) ([]TechspecObject, error) {
	if q.Limit > MaxQueryLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", MaxQueryLimit)
	}
	if err := protocol.ValidateAccountName("worker_proposal_author", q.WorkerProposalAuthor); err != nil {
		return nil, err
	}
	if err := protocol.ValidatePermlink("worker_proposal_permlink", q.WorkerProposalPermlink); err != nil {
		return nil, err
	}
	p, ok := s.Proposals.Find(q.WorkerProposalAuthor, q.WorkerProposalPermlink)
	if !ok {
		return nil, chain.NewMissingObject("worker_proposal_object",
			"author", q.WorkerProposalAuthor, "permlink", q.WorkerProposalPermlink)
	}

	limit := int(q.Limit)
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	out := []TechspecObject{}
	for _, ts := range s.Techspecs.ForProposal(p.Author, p.Permlink) {
		if len(out) >= limit {
			break
		}
		out = append(out, newTechspecObject(ts, p.ApprovedTechspec == ts.ID))
	}
	return out, nil
}
