package worker

import (
	"cmp"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// ProposalState is the lifecycle stage of a worker proposal.
type ProposalState uint8

const (
	StateCreated ProposalState = iota
	StateTechspec
	StateWork
	StateWitnessesReview
	StatePayment
	StateClosed
)

var proposalStateNames = []string{"created", "techspec", "work", "witnesses_review", "payment", "closed"}

func (s ProposalState) String() string {
	if int(s) < len(proposalStateNames) {
		return proposalStateNames[s]
	}
	return fmt.Sprintf("worker_proposal_state(%d)", uint8(s))
}

// ParseProposalState is the inverse of ProposalState.String.
func ParseProposalState(name string) (ProposalState, error) {
	for i, n := range proposalStateNames {
		if n == name {
			return ProposalState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown worker proposal state %q", name)
}

func (s ProposalState) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s.String())
}

type Proposal struct {
	chain.ObjectBase

	Author               string
	Permlink             string
	Type                 protocol.WorkerProposalType
	State                ProposalState
	Deposit              protocol.Asset
	ApprovedTechspec     chain.ID
	Worker               string
	WorkBeginningTime    time.Time
	WorkerPaymentsCount  uint8
	PaymentBeginningTime time.Time
	Created              time.Time
	Modified             time.Time
}

type ProposalTable struct {
	*chain.Table[Proposal, *Proposal]

	ByPermlink *chain.Index[Proposal, *Proposal]
	// ByCreated walks newest first with Descend; ties go by author/permlink.
	ByCreated *chain.Index[Proposal, *Proposal]
}

func newProposalTable(db *chain.Database) *ProposalTable {
	t := &ProposalTable{Table: chain.NewTable[Proposal, *Proposal](db, "worker_proposal")}
	t.SetKey(func(p *Proposal) string { return "worker_proposal:" + p.Author + "/" + p.Permlink })
	t.ByPermlink = t.AddUniqueIndex("by_permlink", func(a, b *Proposal) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			cmp.Compare(a.Permlink, b.Permlink),
		) < 0
	})
	t.ByCreated = t.AddIndex("by_created", func(a, b *Proposal) bool {
		return cmp.Or(
			a.Created.Compare(b.Created),
			cmp.Compare(b.Author, a.Author),
			cmp.Compare(b.Permlink, a.Permlink),
		) < 0
	})
	return t
}

func (t *ProposalTable) Find(author, permlink string) (*Proposal, bool) {
	return t.ByPermlink.Find(&Proposal{Author: author, Permlink: permlink})
}

// Techspec is a cost and schedule offer made against a worker proposal.
type Techspec struct {
	chain.ObjectBase

	Author                 string
	Permlink               string
	WorkerProposalAuthor   string
	WorkerProposalPermlink string
	Created                time.Time
	Modified               time.Time
	SpecificationCost      protocol.Asset
	SpecificationEta       time.Time
	DevelopmentCost        protocol.Asset
	DevelopmentEta         time.Time
	PaymentsCount          uint16
	PaymentsInterval       uint32
}

type TechspecTable struct {
	*chain.Table[Techspec, *Techspec]

	ByPermlink       *chain.Index[Techspec, *Techspec]
	ByWorkerProposal *chain.Index[Techspec, *Techspec]
}

func newTechspecTable(db *chain.Database) *TechspecTable {
	t := &TechspecTable{Table: chain.NewTable[Techspec, *Techspec](db, "worker_techspec")}
	t.SetKey(func(ts *Techspec) string { return "worker_techspec:" + ts.Author + "/" + ts.Permlink })
	t.ByPermlink = t.AddUniqueIndex("by_permlink", func(a, b *Techspec) bool {
		return cmp.Or(
			cmp.Compare(a.Author, b.Author),
			cmp.Compare(a.Permlink, b.Permlink),
		) < 0
	})
	t.ByWorkerProposal = t.AddIndex("by_worker_proposal", func(a, b *Techspec) bool {
		return cmp.Or(
			cmp.Compare(a.WorkerProposalAuthor, b.WorkerProposalAuthor),
			cmp.Compare(a.WorkerProposalPermlink, b.WorkerProposalPermlink),
			cmp.Compare(a.ID, b.ID),
		) < 0
	})
	return t
}

func (t *TechspecTable) Find(author, permlink string) (*Techspec, bool) {
	return t.ByPermlink.Find(&Techspec{Author: author, Permlink: permlink})
}

// ForProposal returns the techspecs offered against a proposal in creation
// order.
func (t *TechspecTable) ForProposal(author, permlink string) []*Techspec {
	var out []*Techspec
	t.ByWorkerProposal.AscendFrom(&Techspec{WorkerProposalAuthor: author, WorkerProposalPermlink: permlink}, func(ts *Techspec) bool {
		if ts.WorkerProposalAuthor != author || ts.WorkerProposalPermlink != permlink {
			return false
		}
		out = append(out, ts)
		return true
	})
	return out
}
