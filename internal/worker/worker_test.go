package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

var t0 = time.Unix(1540000000, 0).UTC()

func setup(t *testing.T) (*chain.Database, *Store) {
	t.Helper()
	db := chain.NewDatabase()
	s := New(db)

	require.NoError(t, db.WithWriteLock(func() error {
		posts := []chain.Comment{
			{Author: "alice", Permlink: "proposal", ParentPermlink: "golos", NetRshares: 10},
			{Author: "alice", Permlink: "premade", ParentPermlink: "golos", NetRshares: 30},
			{Author: "bob", Permlink: "spec", ParentPermlink: "golos"},
			{Author: "carol", Permlink: "spec", ParentPermlink: "golos"},
			{Author: "dave", Permlink: "later", ParentPermlink: "golos", NetRshares: 20},
			{Author: "bob", Permlink: "reply", ParentAuthor: "alice", ParentPermlink: "proposal"},
		}
		for _, c := range posts {
			c.Category = "golos"
			if _, err := db.StoreComment(c); err != nil {
				return err
			}
		}
		return nil
	}))
	advance(t, db, t0)
	return db, s
}

func advance(t *testing.T, db *chain.Database, at time.Time) {
	t.Helper()
	require.NoError(t, db.WithWriteLock(func() error {
		return db.Props.Modify(func(p *chain.DynamicGlobalProperties) { p.Time = at })
	}))
}

func logicCode(code string) error { return chain.NewLogicError(code, "") }

func proposalOp(author, permlink string, typ protocol.WorkerProposalType) *protocol.WorkerProposalOperation {
	return &protocol.WorkerProposalOperation{Author: author, Permlink: permlink, Type: typ}
}

func techspecOp(author string, cost protocol.Asset) *protocol.WorkerTechspecOperation {
	return &protocol.WorkerTechspecOperation{
		Author:                 author,
		Permlink:               "spec",
		WorkerProposalAuthor:   "alice",
		WorkerProposalPermlink: "proposal",
		SpecificationCost:      cost,
		SpecificationEta:       protocol.NewTime(t0.Add(24 * time.Hour)),
		DevelopmentCost:        cost,
		DevelopmentEta:         protocol.NewTime(t0.Add(72 * time.Hour)),
		PaymentsCount:          2,
		PaymentsInterval:       86400,
	}
}

func TestProposalCreateAndResubmit(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	p, ok := s.Proposals.Find("alice", "proposal")
	require.True(t, ok)
	assert.Equal(t, StateCreated, p.State)
	assert.Equal(t, t0, p.Created)
	assert.Equal(t, t0, p.Modified)

	later := t0.Add(time.Hour)
	advance(t, db, later)
	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalPremadeWork)))
	assert.Equal(t, 1, s.Proposals.Len())
	assert.Equal(t, protocol.WorkerProposalPremadeWork, p.Type)
	assert.Equal(t, t0, p.Created)
	assert.Equal(t, later, p.Modified)
	assert.Equal(t, StateCreated, p.State)
}

func TestProposalRequiresPost(t *testing.T) {
	db, s := setup(t)

	err := db.PushOperation(proposalOp("bob", "reply", protocol.WorkerProposalTask))
	assert.ErrorIs(t, err, logicCode("worker_proposal_can_be_created_only_on_post"))

	err = db.PushOperation(proposalOp("bob", "nothing", protocol.WorkerProposalTask))
	assert.ErrorIs(t, err, chain.ErrMissingObject)
	assert.Zero(t, s.Proposals.Len())
}

func TestProposalDelete(t *testing.T) {
	db, s := setup(t)

	err := db.PushOperation(&protocol.WorkerProposalDeleteOperation{Author: "alice", Permlink: "proposal"})
	var missing *chain.MissingObjectError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "alice", missing.Key["author"])
	assert.Equal(t, "proposal", missing.Key["permlink"])

	require.NoError(t, db.PushOperation(proposalOp("alice", "premade", protocol.WorkerProposalPremadeWork)))
	err = db.PushOperation(&protocol.WorkerProposalDeleteOperation{Author: "alice", Permlink: "premade"})
	assert.ErrorIs(t, err, logicCode("cannot_delete_worker_proposal_with_premade_work"))
	_, ok := s.Proposals.Find("alice", "premade")
	assert.True(t, ok)
}

func TestProposalDeleteCascades(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))))
	require.NoError(t, db.PushOperation(techspecOp("carol", protocol.NewAsset(2000, protocol.GolosSymbol))))
	require.Len(t, s.Techspecs.ForProposal("alice", "proposal"), 2)

	require.NoError(t, db.PushOperation(&protocol.WorkerProposalDeleteOperation{Author: "alice", Permlink: "proposal"}))
	assert.Zero(t, s.Proposals.Len())
	assert.Zero(t, s.Techspecs.Len())
}

func TestProposalDeleteWithApprovedTechspec(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))))
	ts, ok := s.Techspecs.Find("bob", "spec")
	require.True(t, ok)
	require.NoError(t, db.WithWriteLock(func() error { return s.Approve(ts) }))

	err := db.PushOperation(&protocol.WorkerProposalDeleteOperation{Author: "alice", Permlink: "proposal"})
	assert.ErrorIs(t, err, logicCode("cannot_delete_worker_proposal_with_approved_techspec"))
	assert.Equal(t, 1, s.Proposals.Len())
	assert.Equal(t, 1, s.Techspecs.Len())

	err = db.PushOperation(&protocol.WorkerTechspecDeleteOperation{Author: "bob", Permlink: "spec"})
	assert.ErrorIs(t, err, logicCode("cannot_delete_approved_techspec"))
	assert.Equal(t, 1, s.Techspecs.Len())

	err = db.PushOperation(techspecOp("carol", protocol.NewAsset(1000, protocol.GolosSymbol)))
	assert.ErrorIs(t, err, logicCode("this_worker_proposal_already_has_approved_techspec"))
}

func TestTechspecUpdateKeepsSymbols(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))))

	later := t0.Add(time.Hour)
	advance(t, db, later)
	op := techspecOp("bob", protocol.NewAsset(5000, protocol.GolosSymbol))
	op.PaymentsCount = 4
	require.NoError(t, db.PushOperation(op))

	ts, ok := s.Techspecs.Find("bob", "spec")
	require.True(t, ok)
	assert.Equal(t, int64(5000), ts.DevelopmentCost.Amount)
	assert.Equal(t, uint16(4), ts.PaymentsCount)
	assert.Equal(t, t0, ts.Created)
	assert.Equal(t, later, ts.Modified)

	err := db.PushOperation(techspecOp("bob", protocol.NewAsset(5000, protocol.GBGSymbol)))
	assert.ErrorIs(t, err, logicCode("cannot_change_cost_symbol"))
	assert.Equal(t, protocol.GolosSymbol, ts.SpecificationCost.Symbol)
}

func TestTechspecCannotMoveToAnotherProposal(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(proposalOp("dave", "later", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(10000, protocol.GolosSymbol))))
	ts, ok := s.Techspecs.Find("bob", "spec")
	require.True(t, ok)
	require.NoError(t, db.WithWriteLock(func() error { return s.Approve(ts) }))

	op := techspecOp("bob", protocol.NewAsset(999000, protocol.GolosSymbol))
	op.WorkerProposalAuthor = "dave"
	op.WorkerProposalPermlink = "later"
	err := db.PushOperation(op)
	assert.ErrorIs(t, err, logicCode("this_worker_techspec_is_already_used_by_another_worker_proposal"))

	assert.Equal(t, "alice", ts.WorkerProposalAuthor)
	assert.Equal(t, "proposal", ts.WorkerProposalPermlink)
	assert.Equal(t, int64(10000), ts.SpecificationCost.Amount)
	assert.Equal(t, int64(10000), ts.DevelopmentCost.Amount)

	later, ok := s.Proposals.Find("dave", "later")
	require.True(t, ok)
	assert.Equal(t, StateCreated, later.State)

	// the linked proposal's gate still applies to an unchanged linkage
	err = db.PushOperation(techspecOp("bob", protocol.NewAsset(999000, protocol.GolosSymbol)))
	assert.ErrorIs(t, err, logicCode("this_worker_proposal_already_has_approved_techspec"))
	assert.Equal(t, int64(10000), ts.SpecificationCost.Amount)
}

func TestTechspecPreconditions(t *testing.T) {
	db, s := setup(t)

	op := techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))
	assert.ErrorIs(t, db.PushOperation(op), chain.ErrMissingObject)

	require.NoError(t, db.PushOperation(proposalOp("alice", "premade", protocol.WorkerProposalPremadeWork)))
	op.WorkerProposalPermlink = "premade"
	assert.ErrorIs(t, db.PushOperation(op), logicCode("cannot_create_techspec_for_premade_worker_proposal"))

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	op = techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))
	op.Permlink = "reply"
	assert.ErrorIs(t, db.PushOperation(op), logicCode("worker_techspec_can_be_created_only_on_post"))

	op = techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))
	op.DevelopmentEta = op.SpecificationEta
	var perr *protocol.ParamError
	assert.ErrorAs(t, db.PushOperation(op), &perr)

	assert.Zero(t, s.Techspecs.Len())
}

func TestTechspecDelete(t *testing.T) {
	db, s := setup(t)

	err := db.PushOperation(&protocol.WorkerTechspecDeleteOperation{Author: "bob", Permlink: "spec"})
	assert.ErrorIs(t, err, chain.ErrMissingObject)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))))
	require.NoError(t, db.PushOperation(&protocol.WorkerTechspecDeleteOperation{Author: "bob", Permlink: "spec"}))
	assert.Zero(t, s.Techspecs.Len())
}

func TestProposalQueries(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	advance(t, db, t0.Add(time.Hour))
	require.NoError(t, db.PushOperation(proposalOp("alice", "premade", protocol.WorkerProposalPremadeWork)))
	advance(t, db, t0.Add(2*time.Hour))
	require.NoError(t, db.PushOperation(proposalOp("dave", "later", protocol.WorkerProposalTask)))

	names := func(list []ProposalObject) []string {
		out := make([]string, len(list))
		for i, p := range list {
			out[i] = p.Author + "/" + p.Permlink
		}
		return out
	}

	byCreated, err := s.GetWorkerProposalsByCreated(ProposalQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dave/later", "alice/premade", "alice/proposal"}, names(byCreated))

	newest, err := s.GetWorkerProposalsByCreated(ProposalQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"dave/later", "alice/premade"}, names(newest))

	byRshares, err := s.GetWorkerProposalsByRshares(ProposalQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/premade", "dave/later"}, names(byRshares))

	own, err := s.GetWorkerProposalsByCreated(ProposalQuery{StartAuthor: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/premade", "alice/proposal"}, names(own))

	one, err := s.GetWorkerProposalsByCreated(ProposalQuery{StartAuthor: "alice", StartPermlink: "proposal"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/proposal"}, names(one))

	var perr *protocol.ParamError
	_, err = s.GetWorkerProposalsByCreated(ProposalQuery{StartPermlink: "proposal"})
	assert.ErrorAs(t, err, &perr)
	_, err = s.GetWorkerProposalsByRshares(ProposalQuery{Limit: MaxQueryLimit + 1})
	assert.ErrorAs(t, err, &perr)
}

func TestProposalsCreatedTogether(t *testing.T) {
	db, s := setup(t)

	for _, op := range []*protocol.WorkerProposalOperation{
		proposalOp("dave", "later", protocol.WorkerProposalTask),
		proposalOp("alice", "proposal", protocol.WorkerProposalTask),
		proposalOp("alice", "premade", protocol.WorkerProposalPremadeWork),
	} {
		require.NoError(t, db.PushOperation(op))
	}

	list, err := s.GetWorkerProposalsByCreated(ProposalQuery{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].Author)
	assert.Equal(t, "premade", list[0].Permlink)
	assert.Equal(t, "proposal", list[1].Permlink)
	assert.Equal(t, "dave", list[2].Author)
}

func TestTechspecQuery(t *testing.T) {
	db, s := setup(t)

	require.NoError(t, db.PushOperation(proposalOp("alice", "proposal", protocol.WorkerProposalTask)))
	require.NoError(t, db.PushOperation(techspecOp("bob", protocol.NewAsset(1000, protocol.GolosSymbol))))
	require.NoError(t, db.PushOperation(techspecOp("carol", protocol.NewAsset(2000, protocol.GolosSymbol))))
	ts, _ := s.Techspecs.Find("carol", "spec")
	require.NoError(t, db.WithWriteLock(func() error { return s.Approve(ts) }))

	list, err := s.GetWorkerTechspecs(TechspecQuery{WorkerProposalAuthor: "alice", WorkerProposalPermlink: "proposal"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Author)
	assert.False(t, list[0].Approved)
	assert.True(t, list[1].Approved)

	_, err = s.GetWorkerTechspecs(TechspecQuery{WorkerProposalAuthor: "alice", WorkerProposalPermlink: "premade"})
	assert.ErrorIs(t, err, chain.ErrMissingObject)
}

func TestRestore(t *testing.T) {
	db := chain.NewDatabase()
	s := New(db)

	snap := Snapshot{
		Proposals: []Proposal{
			{Author: "alice", Permlink: "proposal", State: StateTechspec, Created: t0},
			{Author: "dave", Permlink: "later", Type: protocol.WorkerProposalPremadeWork, Created: t0},
		},
		Techspecs: []Techspec{
			{Author: "bob", Permlink: "spec", WorkerProposalAuthor: "alice", WorkerProposalPermlink: "proposal"},
		},
		Approved: map[string]string{"alice/proposal": "bob/spec"},
	}
	require.NoError(t, s.Restore(snap))

	var changed []string
	db.AppliedBlock.Connect(func(n chain.BlockNotice) error {
		changed = n.Changed
		return nil
	})
	require.NoError(t, db.ApplyBlock(chain.BlockHeader{Number: 1, Timestamp: t0}, func() error { return nil }))
	assert.NotContains(t, changed, "worker_proposal:alice/proposal")

	p, ok := s.Proposals.Find("alice", "proposal")
	require.True(t, ok)
	assert.Equal(t, StateTechspec, p.State)
	ts, ok := s.ApprovedTechspec(p)
	require.True(t, ok)
	assert.Equal(t, "bob", ts.Author)

	p, ok = s.Proposals.Find("dave", "later")
	require.True(t, ok)
	_, ok = s.ApprovedTechspec(p)
	assert.False(t, ok)

	assert.Error(t, s.Restore(snap), "tables are no longer empty")

	broken := New(chain.NewDatabase())
	assert.Error(t, broken.Restore(Snapshot{
		Proposals: snap.Proposals[:1],
		Approved:  snap.Approved,
	}))
}

func TestParseProposalState(t *testing.T) {
	for s := StateCreated; s <= StateClosed; s++ {
		parsed, err := ParseProposalState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseProposalState("voting")
	assert.Error(t, err)
}
