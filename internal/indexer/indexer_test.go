package indexer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/golosd"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
	"github.com/golos/golosmind/internal/worker"
	"github.com/golos/golosmind/pkg/config"
)

var blockTime = time.Date(2018, 10, 20, 1, 46, 40, 0, time.UTC)

// fakeNode serves blocks and objects from memory.
type fakeNode struct {
	head     uint32
	ops      map[uint32][]golosd.AppliedOperation
	content  map[string]map[string]interface{}
	votes    map[string][]map[string]interface{}
	accounts map[string]map[string]interface{}
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		ops:      make(map[uint32][]golosd.AppliedOperation),
		content:  make(map[string]map[string]interface{}),
		votes:    make(map[string][]map[string]interface{}),
		accounts: make(map[string]map[string]interface{}),
	}
}

func (n *fakeNode) GetDynamicGlobalProperties(ctx context.Context) (*golosd.DynamicGlobalProperties, error) {
	return &golosd.DynamicGlobalProperties{HeadBlockNumber: n.head}, nil
}

func blockID(num uint32) string { return fmt.Sprintf("%08x", num) }

func (n *fakeNode) block(num uint32) *golosd.Block {
	return &golosd.Block{
		Number:    num,
		BlockID:   blockID(num),
		Previous:  blockID(num - 1),
		Timestamp: protocol.Time{Time: blockTime.Add(time.Duration(num) * 3 * time.Second)},
		Witness:   "cyberfounder",
	}
}

func (n *fakeNode) GetBlocks(ctx context.Context, from, to uint32) ([]*golosd.Block, error) {
	var out []*golosd.Block
	for num := from; num <= to; num++ {
		out = append(out, n.block(num))
	}
	return out, nil
}

func (n *fakeNode) GetOpsInBlocks(ctx context.Context, from, to uint32) ([][]golosd.AppliedOperation, error) {
	var out [][]golosd.AppliedOperation
	for num := from; num <= to; num++ {
		out = append(out, n.ops[num])
	}
	return out, nil
}

func (n *fakeNode) GetContent(ctx context.Context, author, permlink string) (map[string]interface{}, error) {
	return n.content[author+"/"+permlink], nil
}

func (n *fakeNode) GetActiveVotes(ctx context.Context, author, permlink string) ([]map[string]interface{}, error) {
	return n.votes[author+"/"+permlink], nil
}

func (n *fakeNode) GetAccounts(ctx context.Context, names []string) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	for _, name := range names {
		if a, ok := n.accounts[name]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (n *fakeNode) addOp(num uint32, trxID string, op string) {
	n.ops[num] = append(n.ops[num], golosd.AppliedOperation{
		TrxID:     trxID,
		Block:     num,
		OpInTrx:   uint16(len(n.ops[num])),
		Timestamp: protocol.Time{Time: blockTime},
		Op:        []byte(op),
	})
}

type fixture struct {
	node    *fakeNode
	db      *chain.Database
	follows *follow.Store
	tags    *tags.Store
	workers *worker.Store
	sync    *Sync
}

func newFixture(trail int) *fixture {
	f := &fixture{node: newFakeNode(), db: chain.NewDatabase()}
	f.follows = follow.New(f.db)
	f.tags = tags.New(f.db)
	f.workers = worker.New(f.db)
	f.sync = NewSync(&config.IndexerConfig{
		StartBlock:   1,
		TrailBlocks:  trail,
		MaxBatch:     10,
		PollInterval: time.Millisecond,
	}, f.node, f.db, f.follows, f.tags)

	for _, name := range []string{"alice", "bob", "carol"} {
		f.node.accounts[name] = map[string]interface{}{"name": name, "balance": "10.000 GOLOS"}
	}
	f.node.content["alice/post"] = map[string]interface{}{
		"author":          "alice",
		"permlink":        "post",
		"category":        "golos",
		"parent_permlink": "golos",
		"net_rshares":     "1000",
		"created":         "2018-10-20T01:46:40",
		"cashout_time":    "2018-10-27T01:46:40",
	}
	f.node.votes["alice/post"] = []map[string]interface{}{
		{"voter": "bob", "weight": 100, "rshares": "1000", "percent": 10000, "time": "2018-10-20T01:46:43"},
	}
	return f
}

func TestProcessBlock(t *testing.T) {
	f := newFixture(0)
	f.node.head = 1
	f.node.addOp(1, "t1", `["comment",{"parent_author":"","parent_permlink":"golos","author":"alice","permlink":"post","title":"Hello","body":"body","json_metadata":"{}"}]`)
	f.node.addOp(1, "t2", `["vote",{"voter":"bob","author":"alice","permlink":"post","weight":10000}]`)
	f.node.addOp(1, "t3", `["custom_json",{"required_auths":[],"required_posting_auths":["bob"],"id":"follow","json":"[\"follow\",{\"follower\":\"bob\",\"following\":\"alice\",\"what\":[\"blog\"]}]"}]`)
	f.node.addOp(1, "t4", `["transfer",{"from":"bob","to":"null","amount":"1.000 GBG","memo":"@alice/post"}]`)
	f.node.addOp(1, "t5", `["limit_order_create",{"owner":"carol","orderid":7,"amount_to_sell":"5.000 GOLOS","min_to_receive":"1.000 GBG","fill_or_kill":false,"expiration":"2019-01-01T00:00:00"}]`)
	f.node.addOp(1, "t6", `["worker_proposal",{"author":"alice","permlink":"post","type":"task"}]`)

	n, err := f.sync.Step(context.Background())
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 block, got %d", n)
	}
	if got := f.db.HeadBlockNum(); got != 1 {
		t.Errorf("Expected head 1, got %d", got)
	}

	c, ok := f.db.Comments.Find("alice", "post")
	if !ok {
		t.Fatal("Comment was not stored")
	}
	if _, ok := f.db.Votes.ByCommentVoter.Find(&chain.CommentVote{Comment: c.ID, Voter: "bob"}); !ok {
		t.Error("Vote was not stored")
	}
	if _, ok := f.db.Accounts.Find("carol"); !ok {
		t.Error("Account carol was not stored")
	}
	if _, ok := f.follows.ByFollowerFollowing.Find(&follow.Follow{Follower: "bob", Following: "alice"}); !ok {
		t.Error("Follow was not recorded")
	}
	if got := f.tags.PromotedBalance(c.ID); got != 1000 {
		t.Errorf("Expected promoted balance 1000, got %d", got)
	}
	order, ok := f.db.LimitOrders.Find("carol", 7)
	if !ok || order.ForSale != 5000 {
		t.Errorf("Unexpected order: %+v", order)
	}
	if _, ok := f.workers.Proposals.Find("alice", "post"); !ok {
		t.Error("Worker proposal was not created")
	}
	if _, ok := f.db.History.LastSequence("bob"); !ok {
		t.Error("History of bob is empty")
	}
}

func TestProcessBlockFills(t *testing.T) {
	f := newFixture(0)
	f.node.head = 2
	f.node.addOp(1, "t1", `["limit_order_create",{"owner":"carol","orderid":7,"amount_to_sell":"5.000 GOLOS","min_to_receive":"1.000 GBG","expiration":"2019-01-01T00:00:00"}]`)
	f.node.addOp(2, "t2", `["fill_order",{"current_owner":"bob","current_orderid":1,"current_pays":"0.400 GBG","open_owner":"carol","open_orderid":7,"open_pays":"2.000 GOLOS"}]`)
	f.node.addOp(2, "t2", `["limit_order_create",{"owner":"bob","orderid":1,"amount_to_sell":"0.400 GBG","min_to_receive":"2.000 GOLOS","expiration":"2019-01-01T00:00:00"}]`)

	if _, err := f.sync.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	order, ok := f.db.LimitOrders.Find("carol", 7)
	if !ok || order.ForSale != 3000 {
		t.Errorf("Expected 3.000 GOLOS left for sale, got %+v", order)
	}
	if _, ok := f.db.LimitOrders.Find("bob", 1); ok {
		t.Error("Filled order should be removed")
	}
	if f.db.Trades.Len() != 1 {
		t.Errorf("Expected 1 trade, got %d", f.db.Trades.Len())
	}
}

func TestGovernanceHeadSkipsWorkerOps(t *testing.T) {
	f := newFixture(0)
	f.node.head = 1
	f.node.addOp(1, "t1", `["comment",{"parent_author":"","parent_permlink":"golos","author":"alice","permlink":"post"}]`)
	f.node.addOp(1, "t2", `["worker_proposal",{"author":"alice","permlink":"post","type":"task"}]`)
	f.sync.SetGovernanceHead(1)

	if _, err := f.sync.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if _, ok := f.workers.Proposals.Find("alice", "post"); ok {
		t.Error("Worker operation below the governance head was applied")
	}
}

func TestRejectedOperationsDoNotStopSync(t *testing.T) {
	f := newFixture(0)
	f.node.head = 1
	// bob signs a follow for alice and reblogs a missing post
	f.node.addOp(1, "t1", `["custom_json",{"required_posting_auths":["bob"],"id":"follow","json":"{\"follower\":\"alice\",\"following\":\"carol\",\"what\":[\"blog\"]}"}]`)
	f.node.addOp(1, "t2", `["custom_json",{"required_posting_auths":["bob"],"id":"follow","json":"[\"reblog\",{\"account\":\"bob\",\"author\":\"alice\",\"permlink\":\"missing\"}]"}]`)
	f.node.addOp(1, "t3", `["worker_proposal",{"author":"alice","permlink":"missing","type":"task"}]`)

	if _, err := f.sync.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if f.db.HeadBlockNum() != 1 {
		t.Errorf("Expected head 1, got %d", f.db.HeadBlockNum())
	}
	if f.follows.Follows.Len() != 0 {
		t.Error("Follow signed by another account was applied")
	}
}

func TestStepTrailsHead(t *testing.T) {
	tests := []struct {
		name  string
		head  uint32
		trail int
		want  int
	}{
		{"behind trail", 2, 2, 0},
		{"one block", 3, 2, 1},
		{"batch limit", 40, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.trail)
			f.node.head = tt.head
			got, err := f.sync.Step(context.Background())
			if err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Step() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFollowJSON(t *testing.T) {
	tests := []struct {
		raw     string
		cmd     string
		wantErr bool
	}{
		{`["follow",{"follower":"a","following":"b","what":[]}]`, "follow", false},
		{`["reblog",{"account":"a","author":"b","permlink":"p"}]`, "reblog", false},
		{`{"follower":"a","following":"b","what":["blog"]}`, "follow", false},
		{`{"account":"a","author":"b","permlink":"p"}`, "reblog", false},
		{`["follow"]`, "", true},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		cmd, _, err := parseFollowJSON(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFollowJSON(%s) error = %v", tt.raw, err)
			continue
		}
		if cmd != tt.cmd {
			t.Errorf("parseFollowJSON(%s) = %q, want %q", tt.raw, cmd, tt.cmd)
		}
	}
}

func TestParsePromotionMemo(t *testing.T) {
	tests := []struct {
		memo             string
		author, permlink string
		ok               bool
	}{
		{"@alice/post", "alice", "post", true},
		{" @alice/post ", "alice", "post", true},
		{"alice/post", "", "", false},
		{"@alice", "", "", false},
		{"@/post", "", "", false},
	}
	for _, tt := range tests {
		author, permlink, ok := parsePromotionMemo(tt.memo)
		if ok != tt.ok || author != tt.author || permlink != tt.permlink {
			t.Errorf("parsePromotionMemo(%q) = %s, %s, %v", tt.memo, author, permlink, ok)
		}
	}
}

func TestImpactedAccounts(t *testing.T) {
	got := impactedAccounts([]byte(`{"voter":"bob","author":"alice","permlink":"post","required_posting_auths":["carol","bob"]}`))
	want := []string{"alice", "bob", "carol"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("impactedAccounts() = %v, want %v", got, want)
	}
	if got := impactedAccounts([]byte(`{"to":"Not Valid"}`)); len(got) != 0 {
		t.Errorf("Expected no accounts, got %v", got)
	}
}
