package indexer

import (
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/golos/golosmind/internal/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation bodies the indexer reads. Fields it does not need are skipped.

type commentOp struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
}

type voteOp struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int16  `json:"weight"`
}

type customJSONOp struct {
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
}

type transferOp struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Amount protocol.Asset `json:"amount"`
	Memo   string         `json:"memo"`
}

type limitOrderCreateOp struct {
	Owner        string         `json:"owner"`
	OrderID      uint32         `json:"orderid"`
	AmountToSell protocol.Asset `json:"amount_to_sell"`
	MinToReceive protocol.Asset `json:"min_to_receive"`
	FillOrKill   bool           `json:"fill_or_kill"`
	Expiration   protocol.Time  `json:"expiration"`
}

type limitOrderCreate2Op struct {
	Owner        string         `json:"owner"`
	OrderID      uint32         `json:"orderid"`
	AmountToSell protocol.Asset `json:"amount_to_sell"`
	ExchangeRate protocol.Price `json:"exchange_rate"`
	FillOrKill   bool           `json:"fill_or_kill"`
	Expiration   protocol.Time  `json:"expiration"`
}

type limitOrderCancelOp struct {
	Owner   string `json:"owner"`
	OrderID uint32 `json:"orderid"`
}

type fillOrderOp struct {
	CurrentOwner   string         `json:"current_owner"`
	CurrentOrderID uint32         `json:"current_orderid"`
	CurrentPays    protocol.Asset `json:"current_pays"`
	OpenOwner      string         `json:"open_owner"`
	OpenOrderID    uint32         `json:"open_orderid"`
	OpenPays       protocol.Asset `json:"open_pays"`
}

// contentRef names the comment a payout or reward operation refers to.
type contentRef struct {
	Author          string `json:"author"`
	Permlink        string `json:"permlink"`
	CommentAuthor   string `json:"comment_author"`
	CommentPermlink string `json:"comment_permlink"`
}

func (r contentRef) key() (string, string) {
	if r.CommentAuthor != "" {
		return r.CommentAuthor, r.CommentPermlink
	}
	return r.Author, r.Permlink
}

// Operations that change a comment or its votes.
var contentOps = map[string]bool{
	"comment":                   true,
	"comment_options":           true,
	"delete_comment":            true,
	"vote":                      true,
	"author_reward":             true,
	"curation_reward":           true,
	"comment_reward":            true,
	"comment_payout_update":     true,
	"comment_benefactor_reward": true,
}

// Body fields that hold account names, as listed by the node's impacted
// accounts visitor.
var accountFields = []string{
	"account", "author", "voter", "from", "to", "creator", "new_account_name",
	"owner", "publisher", "witness", "delegator", "delegatee", "curator",
	"comment_author", "parent_author", "current_owner", "open_owner",
	"from_account", "to_account", "benefactor", "producer", "agent",
	"who", "receiver", "initiator",
}

// impactedAccounts lists the accounts an operation touches, sorted and
// without duplicates.
func impactedAccounts(body jsoniter.RawMessage) []string {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	seen := make(map[string]bool)
	add := func(v interface{}) {
		if name, ok := v.(string); ok && protocol.IsValidAccountName(name) {
			seen[name] = true
		}
	}
	for _, key := range accountFields {
		add(fields[key])
	}
	for _, key := range []string{"required_auths", "required_posting_auths"} {
		if list, ok := fields[key].([]interface{}); ok {
			for _, v := range list {
				add(v)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
