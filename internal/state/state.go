package state

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/follow"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	stateTrendingTags = 50
	tagsPageLimit     = 250
	stateWitnesses    = 50
	stateListLimit    = 20
	stateTruncateBody = 1024
	stateReplies      = 50
	stateHistory      = 1000
)

// Service assembles composite page views and the account and witness
// lookups they share. Like the engines it wraps, it reads without locking.
type Service struct {
	db          *chain.Database
	follow      *follow.Store
	discussions *discussions.Engine
	market      *market.Market
	logger      *zap.Logger
}

// New creates the service. followStore may be nil.
func New(db *chain.Database, followStore *follow.Store, engine *discussions.Engine, m *market.Market) *Service {
	return &Service{
		db:          db,
		follow:      followStore,
		discussions: engine,
		market:      m,
		logger:      logging.GetLogger().With(zap.String("component", "state")),
	}
}

// rankingRoute maps a page name onto a listing and the index bucket it fills.
type rankingRoute struct {
	ranking discussions.Ranking
	bucket  func(*objects.DiscussionIndex) *[]string
}

var rankingRoutes = map[string]rankingRoute{
	"trending":        {discussions.Trending, func(i *objects.DiscussionIndex) *[]string { return &i.Trending }},
	"payout_comments": {discussions.CommentPayout, func(i *objects.DiscussionIndex) *[]string { return &i.PayoutComments }},
	"payout":          {discussions.PostPayout, func(i *objects.DiscussionIndex) *[]string { return &i.Payout }},
	"promoted":        {discussions.Promoted, func(i *objects.DiscussionIndex) *[]string { return &i.Promoted }},
	"responses":       {discussions.Children, func(i *objects.DiscussionIndex) *[]string { return &i.Responses }},
	"hot":             {discussions.Hot, func(i *objects.DiscussionIndex) *[]string { return &i.Hot }},
	"votes":           {discussions.Votes, func(i *objects.DiscussionIndex) *[]string { return &i.Votes }},
	"cashout":         {discussions.Cashout, func(i *objects.DiscussionIndex) *[]string { return &i.Cashout }},
	"active":          {discussions.Active, func(i *objects.DiscussionIndex) *[]string { return &i.Active }},
	"created":         {discussions.Created, func(i *objects.DiscussionIndex) *[]string { return &i.Created }},
	"recent":          {discussions.Created, func(i *objects.DiscussionIndex) *[]string { return &i.Created }},
}

// transferOps are the history operations listed on the transfers page.
var transferOps = map[string]bool{
	"transfer_to_vesting":          true,
	"withdraw_vesting":             true,
	"interest":                     true,
	"transfer":                     true,
	"liquidity_reward":             true,
	"author_reward":                true,
	"curation_reward":              true,
	"comment_benefactor_reward":    true,
	"transfer_to_savings":          true,
	"transfer_from_savings":        true,
	"cancel_transfer_from_savings": true,
	"escrow_transfer":              true,
	"escrow_approve":               true,
	"escrow_dispute":               true,
	"escrow_release":               true,
	"fill_convert_request":         true,
	"fill_order":                   true,
}

// hiddenOps never appear on the transfers page.
var hiddenOps = map[string]bool{
	"comment":               true,
	"limit_order_create":    true,
	"limit_order_cancel":    true,
	"vote":                  true,
	"account_witness_vote":  true,
	"account_witness_proxy": true,
}

// builder carries one get_state call.
type builder struct {
	*Service
	state    *objects.State
	accounts map[string]struct{}
}

func (b *builder) reference(author string) {
	if author != "" {
		b.accounts[author] = struct{}{}
	}
}

// GetState returns the page view for path. Failures are reported in the
// error field of the result rather than returned.
func (s *Service) GetState(path string) *objects.State {
	st := objects.NewState(path)
	st.Props = objects.NewDynamicGlobalProperties(s.db.Props.Get())
	st.FeedPrice = s.db.FeedHistory.Get().CurrentMedianHistory

	b := &builder{Service: s, state: st, accounts: map[string]struct{}{}}
	if err := b.build(path); err != nil {
		s.logger.Debug("get_state failed", zap.String("path", path), zap.Error(err))
		st.Error = err.Error()
	}
	return st
}

func (b *builder) build(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building state for %q: %v", path, r)
		}
	}()

	path = strings.TrimPrefix(path, "/")
	if path == "" {
		path = "trending"
	}

	for _, t := range b.discussions.GetTrendingTags("", stateTrendingTags) {
		b.state.TagIdx.Trending = append(b.state.TagIdx.Trending, t.Name)
	}

	part := strings.Split(path, "/")
	for len(part) < 4 {
		part = append(part, "")
	}
	tag := strings.ToLower(part[1])

	switch {
	case strings.HasPrefix(part[0], "@"):
		err = b.account(strings.TrimPrefix(part[0], "@"), part[1])
	case strings.HasPrefix(part[1], "@"):
		b.discussion(strings.TrimPrefix(part[1], "@"), part[2])
	case part[0] == "witnesses" || part[0] == "~witnesses":
		err = b.witnesses()
	case part[0] == "tags":
		b.tags()
	case part[0] == "market":
		b.state.MarketData, err = b.market.GetMarketData(protocol.GolosSymbol.Name, protocol.GBGSymbol.Name)
	default:
		if route, ok := rankingRoutes[part[0]]; ok {
			err = b.ranking(route, tag)
		} else {
			b.logger.Warn("no route matches", zap.String("path", path))
			b.state.Error = "no route matches " + path
		}
	}
	if err != nil {
		return err
	}

	b.resolveAccounts()
	for _, d := range b.state.Content {
		if votes, err := b.discussions.GetActiveVotes(d.Author, d.Permlink); err == nil {
			d.ActiveVotes = votes
		}
	}
	b.state.WitnessSchedule = objects.NewWitnessSchedule(b.db.Schedule.Get())
	return nil
}

func (b *builder) ranking(route rankingRoute, tag string) error {
	q := discussions.Query{
		SelectTags:   []string{tag},
		Limit:        stateListLimit,
		TruncateBody: stateTruncateBody,
	}
	found, err := b.discussions.Discussions(route.ranking, q)
	if err != nil {
		return err
	}
	bucket := route.bucket(b.state.DiscussionIndexFor(tag))
	for _, d := range found {
		key := d.Key()
		*bucket = append(*bucket, key)
		b.reference(d.Author)
		b.state.Content[key] = d
	}
	return nil
}

// discussion loads a post and its whole reply tree. Each node lists its
// direct replies in reply order.
func (b *builder) discussion(author, permlink string) {
	root := b.discussions.GetContent(author, permlink)
	b.state.Content[author+"/"+permlink] = root
	if root.Author == "" {
		return
	}

	stack := []*objects.Discussion{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b.reference(node.Author)

		for _, r := range b.discussions.GetContentReplies(node.Author, node.Permlink) {
			key := r.Key()
			node.Replies = append(node.Replies, key)
			b.state.Content[key] = r
			stack = append(stack, r)
		}
	}
}

func (b *builder) witnesses() error {
	wits, err := b.GetWitnessesByVote("", stateWitnesses)
	if err != nil {
		return err
	}
	for _, w := range wits {
		b.state.Witnesses[w.Owner] = w
	}
	b.state.PowQueue = b.GetMinerQueue()
	return nil
}

func (b *builder) tags() {
	b.state.TagIdx.Trending = []string{}
	for _, t := range b.discussions.GetTrendingTags("", tagsPageLimit) {
		b.state.TagIdx.Trending = append(b.state.TagIdx.Trending, t.Name)
		b.state.Tags[t.Name] = t
	}
}

func (b *builder) account(name, page string) error {
	a, ok := b.db.Accounts.Find(name)
	if !ok {
		return chain.NewMissingObject("account", "name", name)
	}
	ext := b.extendedAccount(a)
	b.state.Accounts[name] = ext

	usage, err := b.discussions.GetTagsUsedByAuthor(name)
	if err != nil {
		return err
	}
	ext.TagsUsage = usage
	if b.follow != nil {
		for _, g := range b.follow.GetBlogAuthors(name) {
			ext.GuestBloggers = append(ext.GuestBloggers, objects.NameCount{Name: g.Guest, Count: g.Count})
		}
	}

	switch page {
	case "transfers":
		return b.transfers(ext)
	case "recent-replies":
		return b.recentReplies(ext)
	case "posts", "comments":
		return b.comments(ext)
	case "", "blog":
		return b.blog(ext)
	case "feed":
		return b.feed(ext)
	}
	return nil
}

func (b *builder) transfers(ext *objects.ExtendedAccount) error {
	history, err := b.GetAccountHistory(ext.Name, -1, stateHistory)
	if err != nil {
		return err
	}
	for _, item := range history {
		name, _ := item.Operation.Op[0].(string)
		switch {
		case transferOps[name]:
			ext.TransferHistory[item.Sequence] = item.Operation
		case hiddenOps[name]:
		default:
			ext.OtherHistory[item.Sequence] = item.Operation
		}
	}
	return nil
}

func (b *builder) recentReplies(ext *objects.ExtendedAccount) error {
	replies, err := b.discussions.GetRepliesByLastUpdate(ext.Name, "", stateReplies)
	if err != nil {
		return err
	}
	ext.RecentReplies = objects.NewStringList()
	for _, r := range replies {
		key := r.Key()
		b.state.Content[key] = r
		b.reference(r.Author)
		*ext.RecentReplies = append(*ext.RecentReplies, key)
	}
	return nil
}

func (b *builder) comments(ext *objects.ExtendedAccount) error {
	found, err := b.discussions.GetDiscussionsByComments(discussions.Query{StartAuthor: ext.Name, Limit: stateListLimit})
	if err != nil {
		return err
	}
	ext.Comments = objects.NewStringList()
	for _, d := range found {
		key := d.Key()
		b.state.Content[key] = d
		*ext.Comments = append(*ext.Comments, key)
	}
	return nil
}

func (b *builder) blog(ext *objects.ExtendedAccount) error {
	if b.follow == nil {
		return nil
	}
	ext.Blog = objects.NewStringList()
	for _, e := range b.follow.GetBlogEntries(ext.Name, 0, stateListLimit) {
		d, err := b.discussions.GetDiscussion(e.Comment, 0)
		if err != nil {
			return err
		}
		if !e.RebloggedOn.IsZero() {
			on := protocol.NewTime(e.RebloggedOn)
			d.FirstRebloggedOn = &on
		}
		key := d.Key()
		b.state.Content[key] = d
		*ext.Blog = append(*ext.Blog, key)
	}
	return nil
}

func (b *builder) feed(ext *objects.ExtendedAccount) error {
	if b.follow == nil {
		return nil
	}
	ext.Feed = objects.NewStringList()
	for _, e := range b.follow.GetFeedEntries(ext.Name, 0, stateListLimit) {
		d, err := b.discussions.GetDiscussion(e.Comment, 0)
		if err != nil {
			return err
		}
		if len(e.RebloggedBy) > 0 {
			d.FirstRebloggedBy = e.RebloggedBy[0]
			d.RebloggedBy = append([]string{}, e.RebloggedBy...)
			on := protocol.NewTime(e.FirstRebloggedOn)
			d.FirstRebloggedOn = &on
		}
		key := d.Key()
		b.state.Content[key] = d
		*ext.Feed = append(*ext.Feed, key)
	}
	return nil
}

// resolveAccounts adds every referenced author that is not already present.
func (b *builder) resolveAccounts() {
	delete(b.state.Accounts, "")
	for name := range b.accounts {
		if _, ok := b.state.Accounts[name]; ok {
			continue
		}
		a, ok := b.db.Accounts.Find(name)
		if !ok {
			b.logger.Debug("referenced account not found", zap.String("account", name))
			continue
		}
		b.state.Accounts[name] = b.extendedAccount(a)
	}
}
