package tags

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

func TestCommentTags(t *testing.T) {
	tests := []struct {
		name       string
		category   string
		meta       string
		netRshares int64
		want       []string
		wantErr    bool
	}{
		{"category only", "Golos", "", 0, []string{"golos", ""}, false},
		{"metadata tags", "golos", `{"tags":["Art","life","golos"]}`, 10, []string{"golos", "art", "life", ""}, false},
		{"limit", "a1", `{"tags":["b2","c3","d4","e5","f6","g7"]}`, 0, []string{"a1", "b2", "c3", "d4", "e5", ""}, false},
		{"category counts toward limit", "golos", `{"tags":["a","b","c","d","e"]}`, 0, []string{"golos", "a", "b", "c", "d", ""}, false},
		{"negative spam", "spam", `{"tags":["x"]}`, -1, []string{"spam", "x"}, false},
		{"negative regular", "art", "", -1, []string{"art", ""}, false},
		{"malformed", "art", `{"tags":`, 0, []string{"art", ""}, true},
		{"non string tags", "art", `{"tags":[1,"Фото"]}`, 0, []string{"art", "фото", ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommentTags(tt.category, tt.meta, tt.netRshares)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateScore(t *testing.T) {
	created := time.Unix(1500000000, 0)

	assert.InDelta(t, 1500000000.0/480000, CalculateScore(0, created, trendingTimescale), 1e-9)
	assert.InDelta(t, 2+1500000000.0/10000, CalculateScore(1000000000, created, hotTimescale), 1e-9)
	assert.InDelta(t, -2+1500000000.0/10000, CalculateScore(-1000000000, created, hotTimescale), 1e-9)

	older := CalculateScore(1000000000, created.Add(-time.Hour), trendingTimescale)
	assert.Less(t, older, CalculateScore(1000000000, created, trendingTimescale))
}

func newStore(t *testing.T) (*chain.Database, *Store) {
	t.Helper()
	db := chain.NewDatabase()
	return db, New(db)
}

func storeComment(t *testing.T, db *chain.Database, c chain.Comment) *chain.Comment {
	t.Helper()
	var stored *chain.Comment
	require.NoError(t, db.WithWriteLock(func() error {
		var err error
		stored, err = db.StoreComment(c)
		return err
	}))
	return stored
}

func TestStoreTracksComments(t *testing.T) {
	db, s := newStore(t)
	created := time.Unix(1500000000, 0).UTC()

	post := storeComment(t, db, chain.Comment{
		Author: "alice", Permlink: "p1", Category: "art",
		JSONMetadata: `{"tags":["life"]}`,
		Created:      created, CashoutTime: created.Add(7 * 24 * time.Hour),
		NetRshares: 100, ChildrenRshares2: *uint256.NewInt(500),
	})

	records := s.ForComment(post.ID)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"", "art", "life"}, []string{records[0].Name, records[1].Name, records[2].Name})
	for _, r := range records {
		assert.True(t, r.IsPost)
		assert.Equal(t, chain.ID(0), r.Parent)
	}

	reply := storeComment(t, db, chain.Comment{
		Author: "bob", Permlink: "r1", ParentAuthor: "alice", ParentPermlink: "p1", Category: "art",
		Created: created, CashoutTime: created.Add(7 * 24 * time.Hour),
	})
	rec, ok := s.Find(reply.ID, "art")
	require.True(t, ok)
	assert.Equal(t, post.ID, rec.Parent)
	assert.False(t, rec.IsPost)

	stats, ok := s.FindStats("art")
	require.True(t, ok)
	assert.Equal(t, uint32(1), stats.TopPosts)
	assert.Equal(t, uint32(1), stats.Comments)
	assert.Equal(t, uint256.NewInt(500), &stats.TotalChildrenRshares2)

	used := s.UsedByAuthor("alice")
	require.Len(t, used, 3)
	assert.Equal(t, uint32(1), used[0].TotalPosts)

	// retagging drops "life" and its author counter
	storeComment(t, db, chain.Comment{
		Author: "alice", Permlink: "p1", Category: "art",
		Created: created, CashoutTime: created.Add(7 * 24 * time.Hour),
		NetRshares: 100, ChildrenRshares2: *uint256.NewInt(700),
	})
	_, ok = s.Find(post.ID, "life")
	assert.False(t, ok)
	assert.Len(t, s.UsedByAuthor("alice"), 2)
	stats, _ = s.FindStats("art")
	assert.Equal(t, uint32(1), stats.TopPosts)
	assert.Equal(t, uint256.NewInt(700), &stats.TotalChildrenRshares2)

	// paid out comments leave the index
	storeComment(t, db, chain.Comment{
		Author: "alice", Permlink: "p1", Category: "art",
		Created: created, CashoutTime: protocol.MaxTime,
	})
	assert.Empty(t, s.ForComment(post.ID))
	stats, _ = s.FindStats("art")
	assert.Equal(t, uint32(0), stats.TopPosts)
}

func TestPromoteKeepsBalanceAcrossRetags(t *testing.T) {
	db, s := newStore(t)
	created := time.Unix(1500000000, 0).UTC()
	post := storeComment(t, db, chain.Comment{Author: "alice", Permlink: "p1", Category: "art", Created: created})

	require.NoError(t, db.WithWriteLock(func() error {
		return s.Promote("alice", "p1", protocol.MustParseAsset("2.500 GBG"))
	}))
	require.NoError(t, db.WithWriteLock(func() error {
		return s.Promote("alice", "p1", protocol.MustParseAsset("9.000 GOLOS"))
	}))
	assert.Equal(t, int64(2500), s.PromotedBalance(post.ID))

	storeComment(t, db, chain.Comment{
		Author: "alice", Permlink: "p1", Category: "art", JSONMetadata: `{"tags":["new"]}`, Created: created,
	})
	rec, ok := s.Find(post.ID, "new")
	require.True(t, ok)
	assert.Equal(t, int64(2500), rec.PromotedBalance)

	err := db.WithWriteLock(func() error {
		return s.Promote("alice", "missing", protocol.MustParseAsset("1.000 GBG"))
	})
	assert.ErrorIs(t, err, chain.ErrMissingObject)
}

func TestTrendingTags(t *testing.T) {
	db, s := newStore(t)
	created := time.Unix(1500000000, 0).UTC()
	for i, c := range []struct {
		category string
		r2       uint64
	}{{"art", 100}, {"bitcoin", 300}, {"cats", 200}} {
		storeComment(t, db, chain.Comment{
			Author: "alice", Permlink: c.category, Category: c.category, Created: created.Add(time.Duration(i) * time.Second),
			ChildrenRshares2: *uint256.NewInt(c.r2),
		})
	}

	names := func(stats []*Stats) []string {
		var out []string
		for _, st := range stats {
			out = append(out, st.Name)
		}
		return out
	}

	assert.Equal(t, []string{"", "bitcoin", "cats", "art"}, names(s.TrendingTags("", 10)))
	assert.Equal(t, []string{"", "bitcoin"}, names(s.TrendingTags("", 2)))
	assert.Equal(t, []string{"cats", "art"}, names(s.TrendingTags("c", 10)))
	assert.Empty(t, s.TrendingTags("zzz", 10))
}
