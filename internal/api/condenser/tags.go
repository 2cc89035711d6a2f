package condenser

import (
	"context"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/discussions"
	"github.com/golos/golosmind/internal/protocol"
)

const maxTagsLimit = 1000

// TagsAPI provides tag-related API methods
type TagsAPI struct {
	db     *chain.Database
	engine *discussions.Engine
}

func NewTagsAPI(db *chain.Database, engine *discussions.Engine) *TagsAPI {
	return &TagsAPI{db: db, engine: engine}
}

// GetTrendingTags handles get_trending_tags(after, limit)
func (t *TagsAPI) GetTrendingTags(ctx context.Context, p rpc.Params) (interface{}, error) {
	after, err := p.OptString(0, "after", "")
	if err != nil {
		return nil, err
	}
	limit, err := p.Uint32(1, "limit", 100)
	if err != nil {
		return nil, err
	}
	if limit > maxTagsLimit {
		return nil, protocol.NewParamError("limit", "must not exceed %d", maxTagsLimit)
	}
	return read(t.db, func() ([]objects.Tag, error) {
		return t.engine.GetTrendingTags(after, limit), nil
	})
}

// GetTagsUsedByAuthor handles get_tags_used_by_author(author)
func (t *TagsAPI) GetTagsUsedByAuthor(ctx context.Context, p rpc.Params) (interface{}, error) {
	author, err := p.String(0, "author")
	if err != nil {
		return nil, err
	}
	return read(t.db, func() ([]objects.NameCount, error) {
		return t.engine.GetTagsUsedByAuthor(author)
	})
}
