package discussions

import (
	"slices"

	"github.com/golos/golosmind/internal/protocol"
	"github.com/golos/golosmind/internal/tags"
)

// MaxLimit bounds every discussion listing.
const MaxLimit = 100

// Query selects and pages a discussion listing.
type Query struct {
	SelectTags     []string `json:"select_tags"`
	FilterTags     []string `json:"filter_tags"`
	SelectAuthors  []string `json:"select_authors"`
	TruncateBody   uint32   `json:"truncate_body"`
	StartAuthor    string   `json:"start_author"`
	StartPermlink  string   `json:"start_permlink"`
	ParentAuthor   string   `json:"parent_author"`
	ParentPermlink string   `json:"parent_permlink"`
	Limit          uint32   `json:"limit"`
}

// Validate checks the query before any lookup happens.
func (q *Query) Validate() error {
	if q.Limit > MaxLimit {
		return protocol.NewParamError("limit", "must not exceed %d", MaxLimit)
	}
	if q.StartPermlink != "" && q.StartAuthor == "" {
		return protocol.NewParamError("start_author", "required when start_permlink is set")
	}
	if q.StartAuthor != "" {
		if err := protocol.ValidateAccountName("start_author", q.StartAuthor); err != nil {
			return err
		}
	}
	if q.StartPermlink != "" {
		if err := protocol.ValidatePermlink("start_permlink", q.StartPermlink); err != nil {
			return err
		}
	}
	if (q.ParentAuthor == "") != (q.ParentPermlink == "") {
		return protocol.NewParamError("parent_permlink", "parent_author and parent_permlink must be set together")
	}
	for _, tag := range q.FilterTags {
		if slices.Contains(q.SelectTags, tag) {
			return protocol.NewParamError("filter_tags", "tag %q is both selected and filtered", tag)
		}
	}
	return nil
}

// HasStart reports whether the query resumes from a given comment.
func (q *Query) HasStart() bool {
	return q.StartAuthor != "" && q.StartPermlink != ""
}

// HasParent reports whether the query is scoped to replies of one comment.
func (q *Query) HasParent() bool {
	return q.ParentAuthor != "" && q.ParentPermlink != ""
}

// Tags returns the normalized selected tags without duplicates, or the
// universal tag when none is selected.
func (q *Query) Tags() []string {
	if len(q.SelectTags) == 0 {
		return []string{""}
	}
	out := make([]string, 0, len(q.SelectTags))
	for _, tag := range q.SelectTags {
		tag = tags.Normalize(tag)
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

func (q *Query) selectsAuthor(author string) bool {
	return len(q.SelectAuthors) == 0 || slices.Contains(q.SelectAuthors, author)
}

func (q *Query) filtersTag(tag string) bool {
	return slices.ContainsFunc(q.FilterTags, func(f string) bool {
		return tags.Normalize(f) == tag
	})
}
