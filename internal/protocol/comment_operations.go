package protocol

import (
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

const MaxTitleLength = 256

type CommentOperation struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

func (op *CommentOperation) Name() string { return "comment" }

func (op *CommentOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	if err := ValidatePermlink("permlink", op.Permlink); err != nil {
		return err
	}
	if op.ParentAuthor != RootPostParent {
		if err := ValidateAccountName("parent_author", op.ParentAuthor); err != nil {
			return err
		}
	}
	if err := ValidatePermlink("parent_permlink", op.ParentPermlink); err != nil {
		return err
	}
	if op.ParentAuthor == RootPostParent && op.ParentPermlink == "" {
		return NewParamError("parent_permlink", "a post needs a category")
	}
	if len(op.Title) >= MaxTitleLength || !utf8.ValidString(op.Title) {
		return NewParamError("title", "title must be valid UTF-8 shorter than %d bytes", MaxTitleLength)
	}
	if op.Body == "" {
		return NewParamError("body", "body is empty")
	}
	if !utf8.ValidString(op.Body) {
		return NewParamError("body", "body is not valid UTF-8")
	}
	if op.JSONMetadata != "" && !jsoniter.Valid([]byte(op.JSONMetadata)) {
		return NewParamError("json_metadata", "json_metadata is not valid JSON")
	}
	return nil
}

func (op *CommentOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}

// IsRoot reports whether the operation creates a top-level post.
func (op *CommentOperation) IsRoot() bool {
	return op.ParentAuthor == RootPostParent
}

type DeleteCommentOperation struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

func (op *DeleteCommentOperation) Name() string { return "delete_comment" }

func (op *DeleteCommentOperation) Validate() error {
	if err := ValidateAccountName("author", op.Author); err != nil {
		return err
	}
	return ValidatePermlink("permlink", op.Permlink)
}

func (op *DeleteCommentOperation) RequiredPostingAuthorities() []string {
	return []string{op.Author}
}
