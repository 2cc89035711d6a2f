package tags

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxTagsPerComment bounds how many tags a comment is filed under, besides
// the universal tag.
const MaxTagsPerComment = 5

// Metadata is the part of a comment's json_metadata this package reads.
type Metadata struct {
	Tags []string
}

// ParseMetadata extracts the tag list from raw json_metadata. Non-string
// entries are dropped; malformed documents yield an error.
func ParseMetadata(raw string) (Metadata, error) {
	var meta Metadata
	if strings.TrimSpace(raw) == "" {
		return meta, nil
	}

	var doc struct {
		Tags []interface{} `json:"tags"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &doc); err != nil {
		return meta, err
	}
	for _, t := range doc.Tags {
		if s, ok := t.(string); ok {
			meta.Tags = append(meta.Tags, s)
		}
	}
	return meta, nil
}

// Normalize returns the canonical form tags are stored and queried by.
func Normalize(tag string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(tag)))
}

// CommentTags returns the normalized tag set of a comment: at most
// MaxTagsPerComment tags counting the category, which comes first, followed by
// metadata tags. The universal tag "" is added unless
// the comment has negative payout and is marked spam, nsfw or test.
func CommentTags(category, jsonMetadata string, netRshares int64) ([]string, error) {
	meta, err := ParseMetadata(jsonMetadata)

	seen := make(map[string]bool)
	var out []string
	add := func(tag string) {
		tag = Normalize(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	add(category)
	for _, t := range meta.Tags {
		if len(out) >= MaxTagsPerComment {
			break
		}
		add(t)
	}

	if netRshares >= 0 || (!seen["spam"] && !seen["nsfw"] && !seen["test"]) {
		out = append(out, "")
	}
	return out, err
}
