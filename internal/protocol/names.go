package protocol

import (
	"strings"
	"unicode/utf8"
)

const (
	MinAccountNameLength = 3
	MaxAccountNameLength = 16
	MaxPermlinkLength    = 256

	// RootPostParent is the parent_author of a top-level post.
	RootPostParent = ""
)

// IsValidAccountName applies the chain's account naming rules: dot separated
// labels of at least three characters, each starting with a letter, made of
// lowercase letters, digits and dashes and not ending with a dash.
func IsValidAccountName(name string) bool {
	if len(name) < MinAccountNameLength || len(name) > MaxAccountNameLength {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) < MinAccountNameLength {
			return false
		}
		if label[0] < 'a' || label[0] > 'z' {
			return false
		}
		last := label[len(label)-1]
		if !isLowerAlnum(last) {
			return false
		}
		for i := 1; i < len(label)-1; i++ {
			if !isLowerAlnum(label[i]) && label[i] != '-' {
				return false
			}
		}
	}
	return true
}

// IsValidPermlink reports whether s is usable as a permlink.
func IsValidPermlink(s string) bool {
	if len(s) >= MaxPermlinkLength || !utf8.ValidString(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isLowerAlnum(c) && c != '-' {
			return false
		}
	}
	return true
}

func isLowerAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ValidateAccountName returns a ParamError naming field when name is invalid.
func ValidateAccountName(field, name string) error {
	if !IsValidAccountName(name) {
		return NewParamError(field, "invalid account name %q", name)
	}
	return nil
}

func ValidatePermlink(field, permlink string) error {
	if !IsValidPermlink(permlink) {
		return NewParamError(field, "invalid permlink %q", permlink)
	}
	return nil
}
