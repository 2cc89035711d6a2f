package chain

import (
	"fmt"
	"sort"
	"strings"
)

// LogicError is a named precondition failure. Code is stable and meant for
// clients to branch on.
type LogicError struct {
	Code    string
	Message string
}

func NewLogicError(code, message string) *LogicError {
	return &LogicError{Code: code, Message: message}
}

func (e *LogicError) Error() string {
	return e.Message
}

// Is matches another LogicError with the same code.
func (e *LogicError) Is(target error) bool {
	t, ok := target.(*LogicError)
	return ok && t.Code == e.Code
}

// MissingObjectError reports a lookup that found nothing.
type MissingObjectError struct {
	Type string
	Key  map[string]string
}

func NewMissingObject(typ string, kv ...string) *MissingObjectError {
	key := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key[kv[i]] = kv[i+1]
	}
	return &MissingObjectError{Type: typ, Key: key}
}

func (e *MissingObjectError) Error() string {
	if len(e.Key) == 0 {
		return fmt.Sprintf("missing object %s", e.Type)
	}
	names := make([]string, 0, len(e.Key))
	for k := range e.Key {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + e.Key[k]
	}
	return fmt.Sprintf("missing object %s {%s}", e.Type, strings.Join(parts, ", "))
}

// Is lets errors.Is match any missing object against ErrMissingObject.
func (e *MissingObjectError) Is(target error) bool {
	t, ok := target.(*MissingObjectError)
	if !ok {
		return false
	}
	return t.Type == "" || t.Type == e.Type
}

var ErrMissingObject = &MissingObjectError{}
