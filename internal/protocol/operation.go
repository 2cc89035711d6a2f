package protocol

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation is a state transition that can be validated without touching
// chain state.
type Operation interface {
	Name() string
	Validate() error
	RequiredPostingAuthorities() []string
}

var operationFactories = map[string]func() Operation{
	"comment":                func() Operation { return &CommentOperation{} },
	"delete_comment":         func() Operation { return &DeleteCommentOperation{} },
	"worker_proposal":        func() Operation { return &WorkerProposalOperation{} },
	"worker_proposal_delete": func() Operation { return &WorkerProposalDeleteOperation{} },
	"worker_techspec":        func() Operation { return &WorkerTechspecOperation{} },
	"worker_techspec_delete": func() Operation { return &WorkerTechspecDeleteOperation{} },
}

// NormalizeOperationName strips the "_operation" suffix used by some APIs.
func NormalizeOperationName(name string) string {
	return strings.TrimSuffix(name, "_operation")
}

// IsKnownOperation reports whether DecodeOperation understands name.
func IsKnownOperation(name string) bool {
	_, ok := operationFactories[NormalizeOperationName(name)]
	return ok
}

// IsWorkerOperation reports whether name is one of the governance
// operations.
func IsWorkerOperation(name string) bool {
	return strings.HasPrefix(NormalizeOperationName(name), "worker_") && IsKnownOperation(name)
}

// DecodeOperation decodes a tagged operation. Both the array form
// ["name", {...}] and the object form {"type": "name", "value": {...}} are
// accepted.
func DecodeOperation(data []byte) (Operation, error) {
	name, body, err := SplitOperation(data)
	if err != nil {
		return nil, err
	}
	return DecodeOperationBody(name, body)
}

// DecodeOperationBody decodes body as the operation called name.
func DecodeOperationBody(name string, body []byte) (Operation, error) {
	factory, ok := operationFactories[NormalizeOperationName(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported operation %q", name)
	}
	op := factory()
	if err := json.Unmarshal(body, op); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return op, nil
}

// SplitOperation separates the operation name from its body.
func SplitOperation(data []byte) (string, jsoniter.RawMessage, error) {
	var pair []jsoniter.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return "", nil, fmt.Errorf("operation must be a [name, body] pair")
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return "", nil, fmt.Errorf("operation name: %w", err)
		}
		return NormalizeOperationName(name), pair[1], nil
	}

	var obj struct {
		Type  string              `json:"type"`
		Value jsoniter.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("operation: %w", err)
	}
	if obj.Type == "" {
		return "", nil, fmt.Errorf("operation type is missing")
	}
	return NormalizeOperationName(obj.Type), obj.Value, nil
}
