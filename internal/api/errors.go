package api

import (
	"errors"
	"fmt"

	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/protocol"
)

// Standard JSON-RPC error codes, plus the two the node uses for chain
// preconditions and lookups.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
	ErrLogic          = -32000
	ErrMissingObject  = -32001
)

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// toError maps a handler error onto its wire form.
func toError(err error) *Error {
	var apiErr *Error
	var paramErr *protocol.ParamError
	var logicErr *chain.LogicError
	var missingErr *chain.MissingObjectError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &paramErr):
		return &Error{
			Code:    ErrInvalidParams,
			Message: err.Error(),
			Data:    map[string]string{"param": paramErr.Param},
		}
	case errors.As(err, &logicErr):
		return &Error{
			Code:    ErrLogic,
			Message: err.Error(),
			Data:    map[string]string{"code": logicErr.Code},
		}
	case errors.As(err, &missingErr):
		return &Error{
			Code:    ErrMissingObject,
			Message: err.Error(),
			Data:    map[string]interface{}{"type": missingErr.Type, "key": missingErr.Key},
		}
	default:
		return &Error{Code: ErrInternalError, Message: "Internal error", Data: err.Error()}
	}
}
