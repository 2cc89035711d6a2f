package protocol

import "fmt"

// ParamError is a malformed request input. It is raised before any state is
// read or written.
type ParamError struct {
	Param  string
	Reason string
}

func NewParamError(param, format string, args ...interface{}) *ParamError {
	return &ParamError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ParamError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}
