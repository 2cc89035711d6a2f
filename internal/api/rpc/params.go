// Package rpc holds what JSON-RPC method handlers share: positional
// parameter access and the per-call context.
package rpc

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"github.com/golos/golosmind/internal/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler serves one JSON-RPC method.
type Handler func(ctx context.Context, params Params) (interface{}, error)

// Params are the positional arguments of a call. Clients are loose about
// types, so numbers may arrive as strings and the other way around.
type Params struct {
	raw  []jsoniter.RawMessage
	args []interface{}
}

// ParseParams accepts an array of arguments, a single object (treated as the
// only argument) or nothing.
func ParseParams(data []byte) (Params, error) {
	var p Params
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &p.raw); err != nil {
			return p, protocol.NewParamError("params", "malformed params: %v", err)
		}
	} else {
		p.raw = []jsoniter.RawMessage{jsoniter.RawMessage(data)}
	}
	p.args = make([]interface{}, len(p.raw))
	for i, r := range p.raw {
		if err := json.Unmarshal(r, &p.args[i]); err != nil {
			return p, protocol.NewParamError("params", "malformed argument %d: %v", i, err)
		}
	}
	return p, nil
}

// NewParams builds params from already decoded values.
func NewParams(args ...interface{}) Params {
	p := Params{args: args, raw: make([]jsoniter.RawMessage, len(args))}
	for i, a := range args {
		p.raw[i], _ = json.Marshal(a)
	}
	return p
}

func (p Params) Len() int { return len(p.args) }

func (p Params) has(i int) bool {
	return i < len(p.args) && p.args[i] != nil
}

// Require fails unless at least n arguments are present.
func (p Params) Require(n int, names ...string) error {
	if len(p.args) >= n {
		return nil
	}
	name := "params"
	if len(p.args) < len(names) {
		name = names[len(p.args)]
	}
	return protocol.NewParamError(name, "expected %d arguments, got %d", n, len(p.args))
}

func (p Params) String(i int, name string) (string, error) {
	if !p.has(i) {
		return "", protocol.NewParamError(name, "is required")
	}
	s, err := cast.ToStringE(p.args[i])
	if err != nil {
		return "", protocol.NewParamError(name, "%v", err)
	}
	return s, nil
}

func (p Params) OptString(i int, name, def string) (string, error) {
	if !p.has(i) {
		return def, nil
	}
	return p.String(i, name)
}

func (p Params) Uint32(i int, name string, def uint32) (uint32, error) {
	if !p.has(i) {
		return def, nil
	}
	if f, ok := p.args[i].(float64); ok && f < 0 {
		return 0, protocol.NewParamError(name, "must not be negative")
	}
	v, err := cast.ToUint32E(p.args[i])
	if err != nil {
		return 0, protocol.NewParamError(name, "%v", err)
	}
	return v, nil
}

func (p Params) Int64(i int, name string, def int64) (int64, error) {
	if !p.has(i) {
		return def, nil
	}
	v, err := cast.ToInt64E(p.args[i])
	if err != nil {
		return 0, protocol.NewParamError(name, "%v", err)
	}
	return v, nil
}

func (p Params) Bool(i int, name string, def bool) (bool, error) {
	if !p.has(i) {
		return def, nil
	}
	v, err := cast.ToBoolE(p.args[i])
	if err != nil {
		return false, protocol.NewParamError(name, "%v", err)
	}
	return v, nil
}

func (p Params) Strings(i int, name string) ([]string, error) {
	if !p.has(i) {
		return nil, protocol.NewParamError(name, "is required")
	}
	v, err := cast.ToStringSliceE(p.args[i])
	if err != nil {
		return nil, protocol.NewParamError(name, "%v", err)
	}
	return v, nil
}

// Time reads a chain timestamp. A missing argument yields the zero time.
func (p Params) Time(i int, name string) (time.Time, error) {
	if !p.has(i) {
		return time.Time{}, nil
	}
	s, err := p.String(i, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := protocol.ParseTime(s)
	if err != nil {
		return time.Time{}, protocol.NewParamError(name, "%v", err)
	}
	return t, nil
}

// Decode unmarshals argument i into dst.
func (p Params) Decode(i int, name string, dst interface{}) error {
	if !p.has(i) {
		return protocol.NewParamError(name, "is required")
	}
	if err := json.Unmarshal(p.raw[i], dst); err != nil {
		return protocol.NewParamError(name, "%v", err)
	}
	return nil
}

// Raw returns argument i undecoded.
func (p Params) Raw(i int) jsoniter.RawMessage {
	if i >= len(p.raw) {
		return nil
	}
	return p.raw[i]
}

// MarshalJSON lets params take part in cache keys.
func (p Params) MarshalJSON() ([]byte, error) {
	if p.raw == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.raw)
}
