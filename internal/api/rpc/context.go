package rpc

import (
	"context"

	"github.com/golos/golosmind/internal/session"
)

type sessionKey struct{}

// WithSession attaches the websocket session serving a call.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the calling websocket session, or nil over HTTP.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}
