// Package condenser serves database_api and the condenser_api, tags_api and
// follow_api namespaces that alias it.
package condenser

import (
	"context"

	"github.com/golos/golosmind/internal/api/objects"
	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
)

// read runs fn under the store's read lock.
func read[T any](db *chain.Database, fn func() (T, error)) (interface{}, error) {
	var out T
	var err error
	db.WithReadLock(func() {
		out, err = fn()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// watch adds returned discussions to the change filter of a websocket
// caller.
func watch(ctx context.Context, discussions ...*objects.Discussion) {
	s := rpc.SessionFrom(ctx)
	if s == nil {
		return
	}
	keys := make([]string, 0, len(discussions))
	for _, d := range discussions {
		if d != nil && d.Author != "" {
			keys = append(keys, d.Key())
		}
	}
	s.Watch(keys...)
}
