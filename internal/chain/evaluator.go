package chain

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/protocol"
)

// Evaluator applies one kind of operation to the store. It runs inside a
// write session and may assume op has been validated.
type Evaluator func(op protocol.Operation) error

// RegisterEvaluator installs the evaluator for the named operation.
func (db *Database) RegisterEvaluator(name string, ev Evaluator) {
	db.handlers[protocol.NormalizeOperationName(name)] = ev
}

// HasEvaluator reports whether an evaluator is installed for name.
func (db *Database) HasEvaluator(name string) bool {
	_, ok := db.handlers[protocol.NormalizeOperationName(name)]
	return ok
}

// ApplyOperation validates op and applies it as a nested session, so a
// failure leaves no partial change behind. The write lock must be held.
func (db *Database) ApplyOperation(op protocol.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	ev, ok := db.handlers[op.Name()]
	if !ok {
		return fmt.Errorf("no evaluator registered for %s", op.Name())
	}
	if err := db.Session(func() error { return ev(op) }); err != nil {
		return errors.Wrapf(err, "%s", op.Name())
	}
	return nil
}

// PushOperation applies a single operation outside of block application.
func (db *Database) PushOperation(op protocol.Operation) error {
	err := db.WithWriteLock(func() error {
		return db.ApplyOperation(op)
	})
	if err != nil {
		db.logger.Debug("operation rejected",
			zap.String("op", op.Name()),
			zap.Error(err))
	}
	return err
}
