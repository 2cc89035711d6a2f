package chain

import (
	"fmt"
	"strconv"

	"github.com/google/btree"
)

// ID identifies an object within its table. IDs grow monotonically and are
// used as the final tiebreak of every ordered index.
type ID int64

// ObjectBase is embedded by every stored record.
type ObjectBase struct {
	ID ID `json:"id"`
}

func (o ObjectBase) ObjectID() ID { return o.ID }

func (o *ObjectBase) SetObjectID(id ID) { o.ID = id }

type Object interface {
	ObjectID() ID
	SetObjectID(ID)
}

// Row constrains a table's element to a pointer to its record type.
type Row[V any] interface {
	*V
	Object
}

// Change tells table observers what happened to an object.
type Change int

const (
	Created Change = iota
	Modified
	Removed
)

const btreeDegree = 16

// Index is an ordered secondary index over a table.
type Index[V any, P Row[V]] struct {
	name   string
	unique bool
	tree   *btree.BTreeG[P]
}

func (ix *Index[V, P]) Name() string { return ix.name }

func (ix *Index[V, P]) Len() int { return ix.tree.Len() }

// Find returns the object whose key equals pivot. On non-unique indices the
// pivot must carry the object id.
func (ix *Index[V, P]) Find(pivot P) (P, bool) {
	return ix.tree.Get(pivot)
}

// LowerBound returns the first object not ordered before pivot.
func (ix *Index[V, P]) LowerBound(pivot P) (P, bool) {
	var found P
	ok := false
	ix.tree.AscendGreaterOrEqual(pivot, func(item P) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

// AscendFrom walks the index from pivot until fn returns false.
func (ix *Index[V, P]) AscendFrom(pivot P, fn func(P) bool) {
	ix.tree.AscendGreaterOrEqual(pivot, fn)
}

// Ascend walks the whole index in order.
func (ix *Index[V, P]) Ascend(fn func(P) bool) {
	ix.tree.Ascend(fn)
}

// DescendFrom walks the index backwards from the last object not ordered
// after pivot.
func (ix *Index[V, P]) DescendFrom(pivot P, fn func(P) bool) {
	ix.tree.DescendLessOrEqual(pivot, fn)
}

// Descend walks the whole index in reverse order.
func (ix *Index[V, P]) Descend(fn func(P) bool) {
	ix.tree.Descend(fn)
}

// Table stores records of one type and keeps all of its indices in sync.
// Mutations must happen inside a write session of the owning Database.
type Table[V any, P Row[V]] struct {
	name      string
	db        *Database
	nextID    ID
	objects   map[ID]P
	indices   []*Index[V, P]
	keyOf     func(P) string
	observers []func(P, Change) error
}

func NewTable[V any, P Row[V]](db *Database, name string) *Table[V, P] {
	t := &Table[V, P]{
		name:    name,
		db:      db,
		objects: make(map[ID]P),
	}
	t.keyOf = func(obj P) string {
		return name + ":" + strconv.FormatInt(int64(obj.ObjectID()), 10)
	}
	return t
}

func (t *Table[V, P]) Name() string { return t.name }

func (t *Table[V, P]) Len() int { return len(t.objects) }

// AddIndex registers an index whose less function orders objects totally,
// normally by ending with an id comparison.
func (t *Table[V, P]) AddIndex(name string, less func(a, b P) bool) *Index[V, P] {
	ix := &Index[V, P]{name: name, tree: btree.NewG(btreeDegree, less)}
	t.indices = append(t.indices, ix)
	return ix
}

// AddUniqueIndex registers an index whose less function compares keys only.
// Two objects with equal keys are rejected.
func (t *Table[V, P]) AddUniqueIndex(name string, less func(a, b P) bool) *Index[V, P] {
	ix := t.AddIndex(name, less)
	ix.unique = true
	return ix
}

// SetKey sets the change-notification key of the table's objects.
func (t *Table[V, P]) SetKey(fn func(P) string) {
	t.keyOf = fn
}

// Key returns the change-notification key of obj.
func (t *Table[V, P]) Key(obj P) string {
	return t.keyOf(obj)
}

// Observe registers fn to run inside the write session after every change.
// An observer error aborts the session.
func (t *Table[V, P]) Observe(fn func(P, Change) error) {
	t.observers = append(t.observers, fn)
}

func (t *Table[V, P]) Get(id ID) (P, bool) {
	obj, ok := t.objects[id]
	return obj, ok
}

// Create allocates a new object, lets init fill it and indexes it.
func (t *Table[V, P]) Create(init func(P)) (P, error) {
	if err := t.db.requireSession(); err != nil {
		return nil, err
	}

	id := t.nextID + 1
	obj := P(new(V))
	obj.SetObjectID(id)
	init(obj)
	obj.SetObjectID(id)

	if ix := t.conflict(obj); ix != nil {
		return nil, fmt.Errorf("%s: duplicate key in index %s", t.name, ix.name)
	}

	t.nextID = id
	t.insert(obj)
	t.db.recordUndo(func() {
		t.erase(obj)
		t.nextID = id - 1
	})
	t.db.markChanged(t.keyOf(obj))

	if err := t.notify(obj, Created); err != nil {
		return nil, err
	}
	return obj, nil
}

// Modify applies fn to obj and re-indexes it. The object id is preserved.
func (t *Table[V, P]) Modify(obj P, fn func(P)) error {
	if err := t.db.requireSession(); err != nil {
		return err
	}
	if _, ok := t.objects[obj.ObjectID()]; !ok {
		return fmt.Errorf("%s: object %d is not stored", t.name, obj.ObjectID())
	}

	id := obj.ObjectID()
	old := *obj
	t.erase(obj)
	fn(obj)
	obj.SetObjectID(id)

	if ix := t.conflict(obj); ix != nil {
		*obj = old
		t.insert(obj)
		return fmt.Errorf("%s: duplicate key in index %s", t.name, ix.name)
	}
	t.insert(obj)

	t.db.recordUndo(func() {
		t.erase(obj)
		*obj = old
		t.insert(obj)
	})
	t.db.markChanged(t.keyOf(obj))

	return t.notify(obj, Modified)
}

func (t *Table[V, P]) Remove(obj P) error {
	if err := t.db.requireSession(); err != nil {
		return err
	}
	if _, ok := t.objects[obj.ObjectID()]; !ok {
		return fmt.Errorf("%s: object %d is not stored", t.name, obj.ObjectID())
	}

	t.erase(obj)
	t.db.recordUndo(func() {
		t.insert(obj)
	})
	t.db.markChanged(t.keyOf(obj))

	return t.notify(obj, Removed)
}

// All walks every object in id order.
func (t *Table[V, P]) All(fn func(P) bool) {
	for id := ID(1); id <= t.nextID; id++ {
		obj, ok := t.objects[id]
		if !ok {
			continue
		}
		if !fn(obj) {
			return
		}
	}
}

func (t *Table[V, P]) conflict(obj P) *Index[V, P] {
	for _, ix := range t.indices {
		if ix.unique && ix.tree.Has(obj) {
			return ix
		}
	}
	return nil
}

func (t *Table[V, P]) insert(obj P) {
	t.objects[obj.ObjectID()] = obj
	for _, ix := range t.indices {
		ix.tree.ReplaceOrInsert(obj)
	}
}

func (t *Table[V, P]) erase(obj P) {
	delete(t.objects, obj.ObjectID())
	for _, ix := range t.indices {
		ix.tree.Delete(obj)
	}
}

func (t *Table[V, P]) notify(obj P, change Change) error {
	for _, fn := range t.observers {
		if err := fn(obj, change); err != nil {
			return err
		}
	}
	return nil
}

// Singleton holds a single record, such as the global properties.
type Singleton[V any] struct {
	db    *Database
	key   string
	value V
}

func NewSingleton[V any](db *Database, key string, initial V) *Singleton[V] {
	return &Singleton[V]{db: db, key: key, value: initial}
}

// Get returns the stored record. Callers must not mutate it.
func (s *Singleton[V]) Get() *V {
	return &s.value
}

func (s *Singleton[V]) Modify(fn func(*V)) error {
	if err := s.db.requireSession(); err != nil {
		return err
	}
	old := s.value
	fn(&s.value)
	s.db.recordUndo(func() { s.value = old })
	s.db.markChanged(s.key)
	return nil
}
