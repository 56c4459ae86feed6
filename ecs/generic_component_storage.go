package ecs

import (
	"fmt"
	"iter"

	"github.com/kamstrup/intmap"
)

const defaultStorageCapacity = 64

// ComponentStorage holds at most one component of type T per entity.
// Values are kept densely packed; removal swaps the last element into the
// freed slot, so iteration order is insertion order only until the first removal.
type ComponentStorage[T Component] struct {
	items []T
	ids   []EntityId
	index *intmap.Map[EntityId, int]

	added   []func(T)
	removed []func(EntityId)
}

func newComponentStorage[T Component]() *ComponentStorage[T] {
	return &ComponentStorage[T]{
		items: make([]T, 0, defaultStorageCapacity),
		ids:   make([]EntityId, 0, defaultStorageCapacity),
		index: intmap.New[EntityId, int](defaultStorageCapacity),
	}
}

// OnAdded registers a listener fired the first time a component is stored for an entity.
func (cs *ComponentStorage[T]) OnAdded(fn func(T)) {
	cs.added = append(cs.added, fn)
}

// OnRemoved registers a listener fired after a component was cleaned up and removed.
func (cs *ComponentStorage[T]) OnRemoved(fn func(EntityId)) {
	cs.removed = append(cs.removed, fn)
}

// set inserts or overwrites the component keyed by its entity id.
// Only a first insertion notifies OnAdded listeners.
func (cs *ComponentStorage[T]) set(item T) {
	id := item.Entity()
	if pos, ok := cs.index.Get(id); ok {
		cs.items[pos] = item
		return
	}

	cs.index.Put(id, len(cs.items))
	cs.items = append(cs.items, item)
	cs.ids = append(cs.ids, id)

	for _, fn := range cs.added {
		fn(item)
	}
}

// Get returns the component stored for id.
func (cs *ComponentStorage[T]) Get(id EntityId) (T, bool) {
	pos, ok := cs.index.Get(id)
	if !ok {
		var zero T
		return zero, false
	}
	return cs.items[pos], true
}

// Has reports whether id holds a component in this storage.
func (cs *ComponentStorage[T]) Has(id EntityId) bool {
	return cs.index.Has(id)
}

// Remove cleans up and deletes the component for id, then notifies OnRemoved
// listeners. Returns false if there was nothing to remove.
func (cs *ComponentStorage[T]) Remove(id EntityId) bool {
	pos, ok := cs.index.Get(id)
	if !ok {
		return false
	}
	item := cs.items[pos]

	last := len(cs.items) - 1
	if pos != last {
		cs.items[pos] = cs.items[last]
		cs.ids[pos] = cs.ids[last]
		cs.index.Put(cs.ids[pos], pos)
	}
	var zero T
	cs.items[last] = zero
	cs.items = cs.items[:last]
	cs.ids = cs.ids[:last]
	cs.index.Del(id)

	item.CleanUp()
	for _, fn := range cs.removed {
		fn(id)
	}
	return true
}

// Len returns the number of stored components.
func (cs *ComponentStorage[T]) Len() int {
	return len(cs.items)
}

// All iterates the stored components in dense order.
// The sequence reads the live storage: collect it before adding or removing.
func (cs *ComponentStorage[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < len(cs.items); i++ {
			if !yield(cs.items[i]) {
				return
			}
		}
	}
}

// Entities returns a copy of the ids held by this storage.
func (cs *ComponentStorage[T]) Entities() []EntityId {
	out := make([]EntityId, len(cs.ids))
	copy(out, cs.ids)
	return out
}

func (cs *ComponentStorage[T]) typeName() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
