package ecs

import (
	"fmt"
	"iter"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// storageKey addresses the storage cell of one component type.
// Distinct instantiations are distinct dynamic types, so the zero value of
// storageKey[T] is a unique map key per T.
type storageKey[T any] struct{}

// EntityRegistry owns every component storage and the set of live entities.
// It is the single point of entity creation, destruction and typed component access.
// A registry is not safe for concurrent use; one simulation drives one registry.
type EntityRegistry struct {
	nextId   EntityId
	live     *intmap.Map[EntityId, struct{}]
	storages map[any]iComponentStorage
	ordered  []iComponentStorage
	logger   *zap.Logger
}

// Option configures an EntityRegistry.
type Option func(*EntityRegistry)

// WithLogger sets the logger used for soft-failure diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *EntityRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewEntityRegistry creates an empty registry.
func NewEntityRegistry(opts ...Option) *EntityRegistry {
	r := &EntityRegistry{
		nextId:   1,
		live:     intmap.New[EntityId, struct{}](256),
		storages: make(map[any]iComponentStorage),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the registry's logger.
func (r *EntityRegistry) Logger() *zap.Logger {
	return r.logger
}

// CreateEntity issues the next unused id and marks it live.
func (r *EntityRegistry) CreateEntity() EntityId {
	id := r.nextId
	r.nextId++
	r.live.Put(id, struct{}{})
	return id
}

// DestroyEntity removes the entity from every storage, running each
// component's CleanUp, then retires the id. Destroying an id that is not
// live does nothing.
func (r *EntityRegistry) DestroyEntity(id EntityId) {
	if !r.live.Has(id) {
		return
	}
	for _, storage := range r.ordered {
		storage.Remove(id)
	}
	r.live.Del(id)
}

// IsAlive reports whether id was created and not yet destroyed.
func (r *EntityRegistry) IsAlive(id EntityId) bool {
	return r.live.Has(id)
}

// EntityCount returns the number of live entities.
func (r *EntityRegistry) EntityCount() int {
	return r.live.Len()
}

// StorageCount returns the number of component storages created so far.
func (r *EntityRegistry) StorageCount() int {
	return len(r.ordered)
}

// StorageOf returns the storage for T, creating it on first access.
// Observers use it to subscribe to add and remove notifications.
func StorageOf[T Component](r *EntityRegistry) *ComponentStorage[T] {
	key := storageKey[T]{}
	if storage, ok := r.storages[key]; ok {
		return storage.(*ComponentStorage[T])
	}
	storage := newComponentStorage[T]()
	r.storages[key] = storage
	r.ordered = append(r.ordered, storage)
	return storage
}

// AddComponent attaches component to the entity and stamps its id.
// It fails for an id that is not live and when the entity already holds a T.
func AddComponent[T Component, PT componentRef[T]](r *EntityRegistry, id EntityId, component T) error {
	storage := StorageOf[T](r)
	if !id.IsValid() {
		return fmt.Errorf("%w: adding %s", ErrInvalidEntity, storage.typeName())
	}
	if !r.IsAlive(id) {
		return fmt.Errorf("%w: entity %d is not live, adding %s", ErrInvalidEntity, id, storage.typeName())
	}
	if storage.Has(id) {
		return fmt.Errorf("%w: entity %d already has %s, use UpdateComponent",
			ErrDuplicateComponent, id, storage.typeName())
	}

	PT(&component).SetEntity(id)
	storage.set(component)
	return nil
}

// UpdateComponent overwrites the stored value for the component's entity.
// It fails when the component carries no id or was never added.
func UpdateComponent[T Component](r *EntityRegistry, component T) error {
	storage := StorageOf[T](r)
	id := component.Entity()
	if !id.IsValid() {
		return fmt.Errorf("%w: updating %s", ErrMissingEntityId, storage.typeName())
	}
	if !storage.Has(id) {
		return fmt.Errorf("%w: entity %d has no %s, use AddComponent first",
			ErrComponentNotPresent, id, storage.typeName())
	}

	storage.set(component)
	return nil
}

// TryGetComponent looks up the T of the entity.
func TryGetComponent[T Component](r *EntityRegistry, id EntityId) (T, bool) {
	if storage, ok := r.storages[storageKey[T]{}]; ok {
		return storage.(*ComponentStorage[T]).Get(id)
	}
	var zero T
	return zero, false
}

// GetComponent returns the T of the entity, or the zero value after logging
// a warning when it is absent. Use it only where presence is already
// established; TryGetComponent is the lookup for control flow.
func GetComponent[T Component](r *EntityRegistry, id EntityId) T {
	component, ok := TryGetComponent[T](r, id)
	if !ok {
		r.logger.Warn("component not found",
			zap.Stringer("entity", id),
			zap.String("component", fmt.Sprintf("%T", component)),
			zap.Stack("stack"),
		)
	}
	return component
}

// GetComponents iterates every stored T in dense order.
// The sequence is live; collect it (slices.Collect) before structural changes.
func GetComponents[T Component](r *EntityRegistry) iter.Seq[T] {
	return StorageOf[T](r).All()
}
