package ecs

// iComponentStorage is the type-erased side of a ComponentStorage, used by the
// registry for operations that span every component type.
type iComponentStorage interface {
	Remove(id EntityId) bool
	Has(id EntityId) bool
	Len() int
	typeName() string
}
