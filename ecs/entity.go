package ecs

import "strconv"

// EntityId identifies one simulated entity. Zero is reserved as the invalid id;
// a registry issues ids starting at 1 and never hands the same id out twice.
type EntityId uint64

// IsValid reports whether the id is nonzero.
func (e EntityId) IsValid() bool {
	return e != 0
}

func (e EntityId) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// Component is a plain-data value attached to exactly one entity.
// CleanUp releases externally owned resources (backend handles) and is
// invoked by the owning storage when the component is removed.
type Component interface {
	Entity() EntityId
	CleanUp()
}

// componentRef is the pointer side of a component, used to stamp the owning
// entity id on AddComponent.
type componentRef[T any] interface {
	*T
	SetEntity(EntityId)
}

// Owner is embedded in component structs to satisfy the entity-id half of
// the Component contract. Its CleanUp is a no-op; components that hold
// resources declare their own.
type Owner struct {
	Id EntityId
}

func (o Owner) Entity() EntityId { return o.Id }

func (o *Owner) SetEntity(id EntityId) { o.Id = id }

func (Owner) CleanUp() {}
