package ecs

import "errors"

var (
	// ErrInvalidEntity is returned when the zero id, or one that is not live, is passed to a mutating call.
	ErrInvalidEntity = errors.New("ecs: invalid entity id")
	// ErrDuplicateComponent is returned by AddComponent when the entity already holds the type.
	ErrDuplicateComponent = errors.New("ecs: duplicate component")
	// ErrMissingEntityId is returned by UpdateComponent for a component that was never stamped.
	ErrMissingEntityId = errors.New("ecs: component has no entity id")
	// ErrComponentNotPresent is returned by UpdateComponent when no prior AddComponent happened.
	ErrComponentNotPresent = errors.New("ecs: component not present")
	// ErrNotInitialized is returned by a system updated before Initialize.
	ErrNotInitialized = errors.New("ecs: system not initialized")
	// ErrAlreadyInitialized is returned when Initialize runs twice.
	ErrAlreadyInitialized = errors.New("ecs: system already initialized")
)

// IsStale reports whether err is the harmless outcome of updating an entity
// that was destroyed earlier in the same pass.
func IsStale(err error) bool {
	return errors.Is(err, ErrComponentNotPresent)
}
