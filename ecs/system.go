package ecs

// System is one unit of per-tick behavior. Initialize wires it to its data
// source exactly once, before the first Update. Update performs a full
// read-plan-write pass over the components it cares about and then notifies
// OnStepped listeners. W is the world type the systems of a simulation share.
type System[W any] interface {
	Initialize(registry *EntityRegistry, world W) error
	Update(dt float64) error
	OnStepped(fn func())
}

// SystemBase carries the state every system needs: the registry, the world,
// the initialized flag and the stepped listeners. Embed it in system structs.
type SystemBase[W any] struct {
	Registry *EntityRegistry
	World    W

	initialized bool
	stepped     []func()
}

// Initialize stores the registry and world. A second call fails.
func (b *SystemBase[W]) Initialize(registry *EntityRegistry, world W) error {
	if b.initialized {
		return ErrAlreadyInitialized
	}
	b.Registry = registry
	b.World = world
	b.initialized = true
	return nil
}

// Ready returns ErrNotInitialized until Initialize has run.
// Update implementations call it first.
func (b *SystemBase[W]) Ready() error {
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

// OnStepped registers a listener fired after each completed pass.
func (b *SystemBase[W]) OnStepped(fn func()) {
	b.stepped = append(b.stepped, fn)
}

// EmitStepped notifies stepped listeners. Call it once the pass has written
// everything back.
func (b *SystemBase[W]) EmitStepped() {
	for _, fn := range b.stepped {
		fn()
	}
}
