package ecs_test

import "github.com/plus3/ecosim/ecs"

// Common test component types
type Position struct {
	ecs.Owner
	X, Y float64
}

type Velocity struct {
	ecs.Owner
	DX, DY float64
}

type Health struct {
	ecs.Owner
	Current int
	Max     int
}

// Resource records its own CleanUp into a shared journal.
type Resource struct {
	ecs.Owner
	Name    string
	journal *[]string
}

func (r Resource) CleanUp() {
	*r.journal = append(*r.journal, "cleanup "+r.Name)
}

func spawn(r *ecs.EntityRegistry, components ...func(ecs.EntityId) error) ecs.EntityId {
	id := r.CreateEntity()
	for _, add := range components {
		if err := add(id); err != nil {
			panic(err)
		}
	}
	return id
}

func withPosition(r *ecs.EntityRegistry, x, y float64) func(ecs.EntityId) error {
	return func(id ecs.EntityId) error { return ecs.AddComponent(r, id, Position{X: x, Y: y}) }
}

func withVelocity(r *ecs.EntityRegistry, dx, dy float64) func(ecs.EntityId) error {
	return func(id ecs.EntityId) error { return ecs.AddComponent(r, id, Velocity{DX: dx, DY: dy}) }
}
