package sim

import (
	"slices"

	"github.com/plus3/ecosim/ecs"
)

// AreaPhysicsSystem integrates every AreaPhysics by one step and keeps the
// backend areas in sync. It never creates or destroys entities.
type AreaPhysicsSystem struct {
	ecs.SystemBase[*World]
}

func NewAreaPhysicsSystem() *AreaPhysicsSystem {
	return &AreaPhysicsSystem{}
}

func (s *AreaPhysicsSystem) Update(dt float64) error {
	if err := s.Ready(); err != nil {
		return err
	}

	for _, physics := range slices.Collect(ecs.GetComponents[AreaPhysics](s.Registry)) {
		physics.Integrate(dt)
		physics.SyncAreas()
		if err := ecs.UpdateComponent(s.Registry, physics); err != nil {
			if ecs.IsStale(err) {
				continue
			}
			return err
		}
	}

	s.EmitStepped()
	return nil
}
