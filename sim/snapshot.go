package sim

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/spatial"
)

// ErrPopulationExists is returned when restoring into a registry that
// already holds entities of the restored kind.
var ErrPopulationExists = errors.New("sim: population already present")

// Placement is the persisted layout of one entity.
type Placement struct {
	Transform spatial.Transform `json:"transform"`
	Age       float64           `json:"age"`
	Angle     float64           `json:"angle,omitempty"`
}

// Snapshot is the spatial layout and maturity of a population, without
// genetic history.
type Snapshot struct {
	RunID     uuid.UUID   `json:"run_id"`
	Seed      uint64      `json:"seed"`
	Trees     []Placement `json:"trees"`
	Creatures []Placement `json:"creatures"`
}

// TakeSnapshot captures every living tree and creature in entity order.
func TakeSnapshot(registry *ecs.EntityRegistry, runID uuid.UUID, seed uint64) Snapshot {
	type placed struct {
		id ecs.EntityId
		p  Placement
	}
	collect := func(xs []placed) []Placement {
		slices.SortFunc(xs, func(a, b placed) int { return cmp.Compare(a.id, b.id) })
		out := make([]Placement, len(xs))
		for i, x := range xs {
			out[i] = x.p
		}
		return out
	}

	var trees, creatures []placed
	for tree := range ecs.GetComponents[Tree](registry) {
		physics, ok := ecs.TryGetComponent[AreaPhysics](registry, tree.Id)
		if !ok || !tree.Alive {
			continue
		}
		trees = append(trees, placed{tree.Id, Placement{Transform: physics.Transform, Age: tree.Age, Angle: tree.Angle}})
	}
	for creature := range ecs.GetComponents[Creature](registry) {
		physics, ok := ecs.TryGetComponent[AreaPhysics](registry, creature.Id)
		if !ok || !creature.Alive {
			continue
		}
		creatures = append(creatures, placed{creature.Id, Placement{Transform: physics.Transform, Age: creature.Age}})
	}

	return Snapshot{
		RunID:     runID,
		Seed:      seed,
		Trees:     collect(trees),
		Creatures: collect(creatures),
	}
}

// Save writes the snapshot as indented JSON.
func (s Snapshot) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// SaveFile writes the snapshot to path.
func (s Snapshot) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

// LoadSnapshot decodes a snapshot written by Save.
func LoadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// LoadSnapshotFile reads a snapshot from path.
func LoadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// Restore rebuilds trees from placements. The registry must hold no trees.
func (s *TreeSystem) Restore(placements []Placement) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if ecs.StorageOf[Tree](s.Registry).Len() > 0 {
		return fmt.Errorf("%w: trees", ErrPopulationExists)
	}
	for _, p := range placements {
		id, err := s.SpawnTree(Tree{Age: p.Age}, p.Transform.Origin)
		if err != nil {
			return err
		}
		tree := ecs.GetComponent[Tree](s.Registry, id)
		tree.Angle = p.Angle
		if err := ecs.UpdateComponent(s.Registry, tree); err != nil {
			return err
		}
	}
	return nil
}

// Restore rebuilds creatures from placements with fresh initial genomes.
// The registry must hold no creatures.
func (s *CreatureSystem) Restore(placements []Placement) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if ecs.StorageOf[Creature](s.Registry).Len() > 0 {
		return fmt.Errorf("%w: creatures", ErrPopulationExists)
	}
	for _, p := range placements {
		c := NewCreature(s.NewGenome(), s.World.Settings.Creatures)
		c.Age = p.Age
		id, err := s.SpawnCreature(c, p.Transform.Origin)
		if err != nil {
			return err
		}
		physics := ecs.GetComponent[AreaPhysics](s.Registry, id)
		physics.Transform.Rotation = p.Transform.Rotation
		physics.SyncAreas()
		if err := ecs.UpdateComponent(s.Registry, physics); err != nil {
			return err
		}
	}
	return nil
}
