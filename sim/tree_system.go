package sim

import (
	"fmt"
	"math"

	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/spatial"
	"go.uber.org/zap"
)

const treeBodyRadius = 1.0

// TreeSystem ages trees, grows their fruit, culls crowded saplings and
// spreads seeds from mature trees.
type TreeSystem struct {
	ecs.SystemBase[*World]

	commands *ecs.Commands
	deaths   []func(ecs.EntityId)
	spawns   []func(ecs.EntityId)
}

func NewTreeSystem() *TreeSystem {
	return &TreeSystem{commands: ecs.NewCommands()}
}

// OnDeath registers a listener fired when a tree dies, before it is destroyed.
func (s *TreeSystem) OnDeath(fn func(ecs.EntityId)) {
	s.deaths = append(s.deaths, fn)
}

// OnSpawn registers a listener fired after a tree entity is fully assembled.
func (s *TreeSystem) OnSpawn(fn func(ecs.EntityId)) {
	s.spawns = append(s.spawns, fn)
}

// SpawnInitialPopulation places mature trees at positions, or at
// Trees.InitialCount random positions when positions is nil.
func (s *TreeSystem) SpawnInitialPopulation(positions []spatial.Vec3) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if positions == nil {
		positions = make([]spatial.Vec3, s.World.Settings.Trees.InitialCount)
		for i := range positions {
			positions[i] = s.World.RandomPosition()
		}
	}
	for _, p := range positions {
		tree := Tree{Age: s.World.Settings.Trees.MaturationTime}
		if _, err := s.SpawnTree(tree, p); err != nil {
			return err
		}
	}
	return nil
}

// SpawnTree creates a tree entity on the ground below position with a
// random facing angle.
func (s *TreeSystem) SpawnTree(tree Tree, position spatial.Vec3) (ecs.EntityId, error) {
	reg := s.Registry
	id := reg.CreateEntity()

	position.Y = 0
	physics := NewAreaPhysics(s.World.Physics, position, spatial.Sphere{Radius: treeBodyRadius}, spatial.Vec3{})
	if err := ecs.AddComponent(reg, id, physics); err != nil {
		return 0, fmt.Errorf("spawn tree: %w", err)
	}
	s.World.RegisterBody(physics.Body.Handle, id, KindTree)

	tree.Angle = s.World.Rng.Range(0, 2*math.Pi)
	tree.Alive = true
	if err := ecs.AddComponent(reg, id, tree); err != nil {
		return 0, fmt.Errorf("spawn tree: %w", err)
	}

	for _, fn := range s.spawns {
		fn(id)
	}
	return id, nil
}

func (s *TreeSystem) Update(dt float64) error {
	if err := s.Ready(); err != nil {
		return err
	}
	cfg := s.World.Settings.Trees

	for _, id := range ecs.StorageOf[Tree](s.Registry).Entities() {
		tree, ok := ecs.TryGetComponent[Tree](s.Registry, id)
		if !ok || !tree.Alive {
			continue
		}

		growFruit(&tree, cfg, dt)

		physics, ok := ecs.TryGetComponent[AreaPhysics](s.Registry, id)
		if !ok {
			s.World.Logger.Warn("tree without physics", zap.Stringer("entity", id))
			continue
		}
		if !s.grow(&tree, physics, dt) {
			continue
		}

		if tree.IsMature(cfg.MaturationTime) && tree.TimeSinceLastSpawn == 0 {
			seed := s.seedPosition(physics.Position())
			if s.World.IsWithinBounds(seed) {
				s.commands.Defer(func() error {
					_, err := s.SpawnTree(Tree{}, seed)
					return err
				})
			}
		}

		if err := ecs.UpdateComponent(s.Registry, tree); err != nil {
			if ecs.IsStale(err) {
				continue
			}
			return err
		}
	}

	if err := s.commands.Flush(s.Registry); err != nil {
		return err
	}
	s.EmitStepped()
	return nil
}

func growFruit(tree *Tree, cfg TreeSettings, dt float64) {
	if !tree.IsMature(cfg.MaturationTime) || tree.HasFruit {
		return
	}
	tree.FruitGrowthProgress += dt
	if tree.FruitGrowthProgress >= cfg.FruitGrowthTime {
		tree.HasFruit = true
	}
}

// grow ages the tree and rolls its death. It reports false if the tree died.
func (s *TreeSystem) grow(tree *Tree, physics AreaPhysics, dt float64) bool {
	cfg := s.World.Settings.Trees
	tree.Age += dt

	var deathChance float64
	if !tree.IsMature(cfg.MaturationTime) {
		if s.tooCloseToMatureTree(tree.Id, physics.Position()) {
			s.kill(tree)
			return false
		}
		deathChance = cfg.SaplingDeathBase + float64(s.countNeighbors(tree.Id, physics.Position()))*cfg.SaplingDeathPerNeighbor
	} else {
		tree.TimeSinceLastSpawn += dt
		if tree.TimeSinceLastSpawn >= cfg.SpawnInterval {
			tree.TimeSinceLastSpawn = 0
		}
		deathChance = cfg.MatureDeathBase + float64(s.countNeighbors(tree.Id, physics.Position()))*cfg.MatureDeathPerNeighbor
	}

	if s.World.Rng.Chance(deathChance) {
		s.kill(tree)
		return false
	}
	return true
}

func (s *TreeSystem) kill(tree *Tree) {
	tree.Alive = false
	for _, fn := range s.deaths {
		fn(tree.Id)
	}
	s.Registry.DestroyEntity(tree.Id)
}

// countNeighbors counts live trees within the competition radius.
func (s *TreeSystem) countNeighbors(self ecs.EntityId, center spatial.Vec3) int {
	n := 0
	for _, id := range s.World.Nearby(KindTree, center, s.World.Settings.Trees.CompetitionRadius, self) {
		if t, ok := ecs.TryGetComponent[Tree](s.Registry, id); ok && t.Alive {
			n++
		}
	}
	return n
}

func (s *TreeSystem) tooCloseToMatureTree(self ecs.EntityId, center spatial.Vec3) bool {
	cfg := s.World.Settings.Trees
	for _, id := range s.World.Nearby(KindTree, center, cfg.MinimumDistance, self) {
		if t, ok := ecs.TryGetComponent[Tree](s.Registry, id); ok && t.IsMature(cfg.MaturationTime) {
			return true
		}
	}
	return false
}

func (s *TreeSystem) seedPosition(from spatial.Vec3) spatial.Vec3 {
	cfg := s.World.Settings.Trees
	angle := s.World.Rng.Range(0, 2*math.Pi)
	dist := s.World.Rng.Range(cfg.MinSpawnRadius, cfg.MaxSpawnRadius)
	sin, cos := math.Sincos(angle)
	return from.Add(spatial.Vec3{X: cos * dist, Z: sin * dist})
}
