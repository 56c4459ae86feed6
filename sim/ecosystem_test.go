package sim_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/sim"
	"github.com/plus3/ecosim/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = spatial.Vec3{X: 25, Z: 25}

// quietSettings has no initial population and no random tree deaths.
func quietSettings() sim.Settings {
	s := sim.DefaultSettings()
	s.Creatures.InitialCount = 0
	s.Trees.InitialCount = 0
	s.Trees.SaplingDeathBase = 0
	s.Trees.SaplingDeathPerNeighbor = 0
	s.Trees.MatureDeathBase = 0
	s.Trees.MatureDeathPerNeighbor = 0
	return s
}

func newSimulation(t *testing.T, settings sim.Settings) (*sim.Simulation, *spatial.MemoryBackend) {
	t.Helper()
	backend := spatial.NewMemoryBackend(settings.World.CellSize)
	s, err := sim.New(settings, sim.WithBackend(backend), sim.WithRunID(uuid.MustParse("6f1c0e4a-3b7d-4c55-9a0e-2d8f5b1c7e90")))
	require.NoError(t, err)
	return s, backend
}

func steps(t *testing.T, s *sim.Simulation, n int) {
	t.Helper()
	for range n {
		require.NoError(t, s.Step())
	}
}

func spawnAdult(t *testing.T, s *sim.Simulation, pos spatial.Vec3, energy float64) ecs.EntityId {
	t.Helper()
	c := sim.NewCreature(s.Creatures.NewGenome(), s.World.Settings.Creatures)
	c.Age = 5
	c.Energy = energy
	id, err := s.Creatures.SpawnCreature(c, pos)
	require.NoError(t, err)
	return id
}

func TestTreeFruitGrowth(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	id, err := s.Trees.SpawnTree(sim.Tree{Age: 20}, center)
	require.NoError(t, err)

	steps(t, s, 200)
	tree := ecs.GetComponent[sim.Tree](s.Registry, id)
	assert.False(t, tree.HasFruit)
	assert.InDelta(t, 200.0/60, tree.FruitGrowthProgress, 1e-9)

	steps(t, s, 50)
	tree = ecs.GetComponent[sim.Tree](s.Registry, id)
	assert.True(t, tree.HasFruit)
	assert.InDelta(t, 20+250.0/60, tree.Age, 1e-9)
}

func TestSaplingsDoNotFruit(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	id, err := s.Trees.SpawnTree(sim.Tree{}, center)
	require.NoError(t, err)

	steps(t, s, 300)
	tree := ecs.GetComponent[sim.Tree](s.Registry, id)
	assert.False(t, tree.HasFruit)
	assert.Zero(t, tree.FruitGrowthProgress)
	assert.Zero(t, tree.TimeSinceLastSpawn)
}

func TestTreeSpreadsSeeds(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	_, err := s.Trees.SpawnTree(sim.Tree{Age: 20}, center)
	require.NoError(t, err)
	before := s.Tally().TreeSpawns

	steps(t, s, 170)
	assert.Equal(t, before, s.Tally().TreeSpawns)

	steps(t, s, 30)
	assert.Equal(t, before+1, s.Tally().TreeSpawns)
}

func TestSaplingTooCloseToMatureTreeDies(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	mature, err := s.Trees.SpawnTree(sim.Tree{Age: 20}, center)
	require.NoError(t, err)
	sapling, err := s.Trees.SpawnTree(sim.Tree{}, center.Add(spatial.Vec3{X: 1}))
	require.NoError(t, err)
	distant, err := s.Trees.SpawnTree(sim.Tree{}, center.Add(spatial.Vec3{X: 15}))
	require.NoError(t, err)

	var died []ecs.EntityId
	s.Trees.OnDeath(func(id ecs.EntityId) { died = append(died, id) })

	steps(t, s, 1)
	assert.Equal(t, []ecs.EntityId{sapling}, died)
	assert.False(t, s.Registry.IsAlive(sapling))
	assert.True(t, s.Registry.IsAlive(mature))
	assert.True(t, s.Registry.IsAlive(distant))
	assert.Equal(t, 1, s.Tally().TreeDeaths)
}

func TestTreesOnTheGround(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	id, err := s.Trees.SpawnTree(sim.Tree{}, spatial.Vec3{X: 3, Y: 7, Z: 4})
	require.NoError(t, err)

	physics := ecs.GetComponent[sim.AreaPhysics](s.Registry, id)
	assert.Equal(t, spatial.Vec3{X: 3, Z: 4}, physics.Position())
	tree := ecs.GetComponent[sim.Tree](s.Registry, id)
	assert.True(t, tree.Alive)
	assert.GreaterOrEqual(t, tree.Angle, 0.0)
}

func TestCreatureDeaths(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sim.Settings)
		setup  func(*sim.Creature)
		cause  sim.DeathCause
	}{
		{
			name:  "starvation",
			setup: func(c *sim.Creature) { c.Energy = -1 },
			cause: sim.DeathStarvation,
		},
		{
			name:  "old age",
			setup: func(c *sim.Creature) { c.Age = 25 },
			cause: sim.DeathAging,
		},
		{
			name: "deleterious trait",
			mutate: func(s *sim.Settings) {
				s.Genome = append(s.Genome, sim.TraitSpec{
					Kind: sim.KindDeleterious, Bools: []bool{true, false}, MortalityPerSecond: 1,
				})
			},
			cause: sim.DeathDeleterious,
		},
		{
			name: "antagonistic pleiotropy",
			mutate: func(s *sim.Settings) {
				s.Creatures.PleiotropyDeathRate = 1
				s.Genome = append(s.Genome, sim.TraitSpec{
					Name: sim.TraitAntagonisticPleiotropy, Kind: sim.KindBool, Expression: "dominant", Bools: []bool{true, true},
				})
			},
			cause: sim.DeathPleiotropy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := quietSettings()
			if tt.mutate != nil {
				tt.mutate(&settings)
			}
			s, backend := newSimulation(t, settings)

			c := sim.NewCreature(s.Creatures.NewGenome(), settings.Creatures)
			c.Age = 5
			if tt.setup != nil {
				tt.setup(&c)
			}
			id, err := s.Creatures.SpawnCreature(c, center)
			require.NoError(t, err)
			assert.Equal(t, 2, backend.Len())

			var causes []sim.DeathCause
			s.Creatures.OnDeath(func(_ ecs.EntityId, cause sim.DeathCause) { causes = append(causes, cause) })

			steps(t, s, 1)
			assert.Equal(t, []sim.DeathCause{tt.cause}, causes)
			assert.False(t, s.Registry.IsAlive(id))
			assert.Equal(t, 0, backend.Len())
			assert.Equal(t, 1, s.Tally().Deaths[tt.cause])
		})
	}
}

func TestDeathCauseString(t *testing.T) {
	assert.Equal(t, "starvation", sim.DeathStarvation.String())
	assert.Equal(t, "aging", sim.DeathAging.String())
	assert.Equal(t, "deleterious", sim.DeathDeleterious.String())
	assert.Equal(t, "pleiotropy", sim.DeathPleiotropy.String())
	assert.Equal(t, "none", sim.DeathNone.String())
}

func TestJuvenilesStayPut(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	c := sim.NewCreature(s.Creatures.NewGenome(), s.World.Settings.Creatures)
	c.Digesting = 1
	id, err := s.Creatures.SpawnCreature(c, center)
	require.NoError(t, err)

	steps(t, s, 1)

	got := ecs.GetComponent[sim.Creature](s.Registry, id)
	assert.InDelta(t, s.World.Settings.Dt(), got.Age, 1e-15)
	assert.InDelta(t, 1.05, got.Energy, 1e-12)
	assert.InDelta(t, 0.95, got.Digesting, 1e-12)
	assert.Equal(t, center, ecs.GetComponent[sim.AreaPhysics](s.Registry, id).Position())
}

func TestWanderingCostsEnergy(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	id := spawnAdult(t, s, center, 1)

	steps(t, s, 1)

	got := ecs.GetComponent[sim.Creature](s.Registry, id)
	// base 0.1 plus 0.2 * (speed ratio squared 1 + awareness ratio 1), per second
	assert.InDelta(t, 1-0.5/60, got.Energy, 1e-12)
	assert.LessOrEqual(t, got.Destination.DistanceTo(center), s.World.Settings.Creatures.StepMaxLength)

	physics := ecs.GetComponent[sim.AreaPhysics](s.Registry, id)
	assert.LessOrEqual(t, physics.Velocity.Length(), got.MaxSpeed())
}

func TestCreatureEatsFruit(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	tree, err := s.Trees.SpawnTree(sim.Tree{Age: 20, HasFruit: true}, center.Add(spatial.Vec3{X: 1}))
	require.NoError(t, err)
	creature := spawnAdult(t, s, center, 1)

	var meals [][2]ecs.EntityId
	s.Creatures.OnEat(func(c, tr ecs.EntityId) { meals = append(meals, [2]ecs.EntityId{c, tr}) })

	steps(t, s, 1)

	assert.Equal(t, [][2]ecs.EntityId{{creature, tree}}, meals)
	assert.Equal(t, 1, s.Tally().Meals)
	assert.False(t, ecs.GetComponent[sim.Tree](s.Registry, tree).HasFruit)

	got := ecs.GetComponent[sim.Creature](s.Registry, creature)
	assert.Equal(t, s.World.Settings.Creatures.EatDuration, got.EatingTimeLeft)
	assert.GreaterOrEqual(t, got.Digesting, 0.5)
	assert.Less(t, got.Digesting, 1.5)

	// eating keeps it busy and digestion feeds it
	energy := got.Energy
	steps(t, s, 1)
	got = ecs.GetComponent[sim.Creature](s.Registry, creature)
	assert.InDelta(t, energy+0.05, got.Energy, 1e-12)
	assert.Equal(t, 1, s.Tally().Meals)
}

func TestCreaturesMate(t *testing.T) {
	s, _ := newSimulation(t, quietSettings())
	a := spawnAdult(t, s, center, 3)
	b := spawnAdult(t, s, center.Add(spatial.Vec3{X: 0.5}), 3)

	var born []ecs.EntityId
	s.Creatures.OnBirth(func(id ecs.EntityId) { born = append(born, id) })
	before := s.Tally().Births

	steps(t, s, 1)

	require.Len(t, born, 1)
	assert.Equal(t, before+1, s.Tally().Births)
	assert.Equal(t, 3, ecs.StorageOf[sim.Creature](s.Registry).Len())

	left := ecs.GetComponent[sim.Creature](s.Registry, a)
	right := ecs.GetComponent[sim.Creature](s.Registry, b)
	assert.Equal(t, 2.5, left.Energy)
	assert.Equal(t, 2.5, right.Energy)
	assert.Equal(t, 1.0, left.MatingTimeLeft)
	assert.InDelta(t, 1-1.0/60, right.MatingTimeLeft, 1e-12)

	child := ecs.GetComponent[sim.Creature](s.Registry, born[0])
	assert.Zero(t, child.Age)
	assert.Equal(t, s.World.Settings.Creatures.InitialEnergy, child.Energy)
	assert.NotSame(t, left.Genome, child.Genome)
	assert.Equal(t, center.Add(spatial.Vec3{X: 0.25}), ecs.GetComponent[sim.AreaPhysics](s.Registry, born[0]).Position())

	// recovering parents do not mate again
	steps(t, s, 1)
	assert.Equal(t, 3, ecs.StorageOf[sim.Creature](s.Registry).Len())
}

func TestPleiotropyDoublesSpeed(t *testing.T) {
	settings := quietSettings()
	settings.Genome = append(settings.Genome, sim.TraitSpec{
		Name: sim.TraitAntagonisticPleiotropy, Kind: sim.KindBool, Expression: "recessive", Bools: []bool{true, false},
	})
	s, _ := newSimulation(t, settings)

	c := sim.NewCreature(s.Creatures.NewGenome(), settings.Creatures)
	assert.Equal(t, 5.0, c.AdjustedSpeed())

	settings.Genome[3].Expression = "dominant"
	s, _ = newSimulation(t, settings)
	c = sim.NewCreature(s.Creatures.NewGenome(), settings.Creatures)
	assert.Equal(t, 10.0, c.AdjustedSpeed())
	assert.Equal(t, 5.0, c.MaxSpeed())
}
