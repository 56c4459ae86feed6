package sim

import (
	"fmt"
	"math"

	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/genetics"
	"github.com/plus3/ecosim/spatial"
	"go.uber.org/zap"
)

// DeathCause says why a creature died.
type DeathCause uint8

const (
	DeathNone DeathCause = iota
	DeathStarvation
	DeathAging
	DeathDeleterious
	DeathPleiotropy
)

func (c DeathCause) String() string {
	switch c {
	case DeathStarvation:
		return "starvation"
	case DeathAging:
		return "aging"
	case DeathDeleterious:
		return "deleterious"
	case DeathPleiotropy:
		return "pleiotropy"
	default:
		return "none"
	}
}

var (
	creatureBody     = spatial.Capsule{Radius: 0.25, Height: 1}
	creatureBodyLift = spatial.Vec3{Y: 0.5}
)

// CreatureSystem runs the life of every creature: aging and death, digestion,
// busy states, mating, foraging and wandering.
type CreatureSystem struct {
	ecs.SystemBase[*World]

	prototype *genetics.Genome
	commands  *ecs.Commands

	deaths []func(ecs.EntityId, DeathCause)
	births []func(ecs.EntityId)
	eats   []func(creature, tree ecs.EntityId)
}

func NewCreatureSystem() *CreatureSystem {
	return &CreatureSystem{commands: ecs.NewCommands()}
}

// Initialize wires the system and builds the initial genome from settings.
func (s *CreatureSystem) Initialize(registry *ecs.EntityRegistry, world *World) error {
	if err := s.SystemBase.Initialize(registry, world); err != nil {
		return err
	}
	g, err := world.Settings.BuildGenome(world.Rng, world.Logger)
	if err != nil {
		return err
	}
	s.prototype = g
	return nil
}

// OnDeath registers a listener fired when a creature dies, before it is destroyed.
func (s *CreatureSystem) OnDeath(fn func(ecs.EntityId, DeathCause)) {
	s.deaths = append(s.deaths, fn)
}

// OnBirth registers a listener fired after a creature entity is assembled.
func (s *CreatureSystem) OnBirth(fn func(ecs.EntityId)) {
	s.births = append(s.births, fn)
}

// OnEat registers a listener fired when a creature takes a tree's fruit.
func (s *CreatureSystem) OnEat(fn func(creature, tree ecs.EntityId)) {
	s.eats = append(s.eats, fn)
}

// NewGenome returns a fresh copy of the initial genome.
func (s *CreatureSystem) NewGenome() *genetics.Genome {
	return s.prototype.Clone()
}

// SpawnInitialPopulation places creatures with the initial genome at
// positions, or at Creatures.InitialCount random positions when nil.
func (s *CreatureSystem) SpawnInitialPopulation(positions []spatial.Vec3) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if positions == nil {
		positions = make([]spatial.Vec3, s.World.Settings.Creatures.InitialCount)
		for i := range positions {
			positions[i] = s.World.RandomPosition()
		}
	}
	for _, p := range positions {
		c := NewCreature(s.NewGenome(), s.World.Settings.Creatures)
		if _, err := s.SpawnCreature(c, p); err != nil {
			return err
		}
	}
	return nil
}

// SpawnCreature creates a creature entity with a body and an awareness area
// sized by its genome. The creature starts with position as its destination.
func (s *CreatureSystem) SpawnCreature(c Creature, position spatial.Vec3) (ecs.EntityId, error) {
	reg := s.Registry
	backend := s.World.Physics
	id := reg.CreateEntity()

	physics := NewAreaPhysics(backend, position, creatureBody, creatureBodyLift)
	physics.VelocityDamping = s.World.Settings.Creatures.VelocityDamping
	physics.AddAwareness(backend, c.AwarenessRadius(), creatureBodyLift)
	if err := ecs.AddComponent(reg, id, physics); err != nil {
		return 0, fmt.Errorf("spawn creature: %w", err)
	}
	s.World.RegisterBody(physics.Body.Handle, id, KindCreature)

	c.Destination = position
	if err := ecs.AddComponent(reg, id, c); err != nil {
		return 0, fmt.Errorf("spawn creature: %w", err)
	}

	for _, fn := range s.births {
		fn(id)
	}
	return id, nil
}

func (s *CreatureSystem) Update(dt float64) error {
	if err := s.Ready(); err != nil {
		return err
	}

	for _, id := range ecs.StorageOf[Creature](s.Registry).Entities() {
		creature, ok := ecs.TryGetComponent[Creature](s.Registry, id)
		if !ok || !creature.Alive {
			continue
		}
		creature.Age += dt

		if cause := s.checkForDeath(creature); cause != DeathNone {
			s.kill(&creature, cause)
			continue
		}

		physics, ok := ecs.TryGetComponent[AreaPhysics](s.Registry, id)
		if !ok {
			s.World.Logger.Warn("creature without physics", zap.Stringer("entity", id))
			continue
		}

		if s.busy(&creature, dt) {
			physics.Velocity = spatial.Vec3{}
			if err := s.commit(creature, physics); err != nil {
				return err
			}
			continue
		}

		if err := s.act(&creature, &physics, dt); err != nil {
			return err
		}
	}

	if err := s.commands.Flush(s.Registry); err != nil {
		return err
	}
	s.EmitStepped()
	return nil
}

// act picks the creature's behavior for this step: court a mate, forage, or wander.
func (s *CreatureSystem) act(creature *Creature, physics *AreaPhysics, dt float64) error {
	cfg := s.World.Settings.Creatures
	pos := physics.Position()

	if s.isOpenToMating(*creature) {
		if mate, matePhysics, ok := s.nearestMate(*creature, *physics); ok {
			if matePhysics.Position().DistanceTo(pos) < cfg.MateDistance {
				return s.mate(creature, mate, pos.Add(matePhysics.Position()).Scale(0.5))
			}
			creature.Destination = matePhysics.Position()
			s.move(creature, physics, dt)
			return s.commit(*creature, *physics)
		}
	}

	if creature.Energy < creature.HungerThreshold {
		if tree, treePhysics, ok := s.nearestFruitTree(*creature, *physics); ok {
			if treePhysics.Position().DistanceTo(pos) < cfg.EatDistance && creature.EatingTimeLeft <= 0 {
				return s.eat(creature, tree)
			}
			creature.Destination = treePhysics.Position()
			s.move(creature, physics, dt)
			return s.commit(*creature, *physics)
		}
	}

	if d := creature.Destination.Sub(pos); d.LengthSquared() < cfg.EatDistance*cfg.EatDistance {
		creature.Destination = s.World.RandomDestination(pos, cfg.StepMaxLength)
	}
	s.move(creature, physics, dt)
	return s.commit(*creature, *physics)
}

func (s *CreatureSystem) commit(creature Creature, physics AreaPhysics) error {
	if err := ecs.UpdateComponent(s.Registry, physics); err != nil && !ecs.IsStale(err) {
		return err
	}
	if err := ecs.UpdateComponent(s.Registry, creature); err != nil && !ecs.IsStale(err) {
		return err
	}
	return nil
}

// busy digests food and reports whether the creature is occupied this step:
// still maturing, eating, or recovering from mating.
func (s *CreatureSystem) busy(c *Creature, dt float64) bool {
	cfg := s.World.Settings.Creatures
	if c.Digesting > 0 {
		amount := min(c.Digesting, cfg.DigestionPerStep)
		c.Energy += amount
		c.Digesting -= amount
	}

	if c.Age < cfg.MaturationTime {
		return true
	}
	if c.EatingTimeLeft > 0 {
		c.EatingTimeLeft -= dt
		return true
	}
	if c.MatingTimeLeft > 0 {
		c.MatingTimeLeft = max(0, c.MatingTimeLeft-dt)
		return true
	}
	return false
}

// move steers toward the destination and pays for the effort.
func (s *CreatureSystem) move(c *Creature, physics *AreaPhysics, dt float64) {
	cfg := s.World.Settings.Creatures
	physics.AccelerateToward(c.Destination, c.AdjustedSpeed(), cfg.MaxAccelerationFactor)

	speed := c.MaxSpeed() / cfg.ReferenceSpeed
	awareness := c.AwarenessRadius() / cfg.ReferenceAwarenessRadius
	c.Energy -= (cfg.BaseEnergySpend + cfg.EnergySpendAdjustment*(speed*speed+awareness)) * dt
}

func (s *CreatureSystem) mate(c *Creature, mate Creature, birthplace spatial.Vec3) error {
	cfg := s.World.Settings.Creatures
	c.MatingTimeLeft += cfg.ReproductionDuration
	mate.MatingTimeLeft += cfg.ReproductionDuration
	c.Energy -= cfg.ReproductionEnergyCost / 2
	mate.Energy -= cfg.ReproductionEnergyCost / 2

	genome := genetics.Reproduce(c.Genome, mate.Genome, s.World.Rng, s.World.Settings.MutationConfig())
	child := NewCreature(genome, cfg)
	s.commands.Defer(func() error {
		_, err := s.SpawnCreature(child, birthplace)
		return err
	})

	if err := ecs.UpdateComponent(s.Registry, *c); err != nil && !ecs.IsStale(err) {
		return err
	}
	if err := ecs.UpdateComponent(s.Registry, mate); err != nil && !ecs.IsStale(err) {
		return err
	}
	return nil
}

func (s *CreatureSystem) eat(c *Creature, tree Tree) error {
	cfg := s.World.Settings.Creatures
	c.Digesting += s.World.Rng.Range(cfg.MinEnergyGainFromFood, cfg.MaxEnergyGainFromFood)
	c.EatingTimeLeft = cfg.EatDuration

	tree.HasFruit = false
	tree.FruitGrowthProgress = 0
	if err := ecs.UpdateComponent(s.Registry, tree); err != nil && !ecs.IsStale(err) {
		return err
	}
	for _, fn := range s.eats {
		fn(c.Id, tree.Id)
	}

	if err := ecs.UpdateComponent(s.Registry, *c); err != nil && !ecs.IsStale(err) {
		return err
	}
	return nil
}

func (s *CreatureSystem) kill(c *Creature, cause DeathCause) {
	c.Alive = false
	for _, fn := range s.deaths {
		fn(c.Id, cause)
	}
	s.Registry.DestroyEntity(c.Id)
}

func (s *CreatureSystem) awarenessCenter(physics AreaPhysics) spatial.Vec3 {
	return physics.Position().Add(physics.Awareness.Offset)
}

// nearestMate returns the closest perceived creature that is open to mating.
func (s *CreatureSystem) nearestMate(c Creature, physics AreaPhysics) (Creature, AreaPhysics, bool) {
	var (
		best        Creature
		bestPhysics AreaPhysics
		bestDist    = math.Inf(1)
	)
	for _, id := range s.World.Nearby(KindCreature, s.awarenessCenter(physics), c.AwarenessRadius(), c.Id) {
		other, ok := ecs.TryGetComponent[Creature](s.Registry, id)
		if !ok || !s.isOpenToMating(other) {
			continue
		}
		otherPhysics, ok := ecs.TryGetComponent[AreaPhysics](s.Registry, id)
		if !ok {
			continue
		}
		if d := otherPhysics.Position().Sub(physics.Position()).LengthSquared(); d < bestDist {
			best, bestPhysics, bestDist = other, otherPhysics, d
		}
	}
	return best, bestPhysics, !math.IsInf(bestDist, 1)
}

// nearestFruitTree returns the closest perceived tree bearing fruit.
func (s *CreatureSystem) nearestFruitTree(c Creature, physics AreaPhysics) (Tree, AreaPhysics, bool) {
	var (
		best        Tree
		bestPhysics AreaPhysics
		bestDist    = math.Inf(1)
	)
	for _, id := range s.World.Nearby(KindTree, s.awarenessCenter(physics), c.AwarenessRadius(), 0) {
		tree, ok := ecs.TryGetComponent[Tree](s.Registry, id)
		if !ok || !tree.HasFruit {
			continue
		}
		treePhysics, ok := ecs.TryGetComponent[AreaPhysics](s.Registry, id)
		if !ok {
			continue
		}
		if d := treePhysics.Position().Sub(physics.Position()).LengthSquared(); d < bestDist {
			best, bestPhysics, bestDist = tree, treePhysics, d
		}
	}
	return best, bestPhysics, !math.IsInf(bestDist, 1)
}

func (s *CreatureSystem) isOpenToMating(c Creature) bool {
	if !c.Alive || c.MatingTimeLeft > 0 {
		return false
	}
	if c.Energy < s.World.Settings.Creatures.ReproductionEnergyThreshold {
		return false
	}
	if t, ok := floatTrait(c.Genome, TraitMaxReproductionAge); ok && c.Age > t.ExpressedValue() {
		return false
	}
	return true
}

func (s *CreatureSystem) checkForDeath(c Creature) DeathCause {
	if c.Energy < 0 {
		return DeathStarvation
	}
	if t, ok := floatTrait(c.Genome, TraitMaxAge); ok && t.ExpressedValue() < c.Age {
		return DeathAging
	}
	for _, d := range c.Genome.DeleteriousTraits() {
		if d.CheckForDeath(c.Age, s.World.Rng) {
			return DeathDeleterious
		}
	}

	cfg := s.World.Settings
	if t, ok := boolTrait(c.Genome, TraitAntagonisticPleiotropy); ok && t.ExpressedValue() && c.Age > cfg.Creatures.MaturationTime {
		perStep := 1 - math.Pow(1-cfg.Creatures.PleiotropyDeathRate, 1/float64(cfg.StepsPerSecond))
		if s.World.Rng.Chance(perStep) {
			return DeathPleiotropy
		}
	}
	return DeathNone
}

// floatTrait and boolTrait look up optional traits without logging a miss.
func floatTrait(g *genetics.Genome, name string) (*genetics.Trait[float64], bool) {
	gene, ok := g.Gene(name)
	if !ok {
		return nil, false
	}
	t, ok := gene.(*genetics.Trait[float64])
	return t, ok
}

func boolTrait(g *genetics.Genome, name string) (*genetics.Trait[bool], bool) {
	gene, ok := g.Gene(name)
	if !ok {
		return nil, false
	}
	t, ok := gene.(*genetics.Trait[bool])
	return t, ok
}
