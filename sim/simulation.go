package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/plus3/ecosim/ecs"
	"go.uber.org/zap"
)

// Tally counts lifecycle events over a run.
type Tally struct {
	Births     int                `json:"births"`
	Deaths     map[DeathCause]int `json:"-"`
	Meals      int                `json:"meals"`
	TreeSpawns int                `json:"tree_spawns"`
	TreeDeaths int                `json:"tree_deaths"`
}

// TotalDeaths sums creature deaths over all causes.
func (t Tally) TotalDeaths() int {
	n := 0
	for _, c := range t.Deaths {
		n += c
	}
	return n
}

// Simulation assembles one registry, its world and the ecosystem systems
// in their fixed order: trees, creatures, physics, census.
type Simulation struct {
	RunID     uuid.UUID
	Registry  *ecs.EntityRegistry
	World     *World
	Scheduler *ecs.Scheduler[*World]

	Trees     *TreeSystem
	Creatures *CreatureSystem
	Physics   *AreaPhysicsSystem
	Census    *CensusSystem

	tally  Tally
	logger *zap.Logger
}

type options struct {
	logger      *zap.Logger
	runID       uuid.UUID
	sampleEvery int64
	physics     Physics
}

// Option configures a Simulation.
type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id uuid.UUID) Option {
	return func(o *options) { o.runID = id }
}

// WithSampleEvery sets how many steps pass between census samples.
func WithSampleEvery(steps int64) Option {
	return func(o *options) { o.sampleEvery = steps }
}

// WithBackend replaces the in-memory physics backend.
func WithBackend(p Physics) Option {
	return func(o *options) { o.physics = p }
}

// New validates settings and builds an empty simulation.
func New(settings Settings, opts ...Option) (*Simulation, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop(), sampleEvery: int64(settings.StepsPerSecond)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.runID == uuid.Nil {
		o.runID = uuid.New()
	}
	logger := o.logger.With(zap.Stringer("run", o.runID), zap.Uint64("seed", settings.Seed))

	registry := ecs.NewEntityRegistry(ecs.WithLogger(logger))
	worldOpts := []WorldOption{WithWorldLogger(logger)}
	if o.physics != nil {
		worldOpts = append(worldOpts, WithPhysics(o.physics))
	}
	world := NewWorld(registry, settings, worldOpts...)

	s := &Simulation{
		RunID:     o.runID,
		Registry:  registry,
		World:     world,
		Scheduler: ecs.NewScheduler(registry, world),
		Trees:     NewTreeSystem(),
		Creatures: NewCreatureSystem(),
		Physics:   NewAreaPhysicsSystem(),
		Census:    NewCensusSystem(o.sampleEvery),
		tally:     Tally{Deaths: make(map[DeathCause]int)},
		logger:    logger,
	}
	for _, sys := range []ecs.System[*World]{s.Trees, s.Creatures, s.Physics, s.Census} {
		if err := s.Scheduler.Register(sys); err != nil {
			return nil, err
		}
	}

	s.Creatures.OnBirth(func(ecs.EntityId) { s.tally.Births++ })
	s.Creatures.OnDeath(func(_ ecs.EntityId, cause DeathCause) { s.tally.Deaths[cause]++ })
	s.Creatures.OnEat(func(_, _ ecs.EntityId) { s.tally.Meals++ })
	s.Trees.OnSpawn(func(ecs.EntityId) { s.tally.TreeSpawns++ })
	s.Trees.OnDeath(func(ecs.EntityId) { s.tally.TreeDeaths++ })
	return s, nil
}

// Populate seeds the initial trees and creatures at random positions.
func (s *Simulation) Populate() error {
	if err := s.Trees.SpawnInitialPopulation(nil); err != nil {
		return fmt.Errorf("seed trees: %w", err)
	}
	if err := s.Creatures.SpawnInitialPopulation(nil); err != nil {
		return fmt.Errorf("seed creatures: %w", err)
	}
	s.seeded()
	return nil
}

// Restore rebuilds the population recorded in snap.
func (s *Simulation) Restore(snap Snapshot) error {
	if err := s.Trees.Restore(snap.Trees); err != nil {
		return err
	}
	if err := s.Creatures.Restore(snap.Creatures); err != nil {
		return err
	}
	s.seeded()
	return nil
}

// seeded logs the starting population and zeroes the spawn counters so the
// tally only covers births during the run.
func (s *Simulation) seeded() {
	s.tally.Births = 0
	s.tally.TreeSpawns = 0
	s.logger.Info("population seeded",
		zap.Int("trees", ecs.StorageOf[Tree](s.Registry).Len()),
		zap.Int("creatures", ecs.StorageOf[Creature](s.Registry).Len()))
}

// Step runs one tick of every system.
func (s *Simulation) Step() error {
	return s.Scheduler.Once(s.World.Settings.Dt())
}

// RunFor advances the simulation by the given simulated duration, stopping
// early when ctx is done.
func (s *Simulation) RunFor(ctx context.Context, seconds float64) error {
	steps := int(math.Round(seconds * float64(s.World.Settings.StepsPerSecond)))
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunRealtime steps once per interval of wall time until ctx is done.
func (s *Simulation) RunRealtime(ctx context.Context, interval time.Duration) error {
	return s.Scheduler.Run(ctx, interval, s.World.Settings.Dt())
}

// Snapshot captures the current layout.
func (s *Simulation) Snapshot() Snapshot {
	return TakeSnapshot(s.Registry, s.RunID, s.World.Settings.Seed)
}

// Tally returns the lifecycle event counts so far.
func (s *Simulation) Tally() Tally {
	t := s.tally
	t.Deaths = make(map[DeathCause]int, len(s.tally.Deaths))
	for k, v := range s.tally.Deaths {
		t.Deaths[k] = v
	}
	return t
}
