package sim

import (
	"math"
	"slices"

	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/genetics"
	"github.com/plus3/ecosim/spatial"
	"go.uber.org/zap"
)

// Kind labels the entity type that owns a body area.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindCreature
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Physics is the backend surface the systems need.
type Physics interface {
	spatial.Backend
	spatial.Querier
}

type bodyOwner struct {
	entity ecs.EntityId
	kind   Kind
}

// World is the shared environment of one simulation: settings, the seeded
// random source, the physics backend and the index from body areas to the
// entities that own them.
type World struct {
	Settings Settings
	Rng      *genetics.Rng
	Physics  Physics
	Logger   *zap.Logger

	registry *ecs.EntityRegistry
	owners   map[spatial.Handle]bodyOwner
	bodies   map[ecs.EntityId]spatial.Handle
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithWorldLogger sets the world's logger.
func WithWorldLogger(logger *zap.Logger) WorldOption {
	return func(w *World) {
		if logger != nil {
			w.Logger = logger
		}
	}
}

// WithPhysics replaces the default in-memory backend.
func WithPhysics(p Physics) WorldOption {
	return func(w *World) {
		w.Physics = p
	}
}

// NewWorld creates the environment for registry. Body ownership is dropped
// automatically when an entity's AreaPhysics is removed.
func NewWorld(registry *ecs.EntityRegistry, settings Settings, opts ...WorldOption) *World {
	w := &World{
		Settings: settings,
		Rng:      genetics.NewRng(settings.Seed),
		Logger:   zap.NewNop(),
		registry: registry,
		owners:   make(map[spatial.Handle]bodyOwner),
		bodies:   make(map[ecs.EntityId]spatial.Handle),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.Physics == nil {
		w.Physics = spatial.NewMemoryBackend(settings.World.CellSize)
	}

	ecs.StorageOf[AreaPhysics](registry).OnRemoved(w.releaseBody)
	return w
}

// Registry returns the registry the world indexes.
func (w *World) Registry() *ecs.EntityRegistry {
	return w.registry
}

// RegisterBody records that body belongs to entity.
func (w *World) RegisterBody(body spatial.Handle, entity ecs.EntityId, kind Kind) {
	w.owners[body] = bodyOwner{entity: entity, kind: kind}
	w.bodies[entity] = body
}

func (w *World) releaseBody(entity ecs.EntityId) {
	if body, ok := w.bodies[entity]; ok {
		delete(w.owners, body)
		delete(w.bodies, entity)
	}
}

// OwnerOf returns the entity and kind behind a body handle.
func (w *World) OwnerOf(body spatial.Handle) (ecs.EntityId, Kind, bool) {
	o, ok := w.owners[body]
	return o.entity, o.kind, ok
}

// Nearby returns live entities of kind whose body overlaps the sphere at
// center, in ascending entity order. exclude is left out.
func (w *World) Nearby(kind Kind, center spatial.Vec3, radius float64, exclude ecs.EntityId) []ecs.EntityId {
	var out []ecs.EntityId
	for _, h := range w.Physics.Overlapping(center, radius) {
		o, ok := w.owners[h]
		if !ok || o.kind != kind || o.entity == exclude {
			continue
		}
		out = append(out, o.entity)
	}
	slices.Sort(out)
	return out
}

// IsWithinBounds reports whether p lies on the world plane.
func (w *World) IsWithinBounds(p spatial.Vec3) bool {
	b := w.Settings.World
	return p.X >= b.MinX && p.X <= b.MaxX && p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// RandomPosition returns a uniform point on the world plane.
func (w *World) RandomPosition() spatial.Vec3 {
	b := w.Settings.World
	return spatial.Vec3{
		X: w.Rng.Range(b.MinX, b.MaxX),
		Z: w.Rng.Range(b.MinZ, b.MaxZ),
	}
}

const maxDestinationAttempts = 100

// RandomDestination picks a point within maxStep of from that lies inside the
// world. After maxDestinationAttempts misses it gives up and returns from.
func (w *World) RandomDestination(from spatial.Vec3, maxStep float64) spatial.Vec3 {
	for range maxDestinationAttempts {
		angle := w.Rng.Float64() * 2 * math.Pi
		dist := w.Rng.Float64() * maxStep
		sin, cos := math.Sincos(angle)
		dest := from.Add(spatial.Vec3{X: sin * dist, Z: cos * dist})
		if w.IsWithinBounds(dest) {
			return dest
		}
	}
	w.Logger.Warn("no valid destination found, staying put",
		zap.Int("attempts", maxDestinationAttempts),
		zap.Float64("x", from.X),
		zap.Float64("z", from.Z))
	return from
}
