package sim

import (
	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/genetics"
	"github.com/plus3/ecosim/spatial"
)

// DefaultDamping is the per-step velocity retention of new physics bodies.
const DefaultDamping = 0.99

// angularEpsilon is the squared angular speed below which rotation is skipped.
const angularEpsilon = 0.001

// Area is one backend area attached to a physics component, placed at Offset
// in the parent's frame. The zero Area holds nothing.
type Area struct {
	Handle spatial.Handle
	Offset spatial.Vec3

	backend spatial.Backend
}

// NewArea creates the backend area for shape at parent composed with offset.
func NewArea(backend spatial.Backend, shape spatial.Shape, parent spatial.Transform, offset spatial.Vec3) Area {
	a := Area{Offset: offset, backend: backend}
	a.Handle = backend.CreateArea(shape, a.place(parent))
	return a
}

func (a Area) place(parent spatial.Transform) spatial.Transform {
	return parent.Compose(spatial.NewTransform(a.Offset))
}

// Sync pushes the area's placement under parent to the backend.
func (a Area) Sync(parent spatial.Transform) {
	if a.backend == nil || !a.Handle.IsValid() {
		return
	}
	a.backend.SetTransform(a.Handle, a.place(parent))
}

// CleanUp frees the backend area.
func (a Area) CleanUp() {
	if a.backend == nil || !a.Handle.IsValid() {
		return
	}
	a.backend.Free(a.Handle)
}

// AreaPhysics is the kinematic state of an entity plus the areas that make
// it visible to proximity queries.
type AreaPhysics struct {
	ecs.Owner

	Transform       spatial.Transform
	Velocity        spatial.Vec3
	AngularVelocity spatial.Vec3
	VelocityDamping float64
	AngularDamping  float64

	Body      Area
	Awareness Area
}

// NewAreaPhysics places a body of shape at position. A nil backend yields a
// component with no areas.
func NewAreaPhysics(backend spatial.Backend, position spatial.Vec3, body spatial.Shape, bodyOffset spatial.Vec3) AreaPhysics {
	p := AreaPhysics{
		Transform:       spatial.NewTransform(position),
		VelocityDamping: DefaultDamping,
		AngularDamping:  DefaultDamping,
	}
	if backend != nil && body != nil {
		p.Body = NewArea(backend, body, p.Transform, bodyOffset)
	}
	return p
}

// AddAwareness attaches a sphere of radius used for perception.
func (p *AreaPhysics) AddAwareness(backend spatial.Backend, radius float64, offset spatial.Vec3) {
	p.Awareness = NewArea(backend, spatial.Sphere{Radius: radius}, p.Transform, offset)
}

func (p AreaPhysics) Position() spatial.Vec3 {
	return p.Transform.Origin
}

// SetPosition moves the component without rotating it.
func (p *AreaPhysics) SetPosition(v spatial.Vec3) {
	p.Transform.Origin = v
}

// Integrate advances the state by dt: linear motion with damping, then
// rotation about the angular velocity axis when it is non-negligible.
func (p *AreaPhysics) Integrate(dt float64) {
	p.Transform.Origin = p.Transform.Origin.Add(p.Velocity.Scale(dt))
	p.Velocity = p.Velocity.Scale(p.VelocityDamping)

	if p.AngularVelocity.LengthSquared() > angularEpsilon {
		angle := p.AngularVelocity.Length() * dt
		p.Transform = p.Transform.RotatedLocal(p.AngularVelocity.Normalized(), angle)
	}
	p.AngularVelocity = p.AngularVelocity.Scale(p.AngularDamping)
}

// SyncAreas pushes the current transform to both areas.
func (p AreaPhysics) SyncAreas() {
	p.Body.Sync(p.Transform)
	p.Awareness.Sync(p.Transform)
}

// AccelerateToward steers the velocity toward target. The change per call is
// bounded by maxSpeed*factor and the result by maxSpeed.
func (p *AreaPhysics) AccelerateToward(target spatial.Vec3, maxSpeed, factor float64) {
	var desired spatial.Vec3
	if d := target.Sub(p.Position()); d.LengthSquared() != 0 {
		desired = d.Scale(maxSpeed)
	}

	change := desired.Sub(p.Velocity)
	limit := maxSpeed * factor
	if change.LengthSquared() > limit*limit {
		change = change.Normalized().Scale(limit)
	}

	v := p.Velocity.Add(change)
	if v.LengthSquared() > maxSpeed*maxSpeed {
		v = v.Normalized().Scale(maxSpeed)
	}
	p.Velocity = v
}

func (p AreaPhysics) CleanUp() {
	p.Body.CleanUp()
	p.Awareness.CleanUp()
}

// Creature is the behavioral state of one animal.
type Creature struct {
	ecs.Owner

	Genome *genetics.Genome

	Age             float64
	Energy          float64
	Digesting       float64
	HungerThreshold float64
	EatingTimeLeft  float64
	MatingTimeLeft  float64
	Destination     spatial.Vec3
	Alive           bool
}

// NewCreature creates a living creature with the configured starting energy.
func NewCreature(genome *genetics.Genome, cfg CreatureSettings) Creature {
	return Creature{
		Genome:          genome,
		Energy:          cfg.InitialEnergy,
		HungerThreshold: cfg.HungerThreshold,
		Alive:           true,
	}
}

func (c Creature) MaxSpeed() float64 {
	return genetics.Expressed(c.Genome, TraitMaxSpeed, 0.0)
}

// AdjustedSpeed doubles MaxSpeed for carriers of antagonistic pleiotropy.
func (c Creature) AdjustedSpeed() float64 {
	if t, ok := boolTrait(c.Genome, TraitAntagonisticPleiotropy); ok && t.ExpressedValue() {
		return c.MaxSpeed() * 2
	}
	return c.MaxSpeed()
}

func (c Creature) AwarenessRadius() float64 {
	return genetics.Expressed(c.Genome, TraitAwarenessRadius, 0.0)
}

// Tree is a stationary fruit producer.
type Tree struct {
	ecs.Owner

	Angle               float64
	Age                 float64
	TimeSinceLastSpawn  float64
	HasFruit            bool
	FruitGrowthProgress float64
	Alive               bool
}

// IsMature reports whether the tree has reached maturationTime.
func (t Tree) IsMature(maturationTime float64) bool {
	return t.Age >= maturationTime
}
