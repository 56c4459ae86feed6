package spatial

import "fmt"

// Handle identifies an area owned by a Backend. Zero is never issued.
type Handle uint64

func (h Handle) IsValid() bool { return h != 0 }

func (h Handle) String() string { return fmt.Sprintf("area#%d", uint64(h)) }

// Shape is the collision volume of an area.
type Shape interface {
	// BoundingRadius is the radius of a sphere around the shape's origin
	// that contains it.
	BoundingRadius() float64
}

type Sphere struct {
	Radius float64
}

func (s Sphere) BoundingRadius() float64 { return s.Radius }

// Capsule is Y-aligned; Height includes both caps.
type Capsule struct {
	Radius float64
	Height float64
}

func (c Capsule) BoundingRadius() float64 { return max(c.Radius, c.Height/2) }

// Backend owns the physical areas the simulation's components refer to.
type Backend interface {
	CreateArea(shape Shape, t Transform) Handle
	SetTransform(h Handle, t Transform)
	Free(h Handle)
}

// Querier answers proximity queries over a backend's live areas.
type Querier interface {
	// Overlapping returns the handles whose bounding sphere intersects the
	// sphere at center with radius, in ascending handle order.
	Overlapping(center Vec3, radius float64) []Handle
}
