package spatial

import (
	"math"
	"slices"

	"github.com/kamstrup/intmap"
)

type memArea struct {
	shape     Shape
	transform Transform
	cell      uint64
}

// MemoryBackend is an in-process Backend that buckets areas into a uniform
// grid over the XZ plane. It is not safe for concurrent use.
type MemoryBackend struct {
	cellSize  float64
	next      Handle
	areas     *intmap.Map[Handle, *memArea]
	cells     *intmap.Map[uint64, []Handle]
	maxRadius float64
}

// NewMemoryBackend creates a backend with the given grid cell edge length.
// Non-positive sizes fall back to 4.
func NewMemoryBackend(cellSize float64) *MemoryBackend {
	if cellSize <= 0 {
		cellSize = 4
	}
	return &MemoryBackend{
		cellSize: cellSize,
		areas:    intmap.New[Handle, *memArea](256),
		cells:    intmap.New[uint64, []Handle](256),
	}
}

func (b *MemoryBackend) cellCoord(v float64) int32 {
	return int32(math.Floor(v / b.cellSize))
}

func cellKey(x, z int32) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(z))
}

func (b *MemoryBackend) cellOf(p Vec3) uint64 {
	return cellKey(b.cellCoord(p.X), b.cellCoord(p.Z))
}

func (b *MemoryBackend) insert(h Handle, cell uint64) {
	list, _ := b.cells.Get(cell)
	b.cells.Put(cell, append(list, h))
}

func (b *MemoryBackend) remove(h Handle, cell uint64) {
	list, ok := b.cells.Get(cell)
	if !ok {
		return
	}
	if i := slices.Index(list, h); i >= 0 {
		last := len(list) - 1
		list[i] = list[last]
		list = list[:last]
	}
	if len(list) == 0 {
		b.cells.Del(cell)
		return
	}
	b.cells.Put(cell, list)
}

func (b *MemoryBackend) CreateArea(shape Shape, t Transform) Handle {
	b.next++
	h := b.next
	a := &memArea{shape: shape, transform: t, cell: b.cellOf(t.Origin)}
	b.areas.Put(h, a)
	b.insert(h, a.cell)
	b.maxRadius = max(b.maxRadius, shape.BoundingRadius())
	return h
}

// SetTransform moves a live area. Unknown handles are ignored.
func (b *MemoryBackend) SetTransform(h Handle, t Transform) {
	a, ok := b.areas.Get(h)
	if !ok {
		return
	}
	a.transform = t
	if cell := b.cellOf(t.Origin); cell != a.cell {
		b.remove(h, a.cell)
		a.cell = cell
		b.insert(h, cell)
	}
}

// Free releases an area. Freeing twice is a no-op.
func (b *MemoryBackend) Free(h Handle) {
	a, ok := b.areas.Get(h)
	if !ok {
		return
	}
	b.remove(h, a.cell)
	b.areas.Del(h)
}

// Len returns the number of live areas.
func (b *MemoryBackend) Len() int {
	return b.areas.Len()
}

// TransformOf returns the current transform of a live area.
func (b *MemoryBackend) TransformOf(h Handle) (Transform, bool) {
	a, ok := b.areas.Get(h)
	if !ok {
		return Transform{}, false
	}
	return a.transform, true
}

func (b *MemoryBackend) Overlapping(center Vec3, radius float64) []Handle {
	reach := radius + b.maxRadius
	x0, x1 := b.cellCoord(center.X-reach), b.cellCoord(center.X+reach)
	z0, z1 := b.cellCoord(center.Z-reach), b.cellCoord(center.Z+reach)

	var out []Handle
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			list, ok := b.cells.Get(cellKey(x, z))
			if !ok {
				continue
			}
			for _, h := range list {
				a, _ := b.areas.Get(h)
				limit := radius + a.shape.BoundingRadius()
				if a.transform.Origin.Sub(center).LengthSquared() <= limit*limit {
					out = append(out, h)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Querier = (*MemoryBackend)(nil)
)
