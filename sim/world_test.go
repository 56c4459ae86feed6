package sim_test

import (
	"testing"

	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/sim"
	"github.com/plus3/ecosim/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldBounds(t *testing.T) {
	w := sim.NewWorld(ecs.NewEntityRegistry(), sim.DefaultSettings())

	assert.True(t, w.IsWithinBounds(spatial.Vec3{X: 0, Z: 50}))
	assert.True(t, w.IsWithinBounds(spatial.Vec3{X: 25, Y: 100, Z: 25}))
	assert.False(t, w.IsWithinBounds(spatial.Vec3{X: -0.1, Z: 25}))
	assert.False(t, w.IsWithinBounds(spatial.Vec3{X: 25, Z: 50.1}))

	for range 100 {
		assert.True(t, w.IsWithinBounds(w.RandomPosition()))
	}
}

func TestRandomDestination(t *testing.T) {
	w := sim.NewWorld(ecs.NewEntityRegistry(), sim.DefaultSettings())

	t.Run("stays in reach and in bounds", func(t *testing.T) {
		from := spatial.Vec3{X: 1, Z: 1}
		for range 100 {
			dest := w.RandomDestination(from, 10)
			assert.True(t, w.IsWithinBounds(dest))
			assert.LessOrEqual(t, dest.DistanceTo(from), 10.0)
		}
	})

	t.Run("gives up outside the world", func(t *testing.T) {
		from := spatial.Vec3{X: -100, Z: -100}
		assert.Equal(t, from, w.RandomDestination(from, 1))
	})
}

func TestNearby(t *testing.T) {
	reg := ecs.NewEntityRegistry()
	w := sim.NewWorld(reg, sim.DefaultSettings())

	spawn := func(pos spatial.Vec3, kind sim.Kind) ecs.EntityId {
		id := reg.CreateEntity()
		physics := sim.NewAreaPhysics(w.Physics, pos, spatial.Sphere{Radius: 1}, spatial.Vec3{})
		physics.AddAwareness(w.Physics, 20, spatial.Vec3{})
		require.NoError(t, ecs.AddComponent(reg, id, physics))
		w.RegisterBody(physics.Body.Handle, id, kind)
		return id
	}

	a := spawn(spatial.Vec3{X: 10, Z: 10}, sim.KindTree)
	b := spawn(spatial.Vec3{X: 12, Z: 10}, sim.KindTree)
	c := spawn(spatial.Vec3{X: 11, Z: 10}, sim.KindCreature)
	far := spawn(spatial.Vec3{X: 40, Z: 40}, sim.KindTree)

	center := spatial.Vec3{X: 10, Z: 10}
	assert.Equal(t, []ecs.EntityId{a, b}, w.Nearby(sim.KindTree, center, 1, 0))
	assert.Equal(t, []ecs.EntityId{b}, w.Nearby(sim.KindTree, center, 1, a))
	assert.Equal(t, []ecs.EntityId{c}, w.Nearby(sim.KindCreature, center, 1, 0))
	assert.NotContains(t, w.Nearby(sim.KindTree, center, 5, 0), far)

	body := ecs.GetComponent[sim.AreaPhysics](reg, b).Body.Handle
	owner, kind, ok := w.OwnerOf(body)
	require.True(t, ok)
	assert.Equal(t, b, owner)
	assert.Equal(t, sim.KindTree, kind)

	reg.DestroyEntity(b)
	_, _, ok = w.OwnerOf(body)
	assert.False(t, ok)
	assert.Equal(t, []ecs.EntityId{a}, w.Nearby(sim.KindTree, center, 1, 0))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "creature", sim.KindCreature.String())
	assert.Equal(t, "tree", sim.KindTree.String())
	assert.Equal(t, "unknown", sim.KindUnknown.String())
}
