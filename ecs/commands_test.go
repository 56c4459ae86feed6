package ecs_test

import (
	"errors"
	"testing"

	"github.com/plus3/ecosim/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	t.Run("destroys before deferred work", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		doomed := spawn(r, withPosition(r, 1, 1))

		var seen []int
		cmds := ecs.NewCommands()
		cmds.Defer(func() error {
			seen = append(seen, ecs.StorageOf[Position](r).Len())
			return nil
		})
		cmds.Destroy(doomed)
		cmds.Defer(func() error {
			seen = append(seen, 2)
			return nil
		})
		assert.Equal(t, 3, cmds.Len())
		assert.True(t, r.IsAlive(doomed))

		require.NoError(t, cmds.Flush(r))
		assert.Equal(t, []int{0, 2}, seen)
		assert.False(t, r.IsAlive(doomed))
		assert.Zero(t, cmds.Len())
	})

	t.Run("deferred spawn", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		cmds := ecs.NewCommands()
		var spawned ecs.EntityId
		cmds.Defer(func() error {
			spawned = spawn(r, withPosition(r, 3, 4))
			return nil
		})
		assert.Zero(t, r.EntityCount())

		require.NoError(t, cmds.Flush(r))
		assert.Equal(t, 3.0, ecs.GetComponent[Position](r, spawned).X)
	})

	t.Run("first error stops the flush", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		cmds := ecs.NewCommands()
		boom := errors.New("boom")

		ran := 0
		cmds.Defer(func() error { ran++; return boom })
		cmds.Defer(func() error { ran++; return nil })

		assert.ErrorIs(t, cmds.Flush(r), boom)
		assert.Equal(t, 1, ran)
		assert.Zero(t, cmds.Len())

		require.NoError(t, cmds.Flush(r))
		assert.Equal(t, 1, ran)
	})

	t.Run("destroying twice is harmless", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		id := spawn(r, withPosition(r, 0, 0))
		cmds := ecs.NewCommands()
		cmds.Destroy(id)
		cmds.Destroy(id)
		require.NoError(t, cmds.Flush(r))
		assert.Zero(t, r.EntityCount())
	})
}
