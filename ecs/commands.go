package ecs

// Commands buffers structural changes a system plans during its pass.
// Flush applies them once the pass stops iterating component snapshots.
type Commands struct {
	destroys []EntityId
	defers   []func() error
}

// NewCommands creates an empty command buffer.
func NewCommands() *Commands {
	return &Commands{}
}

// Destroy queues an entity destruction.
func (c *Commands) Destroy(id EntityId) {
	c.destroys = append(c.destroys, id)
}

// Defer queues a function, typically an entity spawn.
func (c *Commands) Defer(fn func() error) {
	c.defers = append(c.defers, fn)
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.destroys) + len(c.defers)
}

// Flush destroys queued entities, then runs deferred functions in queue
// order, and resets the buffer. The first deferred error stops the flush;
// remaining commands are discarded.
func (c *Commands) Flush(r *EntityRegistry) error {
	defer func() {
		c.destroys = c.destroys[:0]
		c.defers = c.defers[:0]
	}()

	for _, id := range c.destroys {
		r.DestroyEntity(id)
	}
	for _, fn := range c.defers {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
