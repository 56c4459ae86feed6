package ecs

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	Ticks           int64
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// Scheduler runs systems once per tick in registration order.
type Scheduler[W any] struct {
	registry    *EntityRegistry
	world       W
	systems     []System[W]
	systemStats []*systemStatsInternal
	ticks       int64
}

// NewScheduler creates a scheduler driving systems against registry and world.
func NewScheduler[W any](registry *EntityRegistry, world W) *Scheduler[W] {
	return &Scheduler[W]{
		registry: registry,
		world:    world,
		systems:  make([]System[W], 0),
	}
}

// Register initializes the system and appends it to the execution order.
func (s *Scheduler[W]) Register(system System[W]) error {
	name := systemName(system)
	if err := system.Initialize(s.registry, s.world); err != nil {
		return fmt.Errorf("initialize %s: %w", name, err)
	}
	s.systems = append(s.systems, system)
	s.systemStats = append(s.systemStats, &systemStatsInternal{
		name:        name,
		minDuration: time.Duration(1<<63 - 1),
	})
	return nil
}

func systemName(system any) string {
	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	return systemType.Name()
}

// Once runs one tick: every system's Update with dt, in order. A system's
// pass completes before the next begins. The first error aborts the tick.
func (s *Scheduler[W]) Once(dt float64) error {
	for i, system := range s.systems {
		start := time.Now()
		err := system.Update(dt)
		duration := time.Since(start)

		stats := s.systemStats[i]
		stats.executionCount++
		stats.lastDuration = duration
		stats.totalDuration += duration

		if duration < stats.minDuration {
			stats.minDuration = duration
		}
		if duration > stats.maxDuration {
			stats.maxDuration = duration
		}

		if err != nil {
			return fmt.Errorf("%s: %w", stats.name, err)
		}
	}
	s.ticks++
	return nil
}

// Steps runs n ticks back to back with a fixed dt.
func (s *Scheduler[W]) Steps(n int, dt float64) error {
	for i := 0; i < n; i++ {
		if err := s.Once(dt); err != nil {
			return err
		}
	}
	return nil
}

// Run executes one fixed-dt tick per interval until the context is cancelled
// or a tick fails. Wall-clock jitter never changes dt.
func (s *Scheduler[W]) Run(ctx context.Context, interval time.Duration, dt float64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Once(dt); err != nil {
				return err
			}
		}
	}
}

// Ticks returns the number of completed ticks.
func (s *Scheduler[W]) Ticks() int64 {
	return s.ticks
}

// Stats returns statistics about system execution.
func (s *Scheduler[W]) Stats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(s.systems),
		Ticks:       s.ticks,
		Systems:     make([]SystemStats, len(s.systemStats)),
	}

	var totalExecs int64
	for i, internal := range s.systemStats {
		avgDuration := time.Duration(0)
		minDuration := internal.minDuration
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		} else {
			minDuration = 0
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			ExecutionCount: internal.executionCount,
			MinDuration:    minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
