package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plus3/ecosim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, o.runs)
		assert.Equal(t, 60.0, o.duration)
		assert.Equal(t, "info", o.logLevel)
	})

	t.Run("overrides", func(t *testing.T) {
		o, err := parseFlags([]string{"-seed", "9", "-runs", "4", "-duration", "2.5", "-snapshot", "out.json"})
		require.NoError(t, err)
		assert.Equal(t, uint64(9), o.seed)
		assert.Equal(t, 4, o.runs)
		assert.Equal(t, 2.5, o.duration)
		assert.Equal(t, "out.json", o.snapshot)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		_, err := parseFlags([]string{"-runs", "0"})
		assert.Error(t, err)
		_, err = parseFlags([]string{"-duration", "-1"})
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("info", "json")
	assert.NoError(t, err)
	_, err = newLogger("loud", "json")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 3\ntrees:\n  initial_count: 5\n"), 0o644))

	s, err := loadSettings(options{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s.Seed)
	assert.Equal(t, 5, s.Trees.InitialCount)

	s, err = loadSettings(options{configPath: path, seed: 11})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), s.Seed)
}

func TestSimulate(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.Creatures.InitialCount = 10
	settings.Trees.InitialCount = 5

	result, s, err := simulate(context.Background(), settings, 2, nil, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(120), result.Steps)
	assert.Equal(t, s.RunID, result.RunID)
	assert.Equal(t, 10, result.Initial.Creatures)
	assert.Equal(t, 5, result.Initial.Trees)
	assert.Len(t, result.Systems, 4)

	t.Run("from snapshot", func(t *testing.T) {
		snap := s.Snapshot()
		restored, _, err := simulate(context.Background(), settings, 0.5, &snap, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, len(snap.Creatures), restored.Initial.Creatures)
		assert.Equal(t, len(snap.Trees), restored.Initial.Trees)
		assert.Zero(t, restored.Tally.Births)
	})
}

func TestReport(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.Creatures.InitialCount = 3
	settings.Trees.InitialCount = 2
	result, _, err := simulate(context.Background(), settings, 0.5, nil, nil, zap.NewNop())
	require.NoError(t, err)

	r := &Report{
		Runs:           1,
		Duration:       0.5,
		StepsPerSecond: 60,
		Results:        []RunResult{result},
		RunTime:        Stats{Samples: []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond}},
	}
	r.RunTime.Finalize()
	assert.Equal(t, time.Millisecond, r.RunTime.Min)
	assert.Equal(t, 3*time.Millisecond, r.RunTime.Max)
	assert.Equal(t, 2*time.Millisecond, r.RunTime.Avg)

	var buf bytes.Buffer
	require.NoError(t, r.Generate(&buf))
	out := buf.String()
	assert.Contains(t, out, "# Ecosystem Simulation Report")
	assert.Contains(t, out, "**Settings:** defaults")
	assert.Contains(t, out, result.RunID.String())
	assert.Contains(t, out, "**Steps:** 30")
	assert.Contains(t, out, "CreatureSystem: avg")
}
