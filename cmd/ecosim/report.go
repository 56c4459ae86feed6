package main

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/plus3/ecosim/ecs"
	"github.com/plus3/ecosim/sim"
)

type Report struct {
	// Configuration
	ConfigPath     string
	Runs           int
	Duration       float64
	StepsPerSecond int
	Realtime       bool

	// Results
	TotalTime     time.Duration
	RunTime       Stats
	Results       []RunResult
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

// RunResult is the outcome of one seeded run.
type RunResult struct {
	RunID    uuid.UUID
	Seed     uint64
	Steps    int64
	WallTime time.Duration

	Initial sim.Census
	Final   sim.Census
	Tally   sim.Tally
	Systems []ecs.SystemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Ecosystem Simulation Report

## Configuration
- **Settings:** {{if .ConfigPath}}{{.ConfigPath}}{{else}}defaults{{end}}
- **Runs:** {{.Runs}}
- **Simulated Duration:** {{.Duration}}s at {{.StepsPerSecond}} steps/s{{if .Realtime}} (real time){{end}}

## Timing
- **Total Wall Time:** {{.TotalTime}}
- **Run Wall Time:**
  - **Avg:** {{.RunTime.Avg}}
  - **Min:** {{.RunTime.Min}}
  - **Max:** {{.RunTime.Max}}
{{range .Results}}
## Run {{.RunID}} (seed {{.Seed}})
- **Steps:** {{.Steps}} in {{.WallTime}}
- **Creatures:** {{.Initial.Creatures}} -> {{.Final.Creatures}} ({{.Final.Juveniles}} juvenile)
- **Trees:** {{.Initial.Trees}} -> {{.Final.Trees}} ({{.Final.Saplings}} saplings, {{.Final.Fruit}} bearing fruit)
- **Births:** {{.Tally.Births}}, **Meals:** {{.Tally.Meals}}, **Tree spawns:** {{.Tally.TreeSpawns}}, **Tree deaths:** {{.Tally.TreeDeaths}}
- **Deaths:** {{.Tally.TotalDeaths}}{{range $cause, $n := .Tally.Deaths}} {{$cause}}={{$n}}{{end}}
- **Final Means:** speed {{f2 .Final.MeanSpeed}}, awareness {{f2 .Final.MeanAwareness}}, energy {{f2 .Final.MeanEnergy}}
- **Genotypes:** {{.Final.Genotypes}}
{{- range .Systems}}
  - {{.Name}}: avg {{.AvgDuration}}, max {{.MaxDuration}} over {{.ExecutionCount}} steps
{{- end}}
{{end}}
## Memory Usage (MB)
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} (start) -> {{mb .MemStatsEnd.HeapAlloc}} (end)
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} (start) -> {{mb .MemStatsEnd.TotalAlloc}} (end)
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
`

	fm := template.FuncMap{
		"mb": func(v uint64) string {
			return fmt.Sprintf("%.2f", float64(v)/1024/1024)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"f2": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
