package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/plus3/ecscore/ecs"
)

type Report struct {
	// Configuration
	Executor   string
	Frames     int
	Entities   int
	Components int
	Worlds     int

	// Results
	TotalFrames    uint64
	TotalTime      time.Duration
	TickTime       Stats
	Tally          Tally
	Systems        []ecs.SystemStats
	WorldStats     []WorldReport
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

type WorldReport struct {
	Name  string
	Stats *ecs.WorldStats
	// Render is set for sub-worlds only.
	Render *RenderStats
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

// collect snapshots the App's Worlds. It must run before the App is closed.
func (r *Report) collect(app *ecs.App) {
	for i, aw := range app.Worlds() {
		wr := WorldReport{Name: aw.Name, Stats: aw.World.CollectStats()}
		if i > 0 {
			wr.Render, _ = ecs.GetResource[RenderStats](aw.World)
		}
		r.WorldStats = append(r.WorldStats, wr)
		r.Systems = append(r.Systems, aw.Scheduler.Stats().Systems...)
	}
	if tally, ok := ecs.GetResource[Tally](app.Main().World); ok {
		r.Tally = *tally
	}
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# ECS Stress Test Report

## Test Configuration
- **Executor:** {{.Executor}}
- **Frames:** {{.Frames}}
- **Initial Entities:** {{.Entities}}
- **Registered Types:** {{.Components}}
- **Worlds:** {{.Worlds}}

## Performance Results
- **Total Frames:** {{.TotalFrames}}
- **Total Test Time:** {{.TotalTime}}
- **Tick Time (Frame):**
  - **Avg:** {{.TickTime.Avg}}
  - **Min:** {{.TickTime.Min}}
  - **Max:** {{.TickTime.Max}}

## Simulation
- **Spawned:** {{.Tally.Spawned}}
- **Died:** {{.Tally.Died}} (by team: {{join .Tally.ByTeam}})

## Systems
{{range .Systems}}- {{.Phase}}/{{.Name}}: runs={{.ExecutionCount}} avg={{.AvgDuration}} max={{.MaxDuration}}
{{end}}
## Worlds
{{range .WorldStats}}- {{.Name}}: entities={{.Stats.TotalEntityCount}} archetypes={{.Stats.ArchetypeCount}} resources={{.Stats.ResourceCount}} tick={{.Stats.Tick}}{{with .Render}} rendered={{.Frames}} visible={{.LastVisible}}{{end}}
{{end}}
## Memory Usage
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} MB (start) -> {{mb .MemStatsEnd.HeapAlloc}} MB (end) -> delta: {{mb (bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc)}} MB
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} MB (start) -> {{mb .MemStatsEnd.TotalAlloc}} MB (end) -> delta: {{mb (bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc)}} MB
- Sys Memory:     {{mb .MemStatsStart.Sys}} MB (start) -> {{mb .MemStatsEnd.Sys}} MB (end) -> delta: {{mb (bsub .MemStatsEnd.Sys .MemStatsStart.Sys)}} MB
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}

{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{ usub .MemStatsEnd.NumGC .MemStatsStart.NumGC }}
{{end}}
`

	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
		"join": func(counts [4]int) string {
			parts := make([]string, len(counts))
			for i, c := range counts {
				parts[i] = fmt.Sprint(c)
			}
			return strings.Join(parts, "/")
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
