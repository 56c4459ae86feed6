package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/plus3/ecosim/observe"
	"github.com/plus3/ecosim/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath  string
	seed        uint64
	runs        int
	duration    float64
	serve       string
	snapshot    string
	restore     string
	logLevel    string
	logFormat   string
	printConfig bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("ecosim", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML settings file. Unset keys keep their defaults.")
	fs.Uint64Var(&o.seed, "seed", 0, "Seed of the first run; later runs use seed+1, seed+2, ... (0 keeps the configured seed).")
	fs.IntVar(&o.runs, "runs", 1, "Number of independent runs executed concurrently.")
	fs.Float64Var(&o.duration, "duration", 60, "Simulated seconds per run.")
	fs.StringVar(&o.serve, "serve", "", "Serve the observer websocket on this address (e.g. :8080) and run in real time.")
	fs.StringVar(&o.snapshot, "snapshot", "", "Write the final layout of the first run to this JSON file.")
	fs.StringVar(&o.restore, "restore", "", "Start every run from the layout in this snapshot file.")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	fs.StringVar(&o.logFormat, "log-format", "console", "Log encoding: console or json.")
	fs.BoolVar(&o.printConfig, "print-config", false, "Print the effective settings as YAML and exit.")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.runs < 1 {
		return o, fmt.Errorf("-runs must be at least 1, got %d", o.runs)
	}
	if o.duration <= 0 {
		return o, fmt.Errorf("-duration must be positive, got %v", o.duration)
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "ecosim:", err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.logLevel, opts.logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ecosim:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("ecosim failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadSettings(opts options) (sim.Settings, error) {
	settings := sim.DefaultSettings()
	if opts.configPath != "" {
		var err error
		if settings, err = sim.LoadSettingsFile(opts.configPath); err != nil {
			return sim.Settings{}, err
		}
	}
	if opts.seed != 0 {
		settings.Seed = opts.seed
	}
	return settings, nil
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	if opts.printConfig {
		return settings.Save(os.Stdout)
	}

	var start *sim.Snapshot
	if opts.restore != "" {
		snap, err := sim.LoadSnapshotFile(opts.restore)
		if err != nil {
			return err
		}
		start = &snap
	}

	var hub *observe.Hub
	if opts.serve != "" {
		hub = observe.NewHub(observe.WithLogger(logger.Named("observe")))
		defer hub.Close()

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: opts.serve, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observer server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("observer hub listening", zap.String("addr", opts.serve), zap.String("path", "/ws"))
	}

	report := &Report{
		ConfigPath:     opts.configPath,
		Runs:           opts.runs,
		Duration:       opts.duration,
		StepsPerSecond: settings.StepsPerSecond,
		Realtime:       hub != nil,
		Results:        make([]RunResult, opts.runs),
		RunTime:        Stats{Samples: make([]time.Duration, 0, opts.runs)},
	}
	runtime.ReadMemStats(&report.MemStatsStart)
	began := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := range opts.runs {
		cfg := settings
		cfg.Seed = settings.Seed + uint64(i)
		g.Go(func() error {
			result, s, err := simulate(gctx, cfg, opts.duration, start, hub, logger)
			report.Results[i] = result
			if err != nil {
				return fmt.Errorf("run %d (seed %d): %w", i, cfg.Seed, err)
			}
			if i == 0 && opts.snapshot != "" {
				if err := s.Snapshot().SaveFile(opts.snapshot); err != nil {
					return err
				}
				logger.Info("snapshot written", zap.String("path", opts.snapshot))
			}
			return nil
		})
	}
	err = g.Wait()

	report.TotalTime = time.Since(began)
	for _, r := range report.Results {
		if r.Steps > 0 {
			report.RunTime.Samples = append(report.RunTime.Samples, r.WallTime)
		}
	}
	report.RunTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	if genErr := report.Generate(os.Stdout); genErr != nil {
		return errors.Join(err, fmt.Errorf("generate report: %w", genErr))
	}
	return err
}

// simulate builds one simulation, seeds it and runs it for seconds of
// simulated time. With a hub it is paced to wall time and mirrored to observers.
func simulate(ctx context.Context, settings sim.Settings, seconds float64, start *sim.Snapshot, hub *observe.Hub, logger *zap.Logger) (RunResult, *sim.Simulation, error) {
	s, err := sim.New(settings, sim.WithLogger(logger))
	if err != nil {
		return RunResult{Seed: settings.Seed}, nil, err
	}
	result := RunResult{RunID: s.RunID, Seed: settings.Seed}

	if start != nil {
		err = s.Restore(*start)
	} else {
		err = s.Populate()
	}
	if err != nil {
		return result, s, err
	}
	result.Initial = sim.TakeCensus(s.Registry, settings)
	if hub != nil {
		hub.Attach(s)
	}

	began := time.Now()
	if hub != nil {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		err = s.RunRealtime(runCtx, time.Second/time.Duration(settings.StepsPerSecond))
		cancel()
	} else {
		err = s.RunFor(ctx, seconds)
	}
	result.WallTime = time.Since(began)

	result.Steps = s.Scheduler.Ticks()
	result.Final = s.Census.Latest()
	result.Tally = s.Tally()
	result.Systems = s.Scheduler.Stats().Systems
	if err != nil && !errors.Is(err, context.Canceled) {
		return result, s, err
	}

	logger.Info("run finished",
		zap.Stringer("run", s.RunID),
		zap.Uint64("seed", settings.Seed),
		zap.Int64("steps", result.Steps),
		zap.Int("creatures", result.Final.Creatures),
		zap.Int("trees", result.Final.Trees))
	return result, s, nil
}
