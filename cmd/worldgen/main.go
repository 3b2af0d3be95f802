// Command worldgen drives the terrain engine headlessly: simulated
// observers walk across the world while chunks stream in around them.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"worldgen/internal/config"
	"worldgen/internal/preview"
	"worldgen/internal/telemetry"
	"worldgen/internal/world"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "path to a YAML config (defaults are used when empty)")
		seed        = flag.Int64("seed", 0, "override the configured seed (0 keeps it)")
		ticks       = flag.Int("ticks", 200, "number of ticks to simulate")
		tickRate    = flag.Float64("tick-rate", 20, "ticks per second, 0 runs unthrottled")
		observers   = flag.Int("observers", 1, "number of simulated observers")
		speed       = flag.Float64("speed", 4, "observer speed in blocks per tick")
		report      = flag.Int("report", 20, "log stats every n ticks")
		tracePath   = flag.String("trace", "", "directory for the compressed per-tick trace")
		previewPath = flag.String("preview", "", "write a biome map PNG around the first observer")
		previewSize = flag.Int("preview-size", 256, "preview side length in samples")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, runOptions{
		configPath:  *cfgPath,
		seed:        *seed,
		ticks:       *ticks,
		tickRate:    *tickRate,
		observers:   *observers,
		speed:       *speed,
		reportEvery: *report,
		tracePath:   *tracePath,
		previewPath: *previewPath,
		previewSize: *previewSize,
	}, logger)
	if err != nil {
		logger.Error("worldgen failed", "err", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath  string
	seed        int64
	ticks       int
	tickRate    float64
	observers   int
	speed       float64
	reportEvery int
	tracePath   string
	previewPath string
	previewSize int
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, opts runOptions, logger *slog.Logger) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	engine, err := world.NewEngine(cfg, nil, logger)
	if err != nil {
		return err
	}

	var tracer *telemetry.Tracer
	if opts.tracePath != "" {
		tracer = telemetry.NewTracer(opts.tracePath)
		defer func() {
			if err := tracer.Close(); err != nil {
				logger.Error("closing trace failed", "err", err)
			}
		}()
		logger.Info("tracing ticks", "dir", opts.tracePath, "session", tracer.Session())
	}

	loop := NewLoop(engine, tracer, LoopOptions{
		Observers:   opts.observers,
		Speed:       opts.speed,
		TickRate:    opts.tickRate,
		ReportEvery: opts.reportEvery,
	}, logger)
	if err := loop.Run(ctx, opts.ticks); err != nil {
		return err
	}
	loop.Summary()

	if opts.previewPath != "" {
		center := loop.Observers()[0]
		half := float64(opts.previewSize) / 2
		img, err := preview.Render(engine, preview.Options{
			OriginX:   center.X() - half,
			OriginZ:   center.Z() - half,
			Width:     opts.previewSize,
			Height:    opts.previewSize,
			Step:      1,
			Scale:     2,
			MaxHeight: cfg.World.MaxHeight,
			Legend:    true,
		})
		if err != nil {
			return err
		}
		if err := preview.WritePNG(opts.previewPath, img); err != nil {
			return err
		}
		logger.Info("preview written", "path", opts.previewPath)
	}
	return nil
}

