package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"hotreload/internal/config"
	"hotreload/internal/domain"
	"hotreload/internal/event"
	"hotreload/internal/lockwait"
	"hotreload/internal/logging"
	"hotreload/internal/reload"
	"hotreload/internal/stage"
	"hotreload/internal/version"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

var (
	configFlag = &cli.PathFlag{
		Name:    "config",
		Usage:   "YAML config file",
		EnvVars: []string{config.ConfigEnvVar},
	}
	scratchDirFlag = &cli.PathFlag{
		Name:    "scratch-dir",
		Usage:   "directory holding the staged copy (default: system temp dir)",
		EnvVars: []string{config.ScratchDirEnvVar},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug, info, warning or error",
		EnvVars: []string{config.LogLevelEnvVar},
	}
	attemptsFlag = &cli.IntFlag{
		Name:  "attempts",
		Usage: "lock probe attempts per reload",
	}
	backoffFlag = &cli.DurationFlag{
		Name:  "backoff",
		Usage: "delay after the first failed lock probe, doubled per attempt",
	}
	keepStagedFlag = &cli.BoolFlag{
		Name:  "keep-staged",
		Usage: "leave the staged copy in the scratch dir on exit",
	}
	noCoalesceFlag = &cli.BoolFlag{
		Name:  "no-coalesce",
		Usage: "reload once per matching change instead of once per batch",
	}
	versionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print version and exit",
	}
)

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:        "hotreload",
		Usage:       "keep the latest build of a shared library loaded",
		ArgsUsage:   "<library-path>",
		HideVersion: true,
		Writer:      stdout,
		ErrWriter:   stderr,

		Flags: []cli.Flag{
			configFlag,
			scratchDirFlag,
			logLevelFlag,
			attemptsFlag,
			backoffFlag,
			keepStagedFlag,
			noCoalesceFlag,
			versionFlag,
		},

		// Exit codes are decided by main.
		ExitErrHandler: func(*cli.Context, error) {},

		Action: func(c *cli.Context) error {
			if c.Bool(versionFlag.Name) {
				fmt.Fprintln(c.App.Writer, version.GetVersionInfo().String())
				return nil
			}

			if c.NArg() != 1 {
				cli.ShowAppHelp(c)
				return cli.Exit("", exitUsage)
			}

			cfg, err := resolveConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}

			if err := runWatcher(c.Context, cfg, c.App.Writer, c.App.ErrWriter); err != nil {
				return cli.Exit(err.Error(), exitFailure)
			}
			return nil
		},
	}
}

// resolveConfig layers defaults, the config file, then flags and env vars.
func resolveConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.Path(configFlag.Name))
	if err != nil {
		return config.Config{}, err
	}

	cfg.LibraryPath = c.Args().First()
	if c.IsSet(scratchDirFlag.Name) {
		cfg.ScratchDir = c.Path(scratchDirFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		level, ok := logging.ParseLevel(c.String(logLevelFlag.Name))
		if !ok {
			return config.Config{}, fmt.Errorf("unknown log level %q", c.String(logLevelFlag.Name))
		}
		cfg.LogLevel = level
	}
	if c.IsSet(attemptsFlag.Name) {
		cfg.MaxAttempts = c.Int(attemptsFlag.Name)
	}
	if c.IsSet(backoffFlag.Name) {
		cfg.InitialBackoff = c.Duration(backoffFlag.Name)
	}
	if c.IsSet(keepStagedFlag.Name) {
		cfg.KeepStaged = c.Bool(keepStagedFlag.Name)
	}
	if c.IsSet(noCoalesceFlag.Name) {
		cfg.CoalesceBatch = !c.Bool(noCoalesceFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runWatcher keeps cfg.LibraryPath loaded until ctx is cancelled, a shutdown
// signal arrives, or a fatal error occurs.
func runWatcher(parent context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), cfg.LogLevel, stderr)

	ctx, stopSignals := notifyShutdown(parent, logger)
	defer stopSignals()

	target, err := domain.NewWatchTarget(cfg.LibraryPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	// The bus outlives ctx so teardown events are still delivered.
	events := event.NewBus[reload.Event](context.Background(), event.BusOptions{
		Name:                 "reload",
		SubscriberBufferSize: 32,
		HistorySize:          64,
	})

	orchestrator, err := reload.New(target, reload.Options{
		ScratchDir:    cfg.ScratchDir,
		BufferSize:    cfg.BufferSize,
		KeepStaged:    cfg.KeepStaged,
		CoalesceBatch: cfg.CoalesceBatch,
		Stager:        stage.New(nil, nil, logger),
		Waiter: lockwait.New(lockwait.Options{
			MaxAttempts:     cfg.MaxAttempts,
			InitialInterval: cfg.InitialBackoff,
			Logger:          logger,
		}),
		Logger: logger,
		Events: events,
	})
	if err != nil {
		events.Close()
		return err
	}

	reported := make(chan struct{})
	updates, _ := events.SubscribeFiltered(func(evt reload.Event) bool {
		return evt.EventType == reload.EventTypeLoaded || evt.EventType == reload.EventTypeReloadFailed
	})
	go func() {
		defer close(reported)
		reportEvents(stdout, updates)
	}()

	cleanup := newTeardown(logger)
	cleanup.Add("orchestrator", func(context.Context) error {
		return orchestrator.Close()
	})
	cleanup.Add("events", func(context.Context) error {
		events.Close()
		<-reported
		return nil
	})

	runErr := orchestrator.Run(ctx)
	if runErr != nil && domain.IsFatal(runErr) {
		logger.Error("watcher stopped", map[string]string{
			"path":  target.Path,
			"error": runErr.Error(),
		})
		for _, evt := range events.DumpHistory() {
			logger.Debug("recent reload event", map[string]string{
				"type":      evt.EventType,
				"state":     evt.State.String(),
				"reload_id": evt.ReloadID,
			})
		}
	}
	if err := cleanup.Run(context.Background()); err != nil && runErr == nil {
		runErr = err
	}

	stats := orchestrator.Metrics()
	delivery := events.Metrics()
	logger.Debug("watch summary", map[string]string{
		"batches":         strconv.FormatUint(stats.Batches, 10),
		"corrupt_batches": strconv.FormatUint(stats.CorruptBatches, 10),
		"reload_attempts": strconv.FormatUint(stats.ReloadAttempts, 10),
		"events":          strconv.FormatInt(delivery.Published, 10),
		"events_dropped":  strconv.FormatInt(delivery.Dropped, 10),
	})
	return runErr
}

// reportEvents prints one status line per load outcome until updates closes.
func reportEvents(out io.Writer, updates <-chan reload.Event) {
	for evt := range updates {
		switch evt.EventType {
		case reload.EventTypeLoaded:
			fmt.Fprintf(out, "loaded %s\n", evt.Path)
		case reload.EventTypeReloadFailed:
			if evt.Err != nil {
				fmt.Fprintf(out, "unloaded %s: %v\n", evt.Path, evt.Err)
			} else {
				fmt.Fprintf(out, "unloaded %s\n", evt.Path)
			}
		}
	}
}
