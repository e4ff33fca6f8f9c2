// Package reload keeps the freshest build of a native library loaded.
//
// An Orchestrator stages and loads the library once, watches the library's
// directory, and on every change to the library file releases the loaded
// image, waits for the build toolchain to let go of the file, then stages and
// loads the new build. It is driven by a single goroutine: Run, HandleBatch,
// HandleRecord and Close must not be called concurrently. Other goroutines
// observe progress through the event bus.
package reload

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"hotreload/internal/changes"
	"hotreload/internal/domain"
	"hotreload/internal/event"
	"hotreload/internal/lockwait"
	"hotreload/internal/logging"
	"hotreload/internal/stage"
	"hotreload/internal/watcher"
)

const DefaultBufferSize = 8192

type Options struct {
	// ScratchDir holds the staged copy. Defaults to os.TempDir().
	ScratchDir string
	// BufferSize is the size of the change batch buffer.
	BufferSize int
	// KeepStaged leaves the staged copy in place on Close.
	KeepStaged bool
	// CoalesceBatch performs at most one reload per change batch.
	CoalesceBatch bool

	Stager  Stager
	Waiter  Waiter
	Watches WatchOpener

	Logger *logging.Logger
	Events *event.Bus[Event]
}

type Orchestrator struct {
	target      domain.WatchTarget
	stagingPath string
	bufferSize  int
	keepStaged  bool
	coalesce    bool

	stager  Stager
	waiter  Waiter
	watches WatchOpener
	logger  *logging.Logger
	events  *event.Bus[Event]

	state       State
	module      Module
	watch       DirectoryWatch
	initialLoad bool
	closed      bool
	metrics     Metrics
}

func New(target domain.WatchTarget, options Options) (*Orchestrator, error) {
	if target.Path == "" || target.Name == "" {
		return nil, &domain.OpError{Op: "reload.new", Kind: domain.KindInvalidTarget, Err: errors.New("watch target is empty")}
	}

	scratchDir := options.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	stagingPath := target.StagingPath(scratchDir)
	if stagingPath == target.Path {
		return nil, &domain.OpError{
			Op:   "reload.new",
			Kind: domain.KindInvalidTarget,
			Path: target.Path,
			Err:  errors.New("scratch directory must differ from the library directory"),
		}
	}

	bufferSize := options.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), logging.LevelInfo, nil)
	}

	stager := options.Stager
	if stager == nil {
		stager = stage.New(nil, nil, logger)
	}
	waiter := options.Waiter
	if waiter == nil {
		waiter = lockwait.New(lockwait.Options{Logger: logger})
	}
	watches := options.Watches
	if watches == nil {
		watches = fsnotifyOpener(watcher.Options{Logger: logger})
	}

	return &Orchestrator{
		target:      target,
		stagingPath: stagingPath,
		bufferSize:  bufferSize,
		keepStaged:  options.KeepStaged,
		coalesce:    options.CoalesceBatch,
		stager:      stager,
		waiter:      waiter,
		watches:     watches,
		logger:      logger,
		events:      options.Events,
		state:       Unloaded,
	}, nil
}

func (o *Orchestrator) State() State {
	return o.state
}

// Module returns the currently loaded image, or nil when unloaded.
func (o *Orchestrator) Module() Module {
	return o.module
}

func (o *Orchestrator) Target() domain.WatchTarget {
	return o.target
}

func (o *Orchestrator) StagingPath() string {
	return o.stagingPath
}

func (o *Orchestrator) Metrics() Metrics {
	return o.metrics
}

// Start performs the initial stage and load, then opens the directory watch.
// A failed initial load is reported and leaves the orchestrator unloaded; a
// failed watch is fatal. Calling Start again after a failed watch retries only
// the watch.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.closed {
		return &domain.OpError{Op: "reload.start", Kind: domain.KindWatchSetupFailed, Path: o.target.Dir, Err: errors.New("orchestrator closed")}
	}
	if o.watch != nil {
		return nil
	}

	if !o.initialLoad {
		o.initialLoad = true
		o.logger.Info("watching library", map[string]string{
			"path":        o.target.Path,
			"staged_path": o.stagingPath,
		})
		o.stageAndLoad(o.logger, "")
	}

	watch, err := o.watches.OpenWatch(o.target.Dir)
	if err != nil {
		opErr := &domain.OpError{Op: "reload.start", Kind: domain.KindWatchSetupFailed, Path: o.target.Dir, Err: err}
		o.logger.Error("failed to watch library directory", map[string]string{
			"dir":   o.target.Dir,
			"error": opErr.Error(),
		})
		return opErr
	}
	o.watch = watch
	return nil
}

// Run starts the orchestrator if needed and processes change batches until
// ctx is cancelled (nil is returned) or a fatal error occurs.
func (o *Orchestrator) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := o.Start(ctx); err != nil {
		return err
	}

	buf := make([]byte, o.bufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := o.watch.ReadChanges(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			opErr := &domain.OpError{Op: "reload.read_changes", Kind: domain.KindWatchReadFailed, Path: o.target.Dir, Err: err}
			o.logger.Error("failed to read changes to directory", map[string]string{
				"dir":   o.target.Dir,
				"error": opErr.Error(),
			})
			return opErr
		}

		if err := o.HandleBatch(ctx, buf, n); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// HandleBatch decodes one change batch and applies each record. A corrupt
// tail is logged and dropped, and an empty batch means the watch dropped
// changes. Only fatal errors and cancellation are returned.
func (o *Orchestrator) HandleBatch(ctx context.Context, buf []byte, n int) error {
	o.metrics.Batches++
	if n <= 0 {
		o.metrics.CorruptBatches++
		o.logger.Warn("change notifications lost; batch discarded", map[string]string{
			"dir": o.target.Dir,
		})
		o.publish(EventTypeCorruptBatch, "", nil)
		return nil
	}

	reloaded := false
	for record, err := range changes.Records(buf, n) {
		if err != nil {
			o.metrics.CorruptBatches++
			o.logger.Warn("discarding corrupt notification batch", map[string]string{
				"dir":   o.target.Dir,
				"bytes": strconv.Itoa(n),
				"error": err.Error(),
			})
			o.publish(EventTypeCorruptBatch, "", err)
			break
		}
		if reloaded && o.coalesce && record.Name == o.target.Name {
			o.logger.Debug("change coalesced", map[string]string{
				"name":   record.Name,
				"action": record.Action.String(),
			})
			continue
		}
		attempted, err := o.HandleRecord(ctx, record)
		if err != nil && (domain.IsFatal(err) || ctx.Err() != nil) {
			return err
		}
		// A failed attempt leaves later matching records in the batch to retry.
		reloaded = reloaded || (attempted && err == nil)
	}
	return nil
}

// HandleRecord reloads the library when record names the watched file and
// reports whether a reload was attempted. Unrelated records have no effect.
// Non-fatal failures leave the orchestrator unloaded and are returned for
// inspection; fatal ones satisfy domain.IsFatal.
func (o *Orchestrator) HandleRecord(ctx context.Context, record changes.Record) (bool, error) {
	if record.Name != o.target.Name {
		return false, nil
	}
	switch record.Action {
	case changes.Removed, changes.RenamedOld:
		o.logger.Debug("library moved away; waiting for replacement", map[string]string{
			"name":   record.Name,
			"action": record.Action.String(),
		})
		return false, nil
	}

	reloadID := uuid.NewString()
	logger := o.logger.With(map[string]string{"reload_id": reloadID})
	logger.Info("library modified", map[string]string{
		"path":   o.target.Path,
		"action": record.Action.String(),
	})
	o.metrics.ReloadAttempts++

	if o.module != nil {
		module := o.module
		o.module = nil
		if err := module.Close(); err != nil {
			o.metrics.Failures++
			opErr := &domain.OpError{Op: "reload.unload", Kind: domain.KindUnloadFailed, Path: o.stagingPath, Err: err}
			logger.Error("failed to free library", map[string]string{
				"staged_path": o.stagingPath,
				"error":       opErr.Error(),
			})
			o.setState(Unloaded, reloadID, opErr)
			return true, opErr
		}
		logger.Info("library unloaded", map[string]string{
			"staged_path": o.stagingPath,
		})
	}
	o.setState(Reloading, reloadID, nil)

	if err := o.waiter.Wait(ctx, o.target.Path); err != nil {
		o.metrics.Failures++
		logger.Warn("library not accessible; waiting for next rebuild", map[string]string{
			"path":  o.target.Path,
			"error": err.Error(),
		})
		o.setState(Unloaded, reloadID, err)
		return true, err
	}

	if err := o.stageAndLoad(logger, reloadID); err != nil {
		return true, err
	}
	o.metrics.Reloads++
	return true, nil
}

func (o *Orchestrator) stageAndLoad(logger *logging.Logger, reloadID string) error {
	module, err := o.stager.StageAndLoad(o.target.Path, o.stagingPath)
	if err != nil {
		o.metrics.Failures++
		logger.Warn("library unavailable until next rebuild", map[string]string{
			"path":  o.target.Path,
			"error": err.Error(),
		})
		o.setState(Unloaded, reloadID, err)
		return err
	}
	o.module = module
	o.setState(Loaded, reloadID, nil)
	return nil
}

// Close releases the loaded image and the directory watch and removes the
// staged copy unless KeepStaged was set. It is safe to call more than once.
func (o *Orchestrator) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	var result *multierror.Error
	if o.module != nil {
		module := o.module
		o.module = nil
		if err := module.Close(); err != nil {
			result = multierror.Append(result, &domain.OpError{Op: "reload.close", Kind: domain.KindUnloadFailed, Path: o.stagingPath, Err: err})
		}
		o.setState(Unloaded, "", nil)
	}
	if o.watch != nil {
		watch := o.watch
		o.watch = nil
		if err := watch.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if !o.keepStaged {
		if err := os.Remove(o.stagingPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}

	o.logger.Info("stopped watching library", map[string]string{
		"path":     o.target.Path,
		"reloads":  strconv.FormatUint(o.metrics.Reloads, 10),
		"failures": strconv.FormatUint(o.metrics.Failures, 10),
	})
	return result.ErrorOrNil()
}

func (o *Orchestrator) setState(state State, reloadID string, err error) {
	o.state = state
	var eventType string
	switch state {
	case Loaded:
		eventType = EventTypeLoaded
	case Reloading:
		eventType = EventTypeReloading
	default:
		eventType = EventTypeUnloaded
		if err != nil {
			eventType = EventTypeReloadFailed
		}
	}
	o.publish(eventType, reloadID, err)
}

func (o *Orchestrator) publish(eventType, reloadID string, err error) {
	if o.events == nil {
		return
	}
	o.events.Publish(Event{
		EventType: eventType,
		State:     o.state,
		Path:      o.target.Path,
		ReloadID:  reloadID,
		Err:       err,
		Timestamp: time.Now().UTC(),
	})
}
