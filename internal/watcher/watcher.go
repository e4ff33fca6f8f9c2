package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"github.com/fsnotify/fsnotify"

	"hotreload/internal/changes"
)

const defaultBacklog = 64

// Open starts watching the entries of dir.
func Open(dir string, options Options) (*DirectoryWatch, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := source.Add(dir); err != nil {
		_ = source.Close()
		return nil, err
	}

	watch := newDirectoryWatch(dir, options)
	watch.watcher = source
	watch.startForwarder(source.Events, source.Errors)
	watch.logDebug("watch opened", nil)
	return watch, nil
}

func newDirectoryWatch(dir string, options Options) *DirectoryWatch {
	backlog := options.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &DirectoryWatch{
		dir:    filepath.Clean(dir),
		events: make(chan changes.Record, backlog),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
		logger: options.Logger,
	}
}

// ReadChanges blocks until at least one change is available, then fills buf
// with as many pending changes as fit and returns the number of valid bytes.
// A successful read of zero bytes means changes were dropped: the event
// queue overflowed or a record was larger than buf.
func (w *DirectoryWatch) ReadChanges(ctx context.Context, buf []byte) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	encoder := changes.NewEncoder(buf)

	if w.pending != nil {
		record := *w.pending
		w.pending = nil
		if !encoder.Put(record) {
			w.dropRecord(record, len(buf))
			return 0, nil
		}
	}
	if encoder.Empty() && w.pendingErr != nil {
		err := w.pendingErr
		w.pendingErr = nil
		return w.readFailed(err)
	}

	for encoder.Empty() {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-w.done:
			return 0, ErrClosed
		case err := <-w.errors:
			return w.readFailed(err)
		case record, ok := <-w.events:
			if !ok {
				return 0, ErrClosed
			}
			if !encoder.Put(record) {
				w.dropRecord(record, len(buf))
				return 0, nil
			}
		}
	}

	for {
		select {
		case record, ok := <-w.events:
			if !ok {
				return encoder.Len(), nil
			}
			if !encoder.Put(record) {
				w.pending = &record
				return encoder.Len(), nil
			}
		case err := <-w.errors:
			w.pendingErr = err
			return encoder.Len(), nil
		default:
			return encoder.Len(), nil
		}
	}
}

// readFailed reports an overflowed event queue as an empty batch and any
// other error as is.
func (w *DirectoryWatch) readFailed(err error) (int, error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.logWarn("change queue overflowed; changes dropped", map[string]string{
			"error": err.Error(),
		})
		return 0, nil
	}
	return 0, err
}

func (w *DirectoryWatch) dropRecord(record changes.Record, size int) {
	w.logWarn("change record larger than read buffer; dropped", map[string]string{
		"name":        record.Name,
		"action":      record.Action.String(),
		"record_size": strconv.Itoa(changes.EncodedSize(record)),
		"buffer_size": strconv.Itoa(size),
	})
}

// Close stops the watch. Blocked readers return ErrClosed.
func (w *DirectoryWatch) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
		w.logDebug("watch closed", nil)
	})
	return err
}

func (w *DirectoryWatch) startForwarder(events <-chan fsnotify.Event, errs <-chan error) {
	go func() {
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				record, ok := w.toRecord(event)
				if !ok {
					continue
				}
				select {
				case w.events <- record:
				case <-w.done:
					return
				}
			case err, ok := <-errs:
				if !ok {
					return
				}
				select {
				case w.errors <- err:
				case <-w.done:
					return
				}
			case <-w.done:
				return
			}
		}
	}()
}

// toRecord maps an fsnotify event on a direct child of the watched directory
// to a change record. Attribute-only changes are dropped.
func (w *DirectoryWatch) toRecord(event fsnotify.Event) (changes.Record, bool) {
	name := filepath.Clean(event.Name)
	if filepath.Dir(name) != w.dir {
		return changes.Record{}, false
	}

	var action changes.Action
	switch {
	case event.Has(fsnotify.Create):
		action = changes.Added
	case event.Has(fsnotify.Write):
		action = changes.Modified
	case event.Has(fsnotify.Rename):
		action = changes.RenamedOld
	case event.Has(fsnotify.Remove):
		action = changes.Removed
	default:
		return changes.Record{}, false
	}
	return changes.Record{Action: action, Name: filepath.Base(name)}, true
}

func (w *DirectoryWatch) logWarn(message string, fields map[string]string) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Warn(message, withWatcherFields(w.dir, fields))
}

func (w *DirectoryWatch) logDebug(message string, fields map[string]string) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Debug(message, withWatcherFields(w.dir, fields))
}

func withWatcherFields(dir string, fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+2)
	merged["category"] = "watcher"
	merged["dir"] = dir
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
