package watcher

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"

	"hotreload/internal/changes"
	"hotreload/internal/logging"
)

var ErrClosed = errors.New("directory watch closed")

// Options controls watcher behavior.
type Options struct {
	Logger *logging.Logger
	// Backlog is the number of changes buffered between reads.
	Backlog int
}

// DirectoryWatch is the fsnotify-backed watch on one directory.
type DirectoryWatch struct {
	dir       string
	watcher   *fsnotify.Watcher
	events    chan changes.Record
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	logger    *logging.Logger

	pending    *changes.Record
	pendingErr error
}
