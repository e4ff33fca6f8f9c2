package reload

import (
	"context"

	"hotreload/internal/stage"
	"hotreload/internal/watcher"
)

// Module is the loaded library image. Close releases it.
type Module = stage.Module

// Stager copies the library to its staging path and loads the copy.
type Stager interface {
	StageAndLoad(source, destination string) (Module, error)
}

// Waiter blocks until path is free of exclusive locks.
type Waiter interface {
	Wait(ctx context.Context, path string) error
}

// DirectoryWatch delivers change batches for one directory.
type DirectoryWatch interface {
	ReadChanges(ctx context.Context, buf []byte) (int, error)
	Close() error
}

type WatchOpener interface {
	OpenWatch(dir string) (DirectoryWatch, error)
}

// WatchOpenerFunc adapts a function to WatchOpener.
type WatchOpenerFunc func(dir string) (DirectoryWatch, error)

func (f WatchOpenerFunc) OpenWatch(dir string) (DirectoryWatch, error) {
	return f(dir)
}

func fsnotifyOpener(options watcher.Options) WatchOpener {
	return WatchOpenerFunc(func(dir string) (DirectoryWatch, error) {
		watch, err := watcher.Open(dir, options)
		if err != nil {
			return nil, err
		}
		return watch, nil
	})
}
