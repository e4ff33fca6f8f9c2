// Package dynlib loads and unloads native shared libraries.
package dynlib

import (
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("library already released")
	ErrUnsupported = errors.New("dynamic loading is not supported on this platform")
)

// Library is an owned handle to one loaded library image. It must be
// released exactly once with Close.
type Library struct {
	path   string
	handle uintptr
}

// Open loads the library at path into the process.
func Open(path string) (*Library, error) {
	handle, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Library{path: path, handle: handle}, nil
}

// Close releases the library. The handle is cleared before the OS call, so a
// failed or repeated Close never releases the image twice.
func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return ErrClosed
	}
	handle := l.handle
	l.handle = 0
	if err := release(handle); err != nil {
		return fmt.Errorf("unload %s: %w", l.path, err)
	}
	return nil
}
