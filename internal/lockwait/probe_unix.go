//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package lockwait

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ProbeShared opens path read-only and takes a non-blocking shared flock, which
// fails while a writer holds an exclusive lock on the file.
func ProbeShared(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fd := int(file.Fd())
	if err := unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return &os.PathError{Op: "flock", Path: path, Err: err}
	}
	return unix.Flock(fd, unix.LOCK_UN)
}

// IsTransient reports whether err means another process is still using the file.
func IsTransient(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}
