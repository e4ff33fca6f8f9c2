//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package lockwait

import "os"

// ProbeShared opens path read-only and closes it again.
func ProbeShared(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	return file.Close()
}

// IsTransient reports whether err means another process is still using the file.
// Without an advisory lock primitive no failure is known to be transient.
func IsTransient(err error) bool {
	return false
}
