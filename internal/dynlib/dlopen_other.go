//go:build !(darwin || linux || windows)

package dynlib

func open(string) (uintptr, error) {
	return 0, ErrUnsupported
}

func release(uintptr) error {
	return ErrUnsupported
}
