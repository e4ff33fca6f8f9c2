//go:build windows

package dynlib

import "golang.org/x/sys/windows"

func open(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, err
	}
	return uintptr(handle), nil
}

func release(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}
