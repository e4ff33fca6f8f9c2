//go:build darwin || linux

package dynlib

import "github.com/ebitengine/purego"

func open(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func release(handle uintptr) error {
	return purego.Dlclose(handle)
}
