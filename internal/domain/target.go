package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// WatchTarget is the library being watched, split into its directory and file name.
type WatchTarget struct {
	Path string
	Dir  string
	Name string
}

func NewWatchTarget(path string) (WatchTarget, error) {
	if strings.TrimSpace(path) == "" {
		return WatchTarget{}, &OpError{Op: "domain.watch_target", Kind: KindInvalidTarget, Err: errors.New("library path is required")}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return WatchTarget{}, &OpError{Op: "domain.watch_target", Kind: KindInvalidTarget, Path: path, Err: err}
	}
	name := filepath.Base(abs)
	if name == "." || name == string(filepath.Separator) {
		return WatchTarget{}, &OpError{Op: "domain.watch_target", Kind: KindInvalidTarget, Path: path, Err: errors.New("library path has no file name")}
	}
	return WatchTarget{
		Path: abs,
		Dir:  filepath.Dir(abs),
		Name: name,
	}, nil
}

// StagingPath returns where the loadable copy of the target lives inside scratchDir.
func (t WatchTarget) StagingPath(scratchDir string) string {
	return filepath.Join(scratchDir, t.Name)
}
