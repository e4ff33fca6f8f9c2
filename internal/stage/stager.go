// Package stage copies a library to its staging location and loads the copy.
package stage

import (
	"hotreload/internal/domain"
	"hotreload/internal/dynlib"
	"hotreload/internal/logging"
)

// Module is a loaded library image owned by the caller.
type Module interface {
	Close() error
}

type Copier interface {
	Copy(source, destination string) error
}

type Loader interface {
	Load(path string) (Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (Module, error)

func (f LoaderFunc) Load(path string) (Module, error) {
	return f(path)
}

// DynamicLoader loads libraries through the OS dynamic loader.
var DynamicLoader = LoaderFunc(func(path string) (Module, error) {
	library, err := dynlib.Open(path)
	if err != nil {
		return nil, err
	}
	return library, nil
})

type Stager struct {
	copier Copier
	loader Loader
	logger *logging.Logger
}

// New returns a Stager. Nil collaborators select FileCopier and DynamicLoader.
func New(copier Copier, loader Loader, logger *logging.Logger) *Stager {
	if copier == nil {
		copier = FileCopier{}
	}
	if loader == nil {
		loader = DynamicLoader
	}
	return &Stager{
		copier: copier,
		loader: loader,
		logger: logger,
	}
}

// StageAndLoad copies source over destination and loads destination. The
// source file is only ever read, so the build toolchain can keep replacing it.
func (s *Stager) StageAndLoad(source, destination string) (Module, error) {
	s.logInfo("copying library", map[string]string{
		"path":        source,
		"staged_path": destination,
	})
	if err := s.copier.Copy(source, destination); err != nil {
		opErr := &domain.OpError{Op: "stage.copy", Kind: domain.KindCopyFailed, Path: source, Err: err}
		s.logError("failed to copy library", destination, opErr)
		return nil, opErr
	}

	module, err := s.loader.Load(destination)
	if err != nil {
		opErr := &domain.OpError{Op: "stage.load", Kind: domain.KindLoadFailed, Path: destination, Err: err}
		s.logError("failed to load library", destination, opErr)
		return nil, opErr
	}

	s.logInfo("library loaded", map[string]string{
		"staged_path": destination,
	})
	return module, nil
}

func (s *Stager) logInfo(message string, fields map[string]string) {
	if s.logger == nil {
		return
	}
	s.logger.Info(message, fields)
}

func (s *Stager) logError(message, destination string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error(message, map[string]string{
		"staged_path": destination,
		"error":       err.Error(),
	})
}
