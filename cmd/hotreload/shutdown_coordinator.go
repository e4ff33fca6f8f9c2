package main

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"hotreload/internal/logging"
)

type teardownStep struct {
	name string
	stop func(context.Context) error
}

// teardown runs named steps once, in registration order, and keeps going
// past failures.
type teardown struct {
	logger *logging.Logger
	once   sync.Once
	steps  []teardownStep
}

func newTeardown(logger *logging.Logger) *teardown {
	return &teardown{logger: logger}
}

func (t *teardown) Add(name string, stop func(context.Context) error) {
	if t == nil || stop == nil {
		return
	}
	t.steps = append(t.steps, teardownStep{name: name, stop: stop})
}

func (t *teardown) Run(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var result *multierror.Error
	t.once.Do(func() {
		for _, step := range t.steps {
			if t.logger != nil {
				t.logger.Debug("teardown step", map[string]string{
					"step": step.name,
				})
			}
			if err := step.stop(ctx); err != nil {
				result = multierror.Append(result, err)
				if t.logger != nil {
					t.logger.Warn("teardown step failed", map[string]string{
						"step":  step.name,
						"error": err.Error(),
					})
				}
			}
		}
	})
	return result.ErrorOrNil()
}
