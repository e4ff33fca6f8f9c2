package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"hotreload/internal/logging"
)

// notifyShutdown returns a context cancelled by the first interrupt or
// terminate signal. The returned stop func unregisters the handler.
func notifyShutdown(parent context.Context, logger *logging.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	stopWatching := watchShutdownSignals(logger, cancel, signalCh)
	return ctx, func() {
		signal.Stop(signalCh)
		stopWatching()
		cancel()
	}
}

func watchShutdownSignals(logger *logging.Logger, cancel context.CancelFunc, signalCh <-chan os.Signal) func() {
	if signalCh == nil {
		return func() {}
	}

	done := make(chan struct{})
	var received atomic.Int32

	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signalCh:
				if !ok {
					return
				}
				switch received.Add(1) {
				case 1:
					logSignal(logger, "stopping watcher", sig)
					if cancel != nil {
						cancel()
					}
				case 2:
					logSignal(logger, "shutdown already in progress; ignoring signal", sig)
				}
			}
		}
	}()

	var stopped atomic.Bool
	return func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
		}
	}
}

func logSignal(logger *logging.Logger, message string, sig os.Signal) {
	if logger == nil {
		return
	}
	fields := map[string]string{}
	if sig != nil {
		fields["signal"] = sig.String()
	}
	logger.Info(message, fields)
}
