package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies reload failures so callers can decide whether to keep watching.
type ErrorKind string

const (
	KindCopyFailed         ErrorKind = "copy_failed"
	KindLoadFailed         ErrorKind = "load_failed"
	KindUnloadFailed       ErrorKind = "unload_failed"
	KindWatchSetupFailed   ErrorKind = "watch_setup_failed"
	KindWatchReadFailed    ErrorKind = "watch_read_failed"
	KindLockRetryExhausted ErrorKind = "lock_retry_exhausted"
	KindProbeFailed        ErrorKind = "probe_failed"
	KindCorruptBatch       ErrorKind = "corrupt_notification_batch"
	KindInvalidTarget      ErrorKind = "invalid_target"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether any OpError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	for err != nil {
		if !errors.As(err, &oe) {
			return false
		}
		if oe.Kind == kind {
			return true
		}
		err = oe.Err
	}
	return false
}

// IsFatal reports whether the watch loop must stop after err.
func IsFatal(err error) bool {
	return IsKind(err, KindUnloadFailed) ||
		IsKind(err, KindWatchSetupFailed) ||
		IsKind(err, KindWatchReadFailed)
}
