package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpErrorWrapUnwrap(t *testing.T) {
	root := errors.New("access denied")
	err := &OpError{Op: "stage.copy", Kind: KindCopyFailed, Path: "/tmp/lib.so", Err: root}

	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is to match cause")
	}
	message := err.Error()
	for _, want := range []string{"stage.copy", "copy_failed", "/tmp/lib.so", "access denied"} {
		if !strings.Contains(message, want) {
			t.Fatalf("expected %q in %q", want, message)
		}
	}
}

func TestIsKindWalksNestedOpErrors(t *testing.T) {
	inner := &OpError{Op: "lockwait.wait", Kind: KindLockRetryExhausted, Err: errors.New("busy")}
	outer := &OpError{Op: "reload.handle", Kind: KindLoadFailed, Err: fmt.Errorf("reload: %w", inner)}

	if !IsKind(outer, KindLoadFailed) {
		t.Fatal("expected outer kind to match")
	}
	if !IsKind(outer, KindLockRetryExhausted) {
		t.Fatal("expected nested kind to match")
	}
	if IsKind(outer, KindUnloadFailed) {
		t.Fatal("did not expect unrelated kind to match")
	}
	if IsKind(errors.New("plain"), KindLoadFailed) {
		t.Fatal("did not expect plain error to match")
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		kind  ErrorKind
		fatal bool
	}{
		{KindCopyFailed, false},
		{KindLoadFailed, false},
		{KindLockRetryExhausted, false},
		{KindCorruptBatch, false},
		{KindUnloadFailed, true},
		{KindWatchSetupFailed, true},
		{KindWatchReadFailed, true},
	}
	for _, tc := range cases {
		err := &OpError{Op: "test", Kind: tc.kind}
		if got := IsFatal(err); got != tc.fatal {
			t.Fatalf("kind %s: expected fatal=%v, got %v", tc.kind, tc.fatal, got)
		}
	}
}

func TestNewWatchTarget(t *testing.T) {
	dir := t.TempDir()
	target, err := NewWatchTarget(filepath.Join(dir, "lib.so"))
	if err != nil {
		t.Fatalf("new watch target: %v", err)
	}
	if target.Dir != dir {
		t.Fatalf("expected dir %q, got %q", dir, target.Dir)
	}
	if target.Name != "lib.so" {
		t.Fatalf("expected name lib.so, got %q", target.Name)
	}
	scratch := filepath.Join(dir, "scratch")
	if got := target.StagingPath(scratch); got != filepath.Join(scratch, "lib.so") {
		t.Fatalf("unexpected staging path %q", got)
	}
}

func TestNewWatchTargetRejectsEmpty(t *testing.T) {
	_, err := NewWatchTarget("  ")
	if !IsKind(err, KindInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}
