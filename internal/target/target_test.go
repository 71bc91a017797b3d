package target

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RejectsEmptyCommand(t *testing.T) {
	if _, err := New(nil, time.Second, discardLogger()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestSupervisor_RunCapturesOutput(t *testing.T) {
	sup, err := New([]string{"echo", "hello"}, time.Second, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	sup.WithOutput(&stdout, io.Discard)

	if err := sup.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout.String() != "hello\n" {
		t.Fatalf("expected captured stdout %q, got %q", "hello\n", stdout.String())
	}
}

func TestSupervisor_RunReturnsErrorOnNonZeroExit(t *testing.T) {
	sup, err := New([]string{"false"}, time.Second, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := sup.Run(context.Background()); err == nil {
		t.Fatal("expected error for a command that exits non-zero")
	}
}

func TestSupervisor_RunStopsOnContextCancel(t *testing.T) {
	sup, err := New([]string{"sleep", "5"}, time.Minute, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sup.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on shutdown-triggered kill, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestSupervisor_RunEnforcesTimeout(t *testing.T) {
	sup, err := New([]string{"sleep", "5"}, 50*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := sup.Run(context.Background()); err != nil {
		t.Fatalf("expected nil error on timeout-triggered kill, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected the subject to be killed near the timeout, took %v", elapsed)
	}
}
