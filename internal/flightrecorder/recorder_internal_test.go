package flightrecorder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "traces")
	r, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		MinAge:    0,
		MaxBytes:  0,
		Cooldown:  time.Minute,
		Directory: dir,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err = r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { r.Stop(ctx) })
	return r, dir
}

func traceFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read trace directory: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRecorder_Capture(t *testing.T) {
	r, dir := newTestRecorder(t)
	r.now = func() time.Time { return time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC) }

	r.Capture(context.Background(), "slow-pass")

	files := traceFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("expected one trace file, got %v", files)
	}
	if want := "slow-pass-20250610-083000.trace"; files[0] != want {
		t.Errorf("file = %s, want %s", files[0], want)
	}
}

func TestRecorder_Cooldown(t *testing.T) {
	r, dir := newTestRecorder(t)
	now := time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	r.Capture(ctx, "timeout")
	now = now.Add(30 * time.Second)
	r.Capture(ctx, "slow-pass")
	if files := traceFiles(t, dir); len(files) != 1 {
		t.Fatalf("expected cooldown to suppress the second capture, got %v", files)
	}

	now = now.Add(time.Minute)
	r.Capture(ctx, "slow-pass")
	files := traceFiles(t, dir)
	if len(files) != 2 {
		t.Fatalf("expected a capture after the cooldown, got %v", files)
	}
	if !strings.HasPrefix(files[0], "slow-pass-") || !strings.HasPrefix(files[1], "timeout-") {
		t.Errorf("unexpected files %v", files)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.Capture(ctx, "timeout")
	r.Stop(ctx)
}

func TestNew_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Directory: path}); err == nil {
		t.Error("expected an error for a traces path that is a file")
	}
}
