// Package testhelpers contains shared test fixtures.
package testhelpers

import (
	"io"
	"strings"
	"sync/atomic"
	"testing"
)

// Writer implements io.Writer by writing to t.Log so that logs are only shown for failed tests.
type Writer struct {
	t    *testing.T
	done atomic.Bool
}

// NewWriter creates a Writer that stops accepting writes once the test has finished.
func NewWriter(t *testing.T) io.Writer {
	w := &Writer{t: t}
	t.Cleanup(func() {
		w.done.Store(true)
	})
	return w
}

// Write implements io.Writer. Writes after the test has completed are dropped since t.Log would panic.
func (w *Writer) Write(p []byte) (int, error) {
	if w.done.Load() {
		return len(p), nil
	}
	if output := strings.TrimSuffix(string(p), "\n"); output != "" {
		w.t.Log(output)
	}
	return len(p), nil
}
