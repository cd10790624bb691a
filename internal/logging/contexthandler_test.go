package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/myrjola/repsched/internal/logging"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := logging.WithAttrs(context.Background(), slog.String("trigger", "focus"))
	first := logging.WithAttrs(ctx, slog.Int64("rule_id", 1))
	second := logging.WithAttrs(ctx, slog.Int64("rule_id", 2))

	logger.InfoContext(first, "first")
	logger.InfoContext(second, "second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "trigger=focus rule_id=1") {
		t.Errorf("first line %q is missing context attributes", lines[0])
	}
	if !strings.Contains(lines[1], "trigger=focus rule_id=2") || strings.Contains(lines[1], "rule_id=1") {
		t.Errorf("second line %q leaked attributes from a sibling context", lines[1])
	}
}

func TestAttrs_Empty(t *testing.T) {
	if attrs := logging.Attrs(context.Background()); len(attrs) != 0 {
		t.Errorf("Attrs() = %v, want empty", attrs)
	}
}
