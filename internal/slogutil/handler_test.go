package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fixedTime = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

// handle feeds one record with a fixed timestamp through h.
func handle(t *testing.T, h slog.Handler, level slog.Level, msg string, args ...any) {
	t.Helper()
	r := slog.NewRecord(fixedTime, level, msg, 0)
	r.Add(args...)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestHandler_Line(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		msg   string
		args  []any
		want  string
	}{
		{
			name:  "no attributes",
			level: slog.LevelInfo,
			msg:   "Analysis complete",
			want:  "2025-03-04T10:30:00Z [info] Analysis complete\n",
		},
		{
			name:  "attributes",
			level: slog.LevelWarn,
			msg:   "Skipping input",
			args:  []any{"input", "shop.scip", "files", 3},
			want:  "2025-03-04T10:30:00Z [warn] Skipping input | input=shop.scip files=3\n",
		},
		{
			name:  "quoting",
			level: slog.LevelError,
			msg:   "Load failed",
			args:  []any{"input", "my shop/index.scip", "empty", "", "expr", "a=b"},
			want:  `2025-03-04T10:30:00Z [error] Load failed | input="my shop/index.scip" empty="" expr="a=b"` + "\n",
		},
		{
			name:  "debug and duration",
			level: slog.LevelDebug - 2,
			msg:   "Classified",
			args:  []any{"took", 1500 * time.Millisecond},
			want:  "2025-03-04T10:30:00Z [debug] Classified | took=1.5s\n",
		},
		{
			name:  "inline group",
			level: slog.LevelInfo,
			msg:   "Stats",
			args:  []any{slog.Group("stats", "files", 2, "findings", 1)},
			want:  "2025-03-04T10:30:00Z [info] Stats | stats.files=2 stats.findings=1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handle(t, NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug - 4}), tt.level, tt.msg, tt.args...)
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("line mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandler_ZeroTime(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "started", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[info] started\n" {
		t.Errorf("got %q", got)
	}
}

func TestHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil).
		WithAttrs([]slog.Attr{slog.String("run", "r1")}).
		WithGroup("analysis").
		WithAttrs([]slog.Attr{slog.String("codebase", "shop")})

	handle(t, h, slog.LevelInfo, "Analyzed file", "path", "a.cs")

	want := "2025-03-04T10:30:00Z [info] Analyzed file | run=r1 analysis.codebase=shop analysis.path=a.cs\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("line mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_DerivedShareWriter(t *testing.T) {
	var buf bytes.Buffer
	base := NewHandler(&buf, nil)
	handle(t, base.WithGroup("a"), slog.LevelInfo, "one", "k", 1)
	handle(t, base.WithAttrs([]slog.Attr{slog.Int("n", 2)}), slog.LevelInfo, "two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "one | a.k=1") || !strings.HasSuffix(lines[1], "two | n=2") {
		t.Errorf("lines = %q", lines)
	}
}

func TestHandler_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: &level}))

	logger.Info("hidden")
	level.Set(slog.LevelInfo)
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewLogger_Filters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	var levels []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		levels = append(levels, strings.Fields(line)[1])
	}
	if diff := cmp.Diff([]string{"[warn]", "[error]"}, levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}

	NewDiscardLogger().Error("dropped")
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"silent":  LevelSilent,
		"off":     LevelSilent,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warning", "silent"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("loud") {
		t.Error("ValidLevel(loud) = true")
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{4, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{3, true, LevelSilent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var info, warn bytes.Buffer
	logger := NewTeeLogger(
		NewHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	).With("run", "r1")

	logger.Info("first")
	logger.Warn("second")

	if strings.Count(info.String(), "run=r1") != 2 {
		t.Errorf("info sink = %q", info.String())
	}
	if strings.Contains(warn.String(), "first") || !strings.Contains(warn.String(), "second | run=r1") {
		t.Errorf("warn sink = %q", warn.String())
	}
}
