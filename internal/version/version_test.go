package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

// stamp pins the version variables and the VCS revision for one test.
func stamp(t *testing.T, version, commit, buildDate, vcs string) {
	t.Helper()
	v, c, d, read := Version, Commit, BuildDate, readBuildInfo
	t.Cleanup(func() { Version, Commit, BuildDate, readBuildInfo = v, c, d, read })

	Version, Commit, BuildDate = version, commit, buildDate
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if vcs == "" {
			return nil, false
		}
		return &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: vcs}}}, true
	}
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		vcs    string
		want   string
	}{
		{"no commit", "unknown", "", "0.9.0"},
		{"empty commit", "", "", "0.9.0"},
		{"commit too short to abbreviate", "1234567", "", "0.9.0"},
		{"ldflags commit", "9f3c2a1b7e", "", "0.9.0 (9f3c2a1)"},
		{"vcs revision", "unknown", "c0ffee42deadbeef", "0.9.0 (c0ffee4)"},
		{"ldflags before vcs", "9f3c2a1b7e", "c0ffee42deadbeef", "0.9.0 (9f3c2a1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, "0.9.0", tt.commit, "unknown", tt.vcs)
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	stamp(t, "0.9.0", "unknown", "2026-02-01", "c0ffee42deadbeef")

	lines := strings.Split(Full(), "\n")
	if len(lines) != 4 {
		t.Fatalf("Full() has %d lines, want 4:\n%s", len(lines), Full())
	}
	want := []string{"unref version 0.9.0", "Commit: c0ffee42deadbeef", "Built: 2026-02-01", "Platform: "}
	for i, prefix := range want {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}
