package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestCurrent(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version = "1.2.3"
	GitCommit = "abc123def456"
	info := Current()
	if info.Version != "1.2.3" || info.GitCommit != "abc123def456" {
		t.Fatalf("info %+v", info)
	}
	if info.GoVersion == "" {
		t.Errorf("go version should be set")
	}
}

func TestColored(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	tests := []string{"0.1.0-dev", "1.2.3", "1.2.3-rc.1+build.123", "nightly"}
	for _, v := range tests {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}
