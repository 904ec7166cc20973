package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" {
		t.Error("empty version")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("go version = %q", info.GoVersion)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("platform = %q", info.Platform)
	}
}

func TestLdflagsOverride(t *testing.T) {
	prevVersion, prevCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = prevVersion, prevCommit })

	Version, GitCommit = "v1.2.3", "abc123"
	info := Get()
	if info.Version != "v1.2.3" || info.GitCommit != "abc123" {
		t.Errorf("info = %+v", info)
	}
	if String() != "v1.2.3" {
		t.Errorf("String() = %q", String())
	}
}
