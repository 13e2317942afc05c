package config

import "testing"

// NewBuildInfo returns the linker defaults during normal test runs.
func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()

	if info.Version != "dev" {
		t.Errorf("Version = %q, want %q", info.Version, "dev")
	}
	if info.Commit != "none" {
		t.Errorf("Commit = %q, want %q", info.Commit, "none")
	}
	if info.BuildTime != "unknown" {
		t.Errorf("BuildTime = %q, want %q", info.BuildTime, "unknown")
	}
}
