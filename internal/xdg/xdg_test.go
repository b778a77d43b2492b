package xdg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirsHonorEnvironment(t *testing.T) {
	cfgHome := t.TempDir()
	stateHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("XDG_STATE_HOME", stateHome)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(cfgHome, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("config dir mode = %v, want %v", perm, os.FileMode(0o700))
	}

	hist, err := HistoryFile()
	if err != nil {
		t.Fatalf("HistoryFile() error = %v", err)
	}
	if want := filepath.Join(stateHome, AppName, "history"); hist != want {
		t.Errorf("HistoryFile() = %q, want %q", hist, want)
	}
}
