// Package xdg provides helpers to resolve XDG Base Directory paths for rowscope.
// It implements the XDG Base Directory specification for determining the
// locations of the config file and of state such as the shell history.
//
// The package handles fallback to traditional locations when XDG environment
// variables are not set and creates directories with private permissions.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under each XDG base directory.
const AppName = "rowscope"

// ConfigDir returns the XDG config directory for rowscope.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/rowscope when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for rowscope.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/rowscope when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// HistoryFile returns the path of the interactive shell history.
func HistoryFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

func resolve(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
