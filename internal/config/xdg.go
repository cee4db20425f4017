package config

import (
	"os"
	"path/filepath"
)

const appDir = "far-prep"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func DefaultDataDir() string {
	return filepath.Join(XDGDataHome(), appDir)
}

// DefaultConfigPath is where an optional config.yaml is looked up.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "config.yaml")
}

func DefaultCorpusPath() string {
	return filepath.Join(DefaultDataDir(), "questions.json")
}

func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "progress.db")
}

func DefaultProgressFile() string {
	return filepath.Join(DefaultDataDir(), "progress.json")
}
