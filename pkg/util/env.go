package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv returns the named environment variable, first giving a fallback
// file at $HOME/.config/ally/.env a chance to populate any variables missing
// from the environment. godotenv.Load never overrides variables that are
// already set, so the real environment always wins.
func LoadEnv(name string) (string, error) {
	home, homeErr := os.UserHomeDir()
	var envPath string
	if homeErr == nil && home != "" {
		envPath = filepath.Join(home, ".config", "ally", ".env")
		if info, statErr := os.Stat(envPath); statErr == nil && !info.IsDir() {
			_ = godotenv.Load(envPath)
		}
	}

	if v := os.Getenv(name); v != "" {
		return v, nil
	}

	if envPath == "" {
		return "", fmt.Errorf("environment variable %q not set and home directory unresolved", name)
	}
	return "", fmt.Errorf("environment variable %q not set; attempted to load fallback file %s", name, envPath)
}

// EnvOr returns the named environment variable or def when unset.
func EnvOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// DataDir returns the directory for Ally's durable state (SQLite database,
// logs), honoring ALLY_DATA_DIR and defaulting under the user home.
func DataDir() string {
	if v := os.Getenv("ALLY_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share", "ally")
}
