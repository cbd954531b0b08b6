// Package config loads strata settings from .strata/config.yaml, the user
// config directory and STRATA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steveyegge/strata/internal/debug"
)

// ProjectDir is the per-project config directory name.
const ProjectDir = ".strata"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Project config wins over the user config; the first one found is used.
	if path, err := findProjectConfigYaml(); err == nil {
		v.SetConfigFile(path)
	} else if configDir, err := os.UserConfigDir(); err == nil {
		userPath := filepath.Join(configDir, "strata", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			v.SetConfigFile(userPath)
		}
	}

	// STRATA_GITHUB_TOKEN -> github.token, STRATA_SYNC_BATCH_DELAY -> sync.batch-delay
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	registerDefaults()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		debug.Logf("Debug: loaded config from %s\n", v.ConfigFileUsed())
	}

	return nil
}

// ResetForTesting clears the singleton so tests can re-initialize.
func ResetForTesting() {
	v = nil
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value.
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a value for this process only (used by CLI flags).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllKeys returns every known key, sorted by viper.
func AllKeys() []string {
	if v == nil {
		return nil
	}
	return v.AllKeys()
}

// Source adapts the loaded configuration to tracker.ConfigSource.
type Source struct{}

// GetString implements tracker.ConfigSource.
func (Source) GetString(key string) string { return GetString(key) }

// findProjectConfigYaml walks up from the working directory to find
// .strata/config.yaml.
func findProjectConfigYaml() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		configPath := filepath.Join(dir, ProjectDir, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return "", fmt.Errorf("no %s/config.yaml found", ProjectDir)
}
