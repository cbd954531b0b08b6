package tracker

import (
	"fmt"
	"os"
	"strings"
)

// ConfigSource provides configuration values by dotted key.
type ConfigSource interface {
	GetString(key string) string
}

// Config gives a tracker adapter access to its own settings.
type Config struct {
	// Prefix is the config key prefix for this tracker (e.g., "github", "jira").
	Prefix string
	Source ConfigSource

	// RequestsPerSecond and Burst bound the adapter's request rate.
	RequestsPerSecond float64
	Burst             int
}

// NewConfig creates a tracker config with the given prefix and source.
func NewConfig(prefix string, source ConfigSource) *Config {
	return &Config{Prefix: prefix, Source: source}
}

// Get looks up prefix.key in the source, falling back to the PREFIX_KEY
// environment variable. Example: "github" + "api-url" reads github.api-url,
// then GITHUB_API_URL.
func (c *Config) Get(key string) string {
	if c.Source != nil {
		if v := c.Source.GetString(c.Prefix + "." + key); v != "" {
			return v
		}
	}
	return os.Getenv(c.envVarName(key))
}

// GetRequired is like Get but returns an error if the value is empty.
func (c *Config) GetRequired(key string) (string, error) {
	if v := c.Get(key); v != "" {
		return v, nil
	}
	fullKey := c.Prefix + "." + key
	return "", fmt.Errorf("%s not configured\nRun: strata config set %s \"VALUE\"\nOr: export %s=VALUE",
		fullKey, fullKey, c.envVarName(key))
}

// envVarName converts a config key to its environment variable name.
func (c *Config) envVarName(key string) string {
	envKey := strings.ToUpper(c.Prefix + "_" + key)
	envKey = strings.ReplaceAll(envKey, ".", "_")
	return strings.ReplaceAll(envKey, "-", "_")
}
