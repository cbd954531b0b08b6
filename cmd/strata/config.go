package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/strata/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage configuration settings",
	Long: `Manage strata configuration.

Settings live in .strata/config.yaml (found by walking up from the working
directory) or ~/.config/strata/config.yaml. Every key can be overridden from
the environment: sync.batch-delay becomes STRATA_SYNC_BATCH_DELAY.

Common keys:
  tracker                             github or jira
  github.token, github.owner, github.repo
  jira.url, jira.username, jira.api-token
  tracker-limits.requests-per-second  client-side rate limit
  increments-dir, living-docs-dir     layout of the project
  sync.propagate-after-pull           propagate ACs at the end of a pull
  sync.stamp-origin                   add Origin badges to living docs
  sync.reopen-comment                 comment on the issue when reopening

Examples:
  strata config set tracker jira
  strata config set jira.url "https://company.atlassian.net"
  strata config get sync.parallelism
  strata config list`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.yaml",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		path, err := config.SetYamlConfig(key, value)
		if err != nil {
			return fmt.Errorf("error setting config: %w", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value, "location": path})
		} else {
			fmt.Printf("Set %s = %s (in %s)\n", key, value, path)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		key := args[0]
		value := config.GetString(key)
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", key)
			return
		}
		fmt.Println(value)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Run: func(_ *cobra.Command, _ []string) {
		keys := config.AllKeys()
		sort.Strings(keys)

		values := make(map[string]string, len(keys))
		for _, k := range keys {
			values[k] = redact(k, config.GetString(k))
		}
		if jsonOutput {
			outputJSON(values)
			return
		}
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Printf("# %s\n", used)
		}
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, values[k])
		}
	},
}

// redact hides credentials in listings.
func redact(key, value string) string {
	lower := strings.ToLower(key)
	if value != "" && (strings.Contains(lower, "token") || strings.Contains(lower, "password")) {
		return "********"
	}
	return value
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
