package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain isolates tests from any real .strata/config.yaml above the
// package directory and from the user's config directory.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "strata-config-tests-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	oldWD, _ := os.Getwd()
	_ = os.Chdir(tmp)
	_ = os.Setenv("HOME", tmp)
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))

	code := m.Run()

	_ = os.Chdir(oldWD)
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(old)
		ResetForTesting()
	})
	return dir
}

func TestInitializeDefaults(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, Initialize())

	assert.Equal(t, "", ConfigFileUsed())
	s, err := GetSyncSettings()
	require.NoError(t, err)
	assert.Equal(t, "github", s.Tracker)
	assert.Equal(t, 5.0, s.RequestsPerSecond)
	assert.Equal(t, ".specweave/increments", s.IncrementsDir)
	assert.Equal(t, ".specweave/docs/internal/specs", s.LivingDocsDir)
	assert.Equal(t, 50, s.MinContentBytes)
	assert.True(t, s.PropagateAfter)
	assert.True(t, s.StampOrigin)
	assert.True(t, s.ReopenComment)
	assert.Equal(t, 4, s.Parallelism)
	assert.Equal(t, time.Duration(0), s.BatchDelay)
	assert.Empty(t, s.Increments)
}

func TestInitializeFindsProjectConfigUpward(t *testing.T) {
	root := chdirTemp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ProjectDir), 0o755))
	yaml := `tracker: jira
jira.url: https://acme.atlassian.net
sync:
  parallelism: 2
  batch-delay: 250ms
increments:
  - path: .specweave/increments/0001-auth
    issue: "PROJ-1"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectDir, "config.yaml"), []byte(yaml), 0o644))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.Chdir(nested))

	require.NoError(t, Initialize())
	assert.Contains(t, ConfigFileUsed(), filepath.Join(ProjectDir, "config.yaml"))
	assert.Equal(t, "https://acme.atlassian.net", Source{}.GetString("jira.url"))

	s, err := GetSyncSettings()
	require.NoError(t, err)
	assert.Equal(t, "jira", s.Tracker)
	assert.Equal(t, 2, s.Parallelism)
	assert.Equal(t, 250*time.Millisecond, s.BatchDelay)
	require.Len(t, s.Increments, 1)
	assert.Equal(t, "PROJ-1", s.Increments[0].Issue)
}

func TestEnvOverridesConfig(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STRATA_SYNC_PARALLELISM", "8")
	t.Setenv("STRATA_GITHUB_TOKEN", "from-env")
	require.NoError(t, Initialize())

	assert.Equal(t, 8, GetInt(KeyParallelism))
	assert.Equal(t, "from-env", GetString("github.token"))
}

func TestGetSyncSettingsValidation(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, Initialize())

	Set(KeyTracker, "trello")
	_, err := GetSyncSettings()
	assert.Error(t, err)

	Set(KeyTracker, "github")
	Set(KeyParallelism, 0)
	_, err = GetSyncSettings()
	assert.Error(t, err)
}

func TestAccessorsBeforeInitialize(t *testing.T) {
	ResetForTesting()
	assert.Equal(t, "", GetString(KeyTracker))
	assert.False(t, GetBool(KeyStampOrigin))
	assert.Equal(t, 0, GetInt(KeyParallelism))
	assert.Nil(t, AllKeys())
}

func TestUpdateYamlKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		value   string
		want    string
	}{
		{"append", "tracker: github", "github.owner", "acme", "tracker: github\n\ngithub.owner: acme"},
		{"replace", "github.owner: old\nother: 1", "github.owner", "new", "github.owner: new\nother: 1"},
		{"uncomment", "# sync.parallelism: 4", "sync.parallelism", "2", "sync.parallelism: 2"},
		{"quote", "", "jira.url", "https://x", `jira.url: "https://x"`},
		{"bool", "", "sync.stamp-origin", "FALSE", "sync.stamp-origin: false"},
		{"duration", "", "sync.batch-delay", "30s", "sync.batch-delay: 30s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, updateYamlKey(tt.content, tt.key, tt.value))
		})
	}
}

func TestSetYamlConfigCreatesFile(t *testing.T) {
	root := chdirTemp(t)

	path, err := SetYamlConfig("github.repo", "widgets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ProjectDir, "config.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "github.repo: widgets\n", string(data))

	require.NoError(t, Initialize())
	assert.Equal(t, "widgets", GetString("github.repo"))
}
