package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/strata/internal/config"
	"github.com/steveyegge/strata/internal/docstore"
)

func newTestProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"0001-login", "0002-logout", "0010-search"} {
		incDir := filepath.Join(root, "increments", dir)
		require.NoError(t, os.MkdirAll(incDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(incDir, "spec.md"), []byte("# "+dir+"\n"), 0o644))
	}
	return &project{
		settings: config.SyncSettings{
			IncrementsDir: "increments",
			LivingDocsDir: "living",
			Increments: []config.Target{
				{Path: "increments/0002-logout", Issue: "PROJ-2"},
			},
		},
		root:  root,
		store: docstore.NewFS(),
	}
}

func TestResolveIncrement(t *testing.T) {
	p := newTestProject(t)
	base := filepath.Join(p.root, "increments")

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{"full name", "0001-login", filepath.Join(base, "0001-login"), false},
		{"unique prefix", "0002", filepath.Join(base, "0002-logout"), false},
		{"path", filepath.Join(base, "0010-search"), filepath.Join(base, "0010-search"), false},
		{"ambiguous prefix", "000", "", true},
		{"unknown", "0099", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.resolveIncrement(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIssueFor(t *testing.T) {
	p := newTestProject(t)
	base := filepath.Join(p.root, "increments")
	login := filepath.Join(base, "0001-login")
	require.NoError(t, os.WriteFile(filepath.Join(login, "spec.md"),
		[]byte("---\nexternal_issue: \"#42\"\n---\n# Login\n"), 0o644))

	got, err := p.issueFor(login, "")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	got, err = p.issueFor(login, "7")
	require.NoError(t, err)
	assert.Equal(t, "7", got, "explicit issue wins")

	got, err = p.issueFor(filepath.Join(base, "0002-logout"), "")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-2", got, "configured target")

	_, err = p.issueFor(filepath.Join(base, "0010-search"), "")
	assert.Error(t, err)
}

func TestLivingDocsMissing(t *testing.T) {
	p := newTestProject(t)
	assert.Equal(t, "", p.livingDocs())

	require.NoError(t, os.MkdirAll(filepath.Join(p.root, "living"), 0o755))
	assert.Equal(t, filepath.Join(p.root, "living"), p.livingDocs())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "********", redact("github.token", "ghp_secret"))
	assert.Equal(t, "********", redact("jira.api-token", "x"))
	assert.Equal(t, "", redact("github.token", ""))
	assert.Equal(t, "acme", redact("github.owner", "acme"))
}

func TestBulkTargetsFromConfig(t *testing.T) {
	p := newTestProject(t)
	targets, err := bulkTargets(p, true)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, filepath.Join(p.root, "increments", "0002-logout"), targets[0].IncrementPath)
	assert.Equal(t, "PROJ-2", targets[0].IssueID)
}
