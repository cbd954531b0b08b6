package increment

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/types"
)

func TestReadMeta(t *testing.T) {
	store := docstore.NewMemory(map[string]string{
		"inc/0001-login/spec.md":       "---\nid: 0001-login\nstatus: in-progress\n---\n# Login\n",
		"inc/0001-login/metadata.json": `{"status": "completed", "github": {"issue": 42}, "title": "Login"}`,
	})
	meta, err := ReadMeta(store, "inc/0001-login")
	require.NoError(t, err)
	assert.Equal(t, "0001-login", meta.ID)
	assert.Equal(t, types.IncrementActive, meta.Status, "spec frontmatter wins")
	assert.Equal(t, "Login", meta.Title)
	assert.Equal(t, "42", meta.Issue)
}

func TestReadMetaMissing(t *testing.T) {
	meta, err := ReadMeta(docstore.NewMemory(nil), "inc/0002-x")
	require.NoError(t, err)
	assert.Equal(t, "0002-x", meta.ID)
	assert.Empty(t, meta.Status)
}

func TestSetStatus(t *testing.T) {
	spec := "---\nid: x\nstatus: active\n---\n# Spec\n"
	out, changed := SetStatus(spec, types.IncrementCompleted)
	assert.True(t, changed)
	assert.Equal(t, "---\nid: x\nstatus: completed\n---\n# Spec\n", out)

	_, changed = SetStatus(out, types.IncrementCompleted)
	assert.False(t, changed)

	out, _ = SetStatus("# Bare\n", types.IncrementPaused)
	assert.Equal(t, "---\nstatus: paused\n---\n# Bare\n", out)

	out, _ = SetStatus("---\nid: y\n---\nbody", types.IncrementActive)
	assert.Equal(t, "---\nid: y\nstatus: active\n---\nbody", out)
}

func TestDiscover(t *testing.T) {
	fsys := fstest.MapFS{
		"0001-a/spec.md":  {Data: []byte("x")},
		"0001-a/tasks.md": {Data: []byte("x")},
		"0002-b/spec.md":  {Data: []byte("x")},
		"notes/readme.md": {Data: []byte("x")},
	}
	dirs, err := Discover(fsys, "incs")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("incs", "0001-a"), filepath.Join("incs", "0002-b")}, dirs)
}
