package docstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "spec.md")
	store := NewFS()

	assert.False(t, store.Exists(path))
	_, err := store.ReadText(path)
	assert.True(t, errors.Is(err, ErrNotFound), "want ErrNotFound, got %v", err)

	require.NoError(t, store.WriteText(path, "- [ ] AC-US1-01: x\n"))
	assert.True(t, store.Exists(path))

	text, err := store.ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "- [ ] AC-US1-01: x\n", text)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	require.NoError(t, store.WriteText(path, "updated"))
	text, _ = store.ReadText(path)
	assert.Equal(t, "updated", text)

	assert.False(t, store.Exists(dir), "directories are not documents")
}

func TestMemory(t *testing.T) {
	m := NewMemory(map[string]string{"inc/spec.md": "a", "docs/us1.md": "b"})
	assert.True(t, m.Exists("inc/./spec.md"))
	require.NoError(t, m.WriteText("inc/tasks.md", "c"))
	assert.Equal(t, 1, m.Writes("inc/tasks.md"))
	assert.Equal(t, []string{"inc/spec.md", "inc/tasks.md"}, m.Paths("inc"))

	_, err := m.ReadText("missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}
