// Package increment knows the on-disk layout of an increment folder.
package increment

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/types"
)

// File names inside an increment folder.
const (
	SpecFile     = "spec.md"
	TasksFile    = "tasks.md"
	MetadataFile = "metadata.json"
)

// Reader is the document access increments need.
type Reader interface {
	ReadText(path string) (string, error)
	Exists(path string) bool
}

// SpecPath returns the spec file of the increment at dir.
func SpecPath(dir string) string { return filepath.Join(dir, SpecFile) }

// TasksPath returns the task file of the increment at dir.
func TasksPath(dir string) string { return filepath.Join(dir, TasksFile) }

// MetadataPath returns the metadata file of the increment at dir.
func MetadataPath(dir string) string { return filepath.Join(dir, MetadataFile) }

// Meta is the increment-level metadata found in spec frontmatter or metadata.json.
type Meta struct {
	ID     string
	Title  string
	Status types.IncrementStatus
	Issue  string
}

var issueKeys = []string{"external_issue", "github_issue", "jira_issue", "issue"}

func decodeMeta(raw string, into *Meta) error {
	var m map[string]interface{}
	// metadata.json is valid YAML, so one decoder covers both sources.
	if err := yaml.Unmarshal([]byte(raw), &m); err != nil {
		return err
	}
	str := func(key string) string {
		if v, ok := m[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}
	if into.ID == "" {
		into.ID = str("id")
	}
	if into.Title == "" {
		into.Title = str("title")
	}
	if into.Status == "" {
		if s := str("status"); s != "" {
			into.Status = types.NormalizeIncrementStatus(s)
		}
	}
	if into.Issue == "" {
		for _, key := range issueKeys {
			if v := str(key); v != "" {
				into.Issue = strings.TrimPrefix(v, "#")
				break
			}
		}
		if gh, ok := m["github"].(map[string]interface{}); ok && into.Issue == "" {
			if v, ok := gh["issue"]; ok {
				into.Issue = fmt.Sprint(v)
			}
		}
	}
	return nil
}

// ReadMeta merges spec frontmatter with metadata.json; the spec wins per field.
// Missing sources are not an error.
func ReadMeta(r Reader, dir string) (Meta, error) {
	var meta Meta
	spec, err := r.ReadText(SpecPath(dir))
	if err == nil {
		if fm, _, ok := entity.Frontmatter(spec); ok {
			if err := decodeMeta(fm, &meta); err != nil {
				return meta, fmt.Errorf("invalid frontmatter in %s: %w", SpecPath(dir), err)
			}
		}
	}
	if r.Exists(MetadataPath(dir)) {
		raw, err := r.ReadText(MetadataPath(dir))
		if err != nil {
			return meta, err
		}
		if err := decodeMeta(raw, &meta); err != nil {
			return meta, fmt.Errorf("invalid %s: %w", MetadataPath(dir), err)
		}
	}
	if meta.ID == "" {
		meta.ID = filepath.Base(dir)
	}
	return meta, nil
}

// SetStatus rewrites the status key of the spec frontmatter, adding
// frontmatter when the spec has none.
func SetStatus(spec string, status types.IncrementStatus) (string, bool) {
	fm, bodyStart, ok := entity.Frontmatter(spec)
	if !ok {
		return "---\nstatus: " + string(status) + "\n---\n" + spec, true
	}
	lines := strings.Split(strings.TrimSuffix(fm, "\n"), "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, "status:") {
			next := "status: " + string(status)
			if line == next {
				return spec, false
			}
			lines[i] = next
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, "status: "+string(status))
	}
	return "---\n" + strings.Join(lines, "\n") + "\n---\n" + spec[bodyStart:], true
}

// Discover lists increment folders under fsys (directories containing a spec file).
// Paths are joined with root.
func Discover(fsys fs.FS, root string) ([]string, error) {
	var dirs []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && path.Base(p) == SpecFile {
			dirs = append(dirs, filepath.Join(root, filepath.FromSlash(path.Dir(p))))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover increments in %s: %w", root, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}
