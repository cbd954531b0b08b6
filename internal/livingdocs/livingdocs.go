// Package livingdocs indexes the living-documentation User Story files that sit
// between an increment and its external issue.
package livingdocs

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/types"
)

// Document is one indexed User Story file.
type Document struct {
	Path      string // joined with the index root
	StoryID   string
	Title     string
	Origin    types.Origin
	IssueRefs []string
	IDs       map[string]bool
}

// Index locates living-doc files by entity id, story id or issue reference.
type Index struct {
	Root string
	docs []*Document
}

// storyFileRe matches file names like "us-001-login.md".
var storyFileRe = regexp.MustCompile(`(?i)^us-?(\d+)`)

// issueKeys are frontmatter keys that link a story file to its external issue.
var issueKeys = []string{"external_issue", "github_issue", "jira_issue", "issue"}

// Load reads every markdown file in fsys. Paths in the index are joined with root.
func Load(fsys fs.FS, root string) (*Index, error) {
	ix := &Index{Root: root}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), ".md") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		ix.docs = append(ix.docs, parseDocument(filepath.Join(root, filepath.FromSlash(p)), string(data)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index living docs in %s: %w", root, err)
	}
	sort.Slice(ix.docs, func(i, j int) bool { return ix.docs[i].Path < ix.docs[j].Path })
	return ix, nil
}

func parseDocument(p, text string) *Document {
	doc := &Document{Path: p, IDs: make(map[string]bool)}

	fm, bodyStart, ok := entity.Frontmatter(text)
	body := text
	if ok {
		body = text[bodyStart:]
		var meta map[string]interface{}
		if err := yaml.Unmarshal([]byte(fm), &meta); err == nil {
			if id, ok := meta["id"]; ok {
				doc.StoryID = entity.NormalizeStoryID(fmt.Sprint(id))
			}
			if title, ok := meta["title"]; ok {
				doc.Title = fmt.Sprint(title)
			}
			for _, key := range issueKeys {
				if v, ok := meta[key]; ok && v != nil {
					doc.IssueRefs = append(doc.IssueRefs, NormalizeIssueRef(fmt.Sprint(v)))
				}
			}
		}
	}

	for _, tok := range entity.Lex(text) {
		switch tok.Kind {
		case entity.TokenChecklist:
			doc.IDs[tok.ID] = true
		case entity.TokenStoryHeading:
			if doc.StoryID == "" {
				doc.StoryID = tok.ID
			}
		}
	}
	if doc.StoryID == "" {
		if m := storyFileRe.FindStringSubmatch(filepath.Base(p)); m != nil {
			doc.StoryID = entity.NormalizeStoryID("US" + m[1])
		}
	}
	if origin, ok := entity.ReadOrigin(text); ok {
		doc.Origin = origin
	}
	if doc.Title == "" {
		doc.Title = ExtractTitle(body)
	}
	return doc
}

// NormalizeIssueRef strips "#" and surrounding space: "#42" and "42" match.
func NormalizeIssueRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}

// Documents returns the indexed documents sorted by path.
func (ix *Index) Documents() []*Document {
	return ix.docs
}

// FindDocumentForEntity returns the file that should hold the entity: the first
// file (by path) whose checklist already lists the id, else, for an AC, the
// file of its User Story.
func (ix *Index) FindDocumentForEntity(kind types.EntityKind, id string) (string, bool) {
	for _, doc := range ix.docs {
		if doc.IDs[id] {
			return doc.Path, true
		}
	}
	if kind == types.KindAC {
		return ix.FindDocumentForStory(entity.StoryFromACID(id))
	}
	return "", false
}

// FindDocumentForStory returns the file describing the User Story.
func (ix *Index) FindDocumentForStory(storyID string) (string, bool) {
	if storyID == "" {
		return "", false
	}
	storyID = entity.NormalizeStoryID(storyID)
	for _, doc := range ix.docs {
		if doc.StoryID == storyID {
			return doc.Path, true
		}
	}
	return "", false
}

// FindDocumentsForIssue returns the files whose frontmatter links to the issue.
func (ix *Index) FindDocumentsForIssue(issueID string) []string {
	ref := NormalizeIssueRef(issueID)
	var out []string
	for _, doc := range ix.docs {
		for _, r := range doc.IssueRefs {
			if r == ref {
				out = append(out, doc.Path)
				break
			}
		}
	}
	return out
}
