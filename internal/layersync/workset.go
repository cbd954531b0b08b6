package layersync

import (
	"github.com/steveyegge/strata/internal/docstore"
)

// workset buffers the documents of one run. Every layer reads the buffered
// text, so later phases see earlier edits before anything is written.
type workset struct {
	store  docstore.Store
	loaded map[string]string // as last read from or written to the store
	text   map[string]string
	errs   map[string]error
	order  []string
}

func newWorkset(store docstore.Store) *workset {
	return &workset{
		store:  store,
		loaded: make(map[string]string),
		text:   make(map[string]string),
		errs:   make(map[string]error),
	}
}

// read returns the buffered text of path, loading it on first use.
// Read errors are remembered so a missing file is only looked up once.
func (w *workset) read(path string) (string, error) {
	if t, ok := w.text[path]; ok {
		return t, nil
	}
	if err, ok := w.errs[path]; ok {
		return "", err
	}
	t, err := w.store.ReadText(path)
	if err != nil {
		w.errs[path] = err
		return "", err
	}
	w.loaded[path] = t
	w.text[path] = t
	w.order = append(w.order, path)
	return t, nil
}

// update replaces the buffered text of a previously read path.
func (w *workset) update(path, text string) bool {
	if _, ok := w.text[path]; !ok || w.text[path] == text {
		return false
	}
	w.text[path] = text
	return true
}

// dirty lists modified paths in first-read order.
func (w *workset) dirty() []string {
	var out []string
	for _, p := range w.order {
		if w.text[p] != w.loaded[p] {
			out = append(out, p)
		}
	}
	return out
}

// flush writes modified documents. On a dry run nothing is written but the
// buffer is treated as flushed.
func (w *workset) flush(dryRun bool) (written []string, failed map[string]error) {
	failed = make(map[string]error)
	for _, p := range w.dirty() {
		if !dryRun {
			if err := w.store.WriteText(p, w.text[p]); err != nil {
				failed[p] = err
				w.text[p] = w.loaded[p]
				continue
			}
		}
		w.loaded[p] = w.text[p]
		written = append(written, p)
	}
	return written, failed
}
