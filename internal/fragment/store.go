package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fleetsync/internal/template"
	"fleetsync/pkg/logging"
)

// NotFoundError reports a fragment file that a bundle references but the
// fragments directory does not contain.
type NotFoundError struct {
	Fragment string
	Path     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fragment %q not found at %s", e.Fragment, e.Path)
}

// Store loads integration fragments from a directory with one JSON file
// per fragment, addressed by file name. Fragments are opaque JSON trees;
// the store performs lookup and optional placeholder rendering, no other
// logic. Loaded fragments are cached and immutable for the duration of a
// run.
type Store struct {
	dir    string
	vars   map[string]interface{}
	engine *template.Engine
	cache  map[string]map[string]interface{}
}

// NewStore creates a store over the given fragments directory. vars is
// the definition-level variable map used to render {{ placeholder }}
// expressions; it may be nil, in which case fragments containing
// placeholders fail to load.
func NewStore(dir string, vars map[string]interface{}) *Store {
	return &Store{
		dir:    dir,
		vars:   vars,
		engine: template.New(),
		cache:  make(map[string]map[string]interface{}),
	}
}

// Get returns the fragment with the given name. The first lookup reads
// and renders the file; subsequent lookups return the cached document.
// The returned map is shared: callers must treat it as read-only.
func (s *Store) Get(name string) (map[string]interface{}, error) {
	if doc, ok := s.cache[name]; ok {
		return doc, nil
	}

	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Fragment: name, Path: path}
		}
		return nil, fmt.Errorf("reading fragment %q: %w", name, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fragment %q is not valid JSON: %w", name, err)
	}

	rendered, err := s.engine.Replace(doc, s.vars)
	if err != nil {
		return nil, fmt.Errorf("rendering fragment %q: %w", name, err)
	}
	doc = rendered.(map[string]interface{})

	logging.Debug("FragmentStore", "Loaded fragment %s", name)
	s.cache[name] = doc
	return doc, nil
}
