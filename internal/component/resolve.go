// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package component

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Ext is the extension of component files.
const Ext = ".html"

// Normalize returns the canonical form of a component name: back-slashes
// become forward slashes and surrounding whitespace is removed.
func Normalize(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
}

type pathKey struct {
	dir  string // directory of the including component, empty for pages
	name string
}

type pathEntry struct {
	path string
	ok   bool
}

// Resolver maps component names to files under a components root. Both hits
// and misses are memoized until Reset is called.
type Resolver struct {
	root string

	mu    sync.RWMutex
	paths map[pathKey]pathEntry
	group singleflight.Group

	lookups atomic.Int64 // filesystem stats, used in tests
}

// NewResolver returns a Resolver for components stored under root.
func NewResolver(root string) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{
		root:  root,
		paths: make(map[pathKey]pathEntry),
	}
}

// Root returns the absolute components root.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the absolute path of the component name as seen from the
// component directory dir. An empty dir means the lookup comes from a page.
//
// Names starting with a slash are anchored at the components root. Other
// names are relative to dir, or to the root when dir is empty. If no file
// matches exactly, the whole components tree is searched for a file whose
// stem equals the last element of name, ignoring case.
func (r *Resolver) Resolve(dir, name string) (string, bool) {
	key := pathKey{dir: dir, name: Normalize(name)}
	if e, ok := r.cached(key); ok {
		return e.path, e.ok
	}

	v, _, _ := r.group.Do(key.dir+"\x00"+key.name, func() (any, error) {
		if e, ok := r.cached(key); ok {
			return e, nil
		}
		e := r.lookup(key)

		r.mu.Lock()
		defer r.mu.Unlock()
		// Entries are write-once: a concurrent Reset may have raced us,
		// but an existing entry is never replaced.
		if prev, ok := r.paths[key]; ok {
			return prev, nil
		}
		r.paths[key] = e
		return e, nil
	})
	e := v.(pathEntry)
	return e.path, e.ok
}

// Reset forgets every memoized lookup.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = make(map[pathKey]pathEntry)
}

func (r *Resolver) cached(key pathKey) (pathEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.paths[key]
	return e, ok
}

func (r *Resolver) lookup(key pathKey) pathEntry {
	r.lookups.Add(1)

	base, rel := r.root, key.name
	switch {
	case strings.HasPrefix(rel, "/"):
		rel = strings.TrimLeft(rel, "/")
	case key.dir != "":
		base = key.dir
	}
	if rel == "" {
		return pathEntry{}
	}

	exact := filepath.Join(base, filepath.FromSlash(rel)+Ext)
	if fi, err := os.Stat(exact); err == nil && fi.Mode().IsRegular() {
		return pathEntry{path: exact, ok: true}
	}

	if found := r.search(path.Base(rel)); found != "" {
		return pathEntry{path: found, ok: true}
	}
	return pathEntry{}
}

// search walks the components tree in lexical order and returns the first
// component file whose stem matches stem case-insensitively.
func (r *Resolver) search(stem string) string {
	var found string
	filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; a missing root ends the walk.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if !strings.EqualFold(ext, Ext) {
			return nil
		}
		if strings.EqualFold(strings.TrimSuffix(d.Name(), ext), stem) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}
