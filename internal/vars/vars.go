// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package vars substitutes variable references in page sources.

A reference looks like this:

	@{var("site.title")}

Variables come from a TOML file (variables.toml by default). A file named
after the build environment next to it (variables.prod.toml for
[env.Prod]) overrides individual values. Dots in a name descend into
nested tables. References to unknown variables are left verbatim.
*/
package vars

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"go.astrophena.name/stitch/internal/env"
)

var refRe = regexp.MustCompile(`@\{var\(\s*["']([^"']+)["']\s*\)\}`)

// Vars is a set of variables. A nil *Vars has no variables.
type Vars struct {
	layers []map[string]any // highest precedence first
}

// New returns Vars backed by the given tables, highest precedence first.
func New(tables ...map[string]any) *Vars {
	return &Vars{layers: tables}
}

// With returns Vars that look up names in table first and then in v.
func (v *Vars) With(table map[string]any) *Vars {
	if len(table) == 0 {
		return v
	}
	layers := []map[string]any{table}
	if v != nil {
		layers = append(layers, v.layers...)
	}
	return &Vars{layers: layers}
}

// Load reads variables from path and from the overlay for e. Missing files
// are not an error.
func Load(path string, e env.Env) (*Vars, error) {
	global, err := decode(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	overlay, err := decode(strings.TrimSuffix(path, ext) + "." + e.String() + ext)
	if err != nil {
		return nil, err
	}
	return New(overlay, global), nil
}

func decode(path string) (map[string]any, error) {
	m := make(map[string]any)
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Get returns the value of the variable name formatted as text.
func (v *Vars) Get(name string) (string, bool) {
	if v == nil {
		return "", false
	}
	keys := strings.Split(name, ".")
	for _, layer := range v.layers {
		if val, ok := lookup(layer, keys); ok {
			return format(val), true
		}
	}
	return "", false
}

func lookup(m map[string]any, keys []string) (any, bool) {
	var cur any = m
	for _, k := range keys {
		t, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = t[k]; !ok {
			return nil, false
		}
	}
	if _, ok := cur.(map[string]any); ok {
		return nil, false
	}
	return cur, true
}

func format(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = format(e)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

// Substitute replaces every reference in s. It returns the names of the
// variables that could not be found, in order of first appearance.
func (v *Vars) Substitute(s string) (string, []string) {
	if !strings.Contains(s, "@{var(") {
		return s, nil
	}
	var (
		missing []string
		seen    = make(map[string]bool)
	)
	out := refRe.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSpace(refRe.FindStringSubmatch(ref)[1])
		if val, ok := v.Get(name); ok {
			return val
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return ref
	})
	return out, missing
}
