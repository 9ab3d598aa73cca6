// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package component expands component tags into the markup of component files.

A component tag is a self-closing element with a single name attribute:

	<component name="layout/header" />

The name is resolved to layout/header.html under the components directory
(see [Resolver.Resolve] for the lookup rules), its contents are expanded
recursively and the result replaces the tag. Problems never abort rendering:
a component that cannot be found or read, or that includes itself, is
replaced by an HTML comment starting with [DiagnosticPrefix].

Matching is textual. Tags inside attribute values or HTML comments are
expanded too.
*/
package component

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.astrophena.name/base/logger"
)

// DiagnosticPrefix starts every comment the renderer leaves in place of a
// component it could not expand.
const DiagnosticPrefix = "<!-- stitch: "

var tagRe = regexp.MustCompile(`<component\s+name=["']([^"']+)["']\s*/>`)

// Renderer expands component tags. Expansions are shared between all
// pages rendered by the same Renderer until Reset is called. It is safe for
// concurrent use.
type Renderer struct {
	resolver *Resolver
	cache    *Cache
}

// NewRenderer returns a Renderer for components stored under root.
func NewRenderer(root string) *Renderer {
	return &Renderer{
		resolver: NewResolver(root),
		cache:    NewCache(),
	}
}

// Cache returns the expansion cache used by r.
func (r *Renderer) Cache() *Cache { return r.cache }

// Reset clears both the path and the content caches.
func (r *Renderer) Reset() {
	r.resolver.Reset()
	r.cache.Reset()
}

// Render returns content with every component tag expanded. dir is the
// directory relative names are resolved against; pass an empty string when
// rendering a page. Content without tags is returned unchanged.
func (r *Renderer) Render(ctx context.Context, content, dir string) string {
	// Keys are resolved paths of the components being expanded on the
	// current inclusion chain.
	visited := make(map[string]bool)
	s, _ := r.render(ctx, content, dir, visited)
	return s
}

// render reports whether a circular include was cut somewhere in content.
// Such expansions depend on the inclusion chain and are not cached.
func (r *Renderer) render(ctx context.Context, content, dir string, visited map[string]bool) (string, bool) {
	matches := tagRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, false
	}

	var (
		b      strings.Builder
		last   int
		cyclic bool
	)
	b.Grow(len(content))
	for _, m := range matches {
		b.WriteString(content[last:m[0]])
		last = m[1]

		s, c := r.expand(ctx, Normalize(content[m[2]:m[3]]), dir, visited)
		cyclic = cyclic || c
		b.WriteString(s)
	}
	b.WriteString(content[last:])

	return b.String(), cyclic
}

func (r *Renderer) expand(ctx context.Context, name, dir string, visited map[string]bool) (string, bool) {
	path, ok := r.resolver.Resolve(dir, name)
	if !ok {
		logger.Info(ctx, "component not found", slog.String("name", name))
		return diagnostic("component %q not found", name), false
	}

	if visited[path] {
		logger.Info(ctx, "circular component dependency", slog.String("name", name), slog.String("path", path))
		return diagnostic("circular dependency on component %q", name), true
	}

	if s, ok := r.cache.Get(path); ok {
		return s, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		logger.Error(ctx, "failed to read component", slog.String("name", name), slog.Any("err", err))
		return diagnostic("failed to read component %q: %v", name, err), false
	}

	visited[path] = true
	s, cyclic := r.render(ctx, string(b), filepath.Dir(path), visited)
	delete(visited, path)

	if !cyclic {
		r.cache.Put(path, s)
	}
	return s, cyclic
}

func diagnostic(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	// "--" would terminate the comment early.
	msg = strings.ReplaceAll(msg, "--", "- -")
	return DiagnosticPrefix + msg + " -->"
}
