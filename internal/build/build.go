// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package build turns a content tree into a static site.

# Directory Structure

A build reads from three places:

	content     Pages (.html), posts (.md) and assets. Everything is
	            mirrored into the output directory: posts become .html
	            files, assets are copied verbatim.
	components  Reusable fragments included from pages with
	            <component name="..." /> tags.
	output      Where the generated site is written.

# Pipeline

Every file is built independently on a bounded pool of workers. A page is
read, converted from Markdown when it is a post, has its component tags
expanded and its @{var("...")} references substituted, gets SEO metadata
injected when a site configuration is present, and is minified when
requested. A file that fails to build does not stop the others: its error is
collected and reported in a [BatchError] once every file has been handled.

When every file succeeded and a site configuration is present, sitemap.xml,
feed.xml and robots.txt are generated.
*/
package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"go.astrophena.name/stitch/internal/component"
	"go.astrophena.name/stitch/internal/env"
	"go.astrophena.name/stitch/internal/markdown"
	"go.astrophena.name/stitch/internal/minify"
	"go.astrophena.name/stitch/internal/seo"
	"go.astrophena.name/stitch/internal/vars"
)

// Converter converts Markdown posts to HTML.
type Converter interface {
	Convert(src []byte) ([]byte, error)
}

// Injector merges page and site metadata into a built page.
type Injector interface {
	Inject(page []byte, meta *seo.Page, site *seo.Site) ([]byte, error)
}

// Minifier minifies built pages and assets.
type Minifier interface {
	Minify(k minify.Kind, b []byte) ([]byte, error)
}

// Checker inspects a built page before it is minified. src is the source of
// the page and dst the file it is written to.
type Checker interface {
	Check(ctx context.Context, page []byte, src, dst string) error
}

// Generator writes a site-wide file into dst from the list of built pages.
type Generator interface {
	Generate(ctx context.Context, pages []seo.Entry, site *seo.Site, dst string) error
}

// Config represents a build configuration.
type Config struct {
	// Src is the directory where to read content from. If empty, uses the
	// content directory.
	Src string
	// Dst is the directory where to write files. If empty, uses the output
	// directory.
	Dst string
	// Components is the directory components are looked up in. If empty, uses
	// the components directory.
	Components string
	// Env is the environment the site is built for.
	Env env.Env
	// Workers is the number of files built concurrently. If zero, uses
	// GOMAXPROCS.
	Workers int
	// SkipMarkdown determines if .md files should be copied verbatim instead
	// of being converted to pages.
	SkipMarkdown bool
	// Minify determines if pages and assets should be minified.
	Minify bool
	// Clean determines if Dst should be removed before building.
	Clean bool
	// Site holds site-wide SEO metadata. If nil, no metadata is injected and
	// no site-wide files are generated.
	Site *seo.Site
	// SkipSiteFiles determines if sitemap.xml, feed.xml and robots.txt
	// shouldn't be generated.
	SkipSiteFiles bool
	// Vars holds variables substituted into pages.
	Vars *vars.Vars

	// Collaborators. If nil, the implementations from the markdown, seo and
	// minify packages are used.
	Converter  Converter
	Injector   Injector
	Minifier   Minifier
	Generators []Generator
	// Checkers run on every page. If nil, pages are not checked.
	Checkers []Checker
}

func (c *Config) setDefaults() {
	if c.Src == "" {
		c.Src = "content"
	}
	if c.Dst == "" {
		c.Dst = "output"
	}
	if c.Components == "" {
		c.Components = "components"
	}
	if c.Env == "" {
		c.Env = env.Dev
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Converter == nil {
		c.Converter = &markdown.Converter{}
	}
	if c.Injector == nil {
		c.Injector = seo.Injector{}
	}
	if c.Minifier == nil {
		c.Minifier = minify.New()
	}
	if c.Generators == nil {
		c.Generators = []Generator{seo.Sitemap{}, seo.Feed{}, seo.Robots{}}
	}
}

// Output describes a successfully built file.
type Output struct {
	Src     string    // source file
	Dst     string    // written file
	URL     string    // site path of the written file
	Page    *seo.Page // SEO metadata, nil for assets and pages without it
	ModTime time.Time // modification time of the source
	Asset   bool      // copied rather than rendered
	Written bool      // false if Dst already held the same content
}

// Result is the outcome of a build.
type Result struct {
	Outputs []Output     // sorted by source path
	Errors  []*FileError // sorted by source path
}

// Pages returns the built pages as entries for site-wide generators.
func (r *Result) Pages() []seo.Entry {
	var entries []seo.Entry
	for _, o := range r.Outputs {
		if o.Asset {
			continue
		}
		entries = append(entries, seo.Entry{URL: o.URL, ModTime: o.ModTime, Page: o.Page})
	}
	return entries
}

// Builder builds sites. Component lookups and expansions are cached across
// builds until Invalidate is called. Builds must not run concurrently.
type Builder struct {
	c        *Config
	renderer *component.Renderer

	mu      sync.Mutex
	written map[string]uint64 // destination -> xxhash of the last write
}

// New returns a Builder for c. Defaults are filled into c.
func New(c *Config) *Builder {
	if c == nil {
		c = new(Config)
	}
	c.setDefaults()
	return &Builder{
		c:        c,
		renderer: component.NewRenderer(c.Components),
		written:  make(map[string]uint64),
	}
}

// Build builds a site based on the provided [Config] with a fresh [Builder].
func Build(ctx context.Context, c *Config) (*Result, error) {
	return New(c).Build(ctx)
}

// Config returns the configuration of b.
func (b *Builder) Config() *Config { return b.c }

// Invalidate forgets every cached component lookup and expansion. It must
// be called after components change on disk.
func (b *Builder) Invalidate() { b.renderer.Reset() }

type job struct {
	path  string
	info  fs.FileInfo
	asset bool
	post  *post // nil unless a Markdown page with front matter
}

// Build builds every file under the source directory.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	if b.c.Clean {
		if err := os.RemoveAll(b.c.Dst); err != nil {
			return nil, err
		}
		b.mu.Lock()
		clear(b.written)
		b.mu.Unlock()
	}
	if err := os.MkdirAll(b.c.Dst, 0o755); err != nil {
		return nil, err
	}

	jobs, errs, err := b.collect()
	if err != nil {
		return nil, err
	}
	b.prune(ctx, jobs)
	jobs, postErrs := b.loadPosts(jobs)

	var (
		mu  sync.Mutex
		res = &Result{Errors: append(errs, postErrs...)}
	)
	g := new(errgroup.Group)
	g.SetLimit(b.c.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			var (
				out Output
				err error
			)
			if j.asset {
				out, err = b.copyAsset(j)
			} else {
				out, err = b.buildPage(ctx, j)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error(ctx, "failed to build file", slog.String("path", j.path), slog.Any("err", err))
				res.Errors = append(res.Errors, &FileError{Path: j.path, Err: err})
				return nil
			}
			res.Outputs = append(res.Outputs, out)
			return nil
		})
	}
	// Jobs never return errors; failures are collected above.
	g.Wait()

	sort.Slice(res.Outputs, func(i, j int) bool { return res.Outputs[i].Src < res.Outputs[j].Src })
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Path < res.Errors[j].Path })

	logger.Info(ctx, "built site",
		slog.Int("files", len(res.Outputs)),
		slog.Int("failed", len(res.Errors)),
	)
	if len(res.Errors) > 0 {
		return res, &BatchError{Errs: res.Errors}
	}

	if b.c.Site != nil && !b.c.SkipSiteFiles {
		pages := res.Pages()
		for _, gen := range b.c.Generators {
			if err := gen.Generate(ctx, pages, b.c.Site, b.c.Dst); err != nil {
				return res, fmt.Errorf("generating site files: %w", err)
			}
		}
	}

	return res, nil
}

// collect walks the source directory in lexical order. Entries that can't be
// read are reported as errors and skipped. Only a failure to read the source
// directory itself stops the walk.
func (b *Builder) collect() ([]job, []*FileError, error) {
	// The output and components directories may live inside the source
	// directory and must not be built as content.
	skip := make(map[string]bool)
	for _, dir := range []string{b.c.Dst, b.c.Components} {
		if abs, err := filepath.Abs(dir); err == nil {
			skip[abs] = true
		}
	}

	var (
		jobs []job
		errs []*FileError
	)
	err := filepath.WalkDir(b.c.Src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == b.c.Src {
				return err
			}
			errs = append(errs, &FileError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if abs, err := filepath.Abs(path); err == nil && skip[abs] && path != b.c.Src {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnorable(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			errs = append(errs, &FileError{Path: path, Err: err})
			return nil
		}
		jobs = append(jobs, job{path: path, info: info, asset: !b.isPage(path)})
		return nil
	})
	return jobs, errs, err
}

// prune removes files written by earlier builds of b whose sources are no
// longer part of the site.
func (b *Builder) prune(ctx context.Context, jobs []job) {
	keep := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if dst, ok := b.OutputPath(j.path); ok {
			keep[dst] = true
		}
	}

	b.mu.Lock()
	var stale []string
	for dst := range b.written {
		if !keep[dst] {
			stale = append(stale, dst)
			delete(b.written, dst)
		}
	}
	b.mu.Unlock()

	sort.Strings(stale)
	for _, dst := range stale {
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			logger.Error(ctx, "failed to remove stale output", slog.String("path", dst), slog.Any("err", err))
			continue
		}
		logger.Info(ctx, "removed stale output", slog.String("path", dst))
	}
}

func (b *Builder) isPage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return true
	case ".md":
		return !b.c.SkipMarkdown
	}
	return false
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

func isIgnorable(path string) bool {
	// Ignore files that look like Vim backups.
	if strings.HasSuffix(path, "~") {
		return true
	}

	// Ignore .gitignore and macOS metadata files.
	base := filepath.Base(path)
	return base == ".gitignore" || base == ".DS_Store"
}

// OutputPath returns the file that src, a path inside the source
// directory, is built into.
func (b *Builder) OutputPath(src string) (string, bool) {
	rel, err := filepath.Rel(b.c.Src, src)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", false
	}
	if b.isPage(src) && isMarkdown(src) {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
	}
	return filepath.Join(b.c.Dst, rel), true
}

// Remove deletes the file built from src, if any.
func (b *Builder) Remove(src string) error {
	dst, ok := b.OutputPath(src)
	if !ok {
		return nil
	}
	b.mu.Lock()
	delete(b.written, dst)
	b.mu.Unlock()
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// siteURL returns the site path of the output file dst.
func (b *Builder) siteURL(dst string) string {
	rel, err := filepath.Rel(b.c.Dst, dst)
	if err != nil {
		return ""
	}
	u := "/" + filepath.ToSlash(rel)
	if path.Base(u) == "index.html" {
		u = strings.TrimSuffix(u, "index.html")
	}
	return u
}

func (b *Builder) buildPage(ctx context.Context, j job) (Output, error) {
	dst, ok := b.OutputPath(j.path)
	if !ok {
		return Output{}, fmt.Errorf("%s is outside of %s", j.path, b.c.Src)
	}

	var raw []byte
	if j.post != nil {
		raw = j.post.body
	} else {
		var err error
		if raw, err = os.ReadFile(j.path); err != nil {
			return Output{}, err
		}
	}
	content := string(raw)

	v := b.c.Vars
	if j.post != nil {
		v = v.With(j.post.vars)
	}

	var (
		missing []string
		article []byte // post body as HTML, without components
	)
	if isMarkdown(j.path) {
		// Substitute before conversion, as smart quotes would break
		// references.
		content, missing = v.Substitute(content)
		html, err := b.c.Converter.Convert([]byte(content))
		if err != nil {
			return Output{}, fmt.Errorf("converting Markdown: %w", err)
		}
		content = string(html)
		article = html
	}

	content = b.renderer.Render(ctx, content, "")
	content, more := v.Substitute(content)
	for _, name := range uniq(append(missing, more...)) {
		logger.Info(ctx, "undefined variable", slog.String("path", j.path), slog.String("name", name))
	}

	out := []byte(content)
	url := b.siteURL(dst)

	meta := b.pageMeta(ctx, j, out)
	var err error
	if meta != nil && meta.URL == "" {
		meta.URL = url
	}
	if b.c.Site != nil && meta != nil {
		if j.post != nil && len(meta.StructuredData) == 0 {
			if meta.StructuredData, err = seo.BlogPosting(meta, b.c.Site, article); err != nil {
				return Output{}, fmt.Errorf("generating structured data: %w", err)
			}
		}
		if out, err = b.c.Injector.Inject(out, meta, b.c.Site); err != nil {
			return Output{}, fmt.Errorf("injecting SEO metadata: %w", err)
		}
	} else {
		out = seo.StripPage(out)
	}

	for _, c := range b.c.Checkers {
		if err := c.Check(ctx, out, j.path, dst); err != nil {
			return Output{}, fmt.Errorf("checking: %w", err)
		}
	}

	if b.c.Minify {
		if out, err = b.c.Minifier.Minify(minify.HTML, out); err != nil {
			return Output{}, fmt.Errorf("minifying: %w", err)
		}
	}

	written, err := b.write(dst, out)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Src:     j.path,
		Dst:     dst,
		URL:     url,
		Page:    meta,
		ModTime: j.info.ModTime(),
		Written: written,
	}, nil
}

// pageMeta returns the SEO metadata of a page: its front matter for posts,
// its SEO comment otherwise. A malformed comment is ignored.
func (b *Builder) pageMeta(ctx context.Context, j job, out []byte) *seo.Page {
	if j.post != nil {
		return j.post.fm.Page()
	}
	meta, err := seo.ParsePage(out)
	if err != nil {
		logger.Info(ctx, "ignoring SEO comment", slog.String("path", j.path), slog.Any("err", err))
		return nil
	}
	return meta
}

func (b *Builder) copyAsset(j job) (Output, error) {
	dst, ok := b.OutputPath(j.path)
	if !ok {
		return Output{}, fmt.Errorf("%s is outside of %s", j.path, b.c.Src)
	}

	buf, err := os.ReadFile(j.path)
	if err != nil {
		return Output{}, err
	}
	if k, ok := minify.KindOf(j.path); ok && b.c.Minify && k != minify.HTML {
		if buf, err = b.c.Minifier.Minify(k, buf); err != nil {
			return Output{}, fmt.Errorf("minifying: %w", err)
		}
	}

	written, err := b.write(dst, buf)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Src:     j.path,
		Dst:     dst,
		URL:     b.siteURL(dst),
		ModTime: j.info.ModTime(),
		Asset:   true,
		Written: written,
	}, nil
}

// write writes content to dst unless the previous write of this Builder
// left the same content there.
func (b *Builder) write(dst string, content []byte) (bool, error) {
	sum := xxhash.Sum64(content)

	b.mu.Lock()
	prev, ok := b.written[dst]
	b.mu.Unlock()
	if ok && prev == sum {
		if _, err := os.Stat(dst); err == nil {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return false, err
	}

	b.mu.Lock()
	b.written[dst] = sum
	b.mu.Unlock()
	return true, nil
}

func uniq(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
