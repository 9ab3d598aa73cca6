// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.astrophena.name/base/testutil"
	"go.astrophena.name/base/txtar"

	"go.astrophena.name/stitch/internal/component"
	"go.astrophena.name/stitch/internal/env"
	"go.astrophena.name/stitch/internal/seo"
	"go.astrophena.name/stitch/internal/vars"
)

func extract(t *testing.T, archive string) string {
	t.Helper()
	ar, err := txtar.ParseFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	testutil.ExtractTxtar(t, ar, dir)
	return dir
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func testConfig(t *testing.T, files map[string]string) *Config {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	return &Config{
		Src:        filepath.Join(dir, "content"),
		Dst:        filepath.Join(dir, "output"),
		Components: filepath.Join(dir, "components"),
	}
}

func TestBuild(t *testing.T) {
	dir := extract(t, filepath.Join("testdata", "site.txtar"))
	v, err := vars.Load(filepath.Join(dir, "variables.toml"), env.Dev)
	if err != nil {
		t.Fatal(err)
	}
	c := &Config{
		Src:        filepath.Join(dir, "content"),
		Dst:        filepath.Join(dir, "output"),
		Components: filepath.Join(dir, "components"),
		Vars:       v,
		Site: &seo.Site{
			Name:        "Example",
			BaseURL:     "https://example.com",
			Description: "Default description.",
		},
	}

	res, err := Build(t.Context(), c)
	if err != nil {
		t.Fatal(err)
	}

	var urls []string
	for _, o := range res.Outputs {
		urls = append(urls, o.URL)
	}
	testutil.AssertEqual(t, urls, []string{"/about.html", "/css/main.css", "/", "/posts/hello.html"})

	out := func(name string) string { return readFile(t, filepath.Join(c.Dst, filepath.FromSlash(name))) }

	index := out("index.html")
	for _, want := range []string{
		"<header><nav><a href=\"/\">Home</a></nav>\n<h1>Example Site</h1></header>",
		"<footer>© Example</footer>",
		"<title>Home | Example</title>",
		`<meta name="description" content="The home page."/>`,
	} {
		if !strings.Contains(index, want) {
			t.Errorf("index.html does not contain %q:\n%s", want, index)
		}
	}

	about := out("about.html")
	if !strings.Contains(about, "Reach me at me@example.com.") {
		t.Errorf("variable not substituted:\n%s", about)
	}
	if !strings.Contains(about, `@{var("undefined.thing")}`) {
		t.Errorf("undefined variable not kept:\n%s", about)
	}
	// No SEO comment, so the page is left alone.
	if strings.Contains(about, "<title>") {
		t.Errorf("metadata injected into a page without SEO comment:\n%s", about)
	}

	post := out("posts/hello.html")
	for _, want := range []string{"<h1", "Hello</h1>", "Markdown", "<title>Hello, world! | Example</title>", "<h1>Example Site</h1>"} {
		if !strings.Contains(post, want) {
			t.Errorf("posts/hello.html does not contain %q:\n%s", want, post)
		}
	}

	for _, body := range []string{index, about, post} {
		if strings.Contains(body, component.DiagnosticPrefix) {
			t.Errorf("unexpected diagnostic:\n%s", body)
		}
	}

	testutil.AssertEqual(t, out("css/main.css"), "body {\n  color: black;\n}\n")
	if _, err := os.Stat(filepath.Join(c.Dst, ".gitignore")); !os.IsNotExist(err) {
		t.Errorf(".gitignore copied to output")
	}

	if sitemap := out("sitemap.xml"); !strings.Contains(sitemap, "<loc>https://example.com/posts/hello.html</loc>") {
		t.Errorf("sitemap.xml misses the post:\n%s", sitemap)
	}
	if feed := out("feed.xml"); !strings.Contains(feed, "Hello, world!") {
		t.Errorf("feed.xml misses the post:\n%s", feed)
	}
	testutil.AssertEqual(t, out("robots.txt"), "User-agent: *\nAllow: /\n\nSitemap: https://example.com/sitemap.xml\n")
}

func TestBuildHeader(t *testing.T) {
	c := testConfig(t, map[string]string{
		"components/header.html": "<header>H</header>",
		"content/index.html":     `<body><component name="header" /></body>`,
	})
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "index.html")), "<body><header>H</header></body>")
}

func TestBuildCycle(t *testing.T) {
	c := testConfig(t, map[string]string{
		"components/a.html":  `<div class="a"><component name="b" /></div>`,
		"components/b.html":  `<div class="b"><component name="a" /></div>`,
		"content/index.html": `<component name="a" />`,
	})
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	got := readFile(t, filepath.Join(c.Dst, "index.html"))
	testutil.AssertEqual(t, strings.Count(got, component.DiagnosticPrefix+"circular dependency"), 1)
	testutil.AssertEqual(t, strings.Count(got, component.DiagnosticPrefix), 1)
}

func TestBuildPartialFailure(t *testing.T) {
	const n = 6
	files := map[string]string{"components/footer.html": "<footer></footer>"}
	for i := range n - 1 {
		files[fmt.Sprintf("content/page%d.html", i)] = `<p>ok</p><component name="footer" />`
	}
	c := testConfig(t, files)
	c.Site = &seo.Site{Name: "Example", BaseURL: "https://example.com"}
	broken := filepath.Join(c.Src, "broken.html")
	if err := os.Symlink(filepath.Join(c.Src, "nowhere.html"), broken); err != nil {
		t.Fatal(err)
	}

	res, err := Build(t.Context(), c)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("want *BatchError, got %v", err)
	}
	testutil.AssertEqual(t, len(be.Errs), 1)
	testutil.AssertEqual(t, be.Errs[0].Path, broken)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("errors.Is(err, os.ErrNotExist) = false for %v", err)
	}

	testutil.AssertEqual(t, len(res.Outputs), n-1)
	for _, o := range res.Outputs {
		testutil.AssertEqual(t, readFile(t, o.Dst), "<p>ok</p><footer></footer>")
	}
	// Site-wide files describe a complete site only.
	if _, err := os.Stat(filepath.Join(c.Dst, "sitemap.xml")); !os.IsNotExist(err) {
		t.Errorf("sitemap.xml generated for a failed build")
	}
}

func TestBuildSkipsUnchanged(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/a.html":     "<p>a</p>",
		"content/b.html":     "<p>b</p>",
		"content/style.css":  "p{}",
		"components/x.html":  "",
		"content/sub/c.html": "<p>c</p>",
	})
	b := New(c)

	written := func() (n int) {
		t.Helper()
		res, err := b.Build(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		for _, o := range res.Outputs {
			if o.Written {
				n++
			}
		}
		return n
	}

	testutil.AssertEqual(t, written(), 4)
	testutil.AssertEqual(t, written(), 0)

	writeFiles(t, filepath.Dir(c.Src), map[string]string{"content/b.html": "<p>B</p>"})
	testutil.AssertEqual(t, written(), 1)

	// Removed outputs are rewritten.
	if err := os.Remove(filepath.Join(c.Dst, "a.html")); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, written(), 1)
}

func TestBuildInvalidate(t *testing.T) {
	c := testConfig(t, map[string]string{
		"components/header.html": "old",
		"content/index.html":     `<component name="header" />`,
	})
	b := New(c)
	index := filepath.Join(c.Dst, "index.html")

	build := func() string {
		t.Helper()
		if _, err := b.Build(t.Context()); err != nil {
			t.Fatal(err)
		}
		return readFile(t, index)
	}

	testutil.AssertEqual(t, build(), "old")
	writeFiles(t, filepath.Dir(c.Src), map[string]string{"components/header.html": "new"})
	testutil.AssertEqual(t, build(), "old")
	b.Invalidate()
	testutil.AssertEqual(t, build(), "new")
}

func TestBuildMinify(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/index.html":    "<p>\n  Hi   there\n</p>\n<!-- gone -->\n",
		"content/css/main.css":  "body {\n  color: red;\n}\n",
		"content/data.json":     "{\n  \"a\": 1\n}\n",
		"content/img/logo.svgz": "binary\n\n",
	})
	c.Minify = true
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	out := func(name string) string { return readFile(t, filepath.Join(c.Dst, filepath.FromSlash(name))) }

	testutil.AssertEqual(t, out("css/main.css"), "body{color:red}")
	testutil.AssertEqual(t, out("data.json"), `{"a":1}`)
	testutil.AssertEqual(t, out("img/logo.svgz"), "binary\n\n")
	if index := out("index.html"); strings.Contains(index, "gone") || strings.Contains(index, "   ") {
		t.Errorf("index.html not minified: %q", index)
	}
}

func TestBuildSkipMarkdown(t *testing.T) {
	c := testConfig(t, map[string]string{"content/README.md": "# Hi\n"})
	c.SkipMarkdown = true
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "README.md")), "# Hi\n")
}

func TestBuildClean(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/index.html": "<p>hi</p>",
		"output/stale.html":  "stale",
	})
	c.Clean = true
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(c.Dst, "stale.html")); !os.IsNotExist(err) {
		t.Errorf("stale output survived a clean build")
	}
}

func TestBuildMissingSource(t *testing.T) {
	c := &Config{
		Src: filepath.Join(t.TempDir(), "nope"),
		Dst: t.TempDir(),
	}
	if _, err := Build(t.Context(), c); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}

type recordingGenerator struct {
	pages []seo.Entry
}

func (g *recordingGenerator) Generate(ctx context.Context, pages []seo.Entry, site *seo.Site, dst string) error {
	g.pages = pages
	return nil
}

type failingGenerator struct{}

var errGenerate = errors.New("generator failed")

func (failingGenerator) Generate(context.Context, []seo.Entry, *seo.Site, string) error {
	return errGenerate
}

func TestBuildGenerators(t *testing.T) {
	files := map[string]string{
		"content/index.html":      `<!-- SEO {"title": "Home"} --><p>home</p>`,
		"content/blog/index.html": "<p>blog</p>",
		"content/logo.png":        "png",
	}

	t.Run("receive pages", func(t *testing.T) {
		c := testConfig(t, files)
		g := new(recordingGenerator)
		c.Site = &seo.Site{Name: "Example"}
		c.Generators = []Generator{g}
		if _, err := Build(t.Context(), c); err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, len(g.pages), 2)
		testutil.AssertEqual(t, g.pages[0].URL, "/blog/")
		testutil.AssertEqual(t, g.pages[1].URL, "/")
		testutil.AssertEqual(t, g.pages[1].Page.Title, "Home")
		testutil.AssertEqual(t, g.pages[1].Page.URL, "/")
	})

	t.Run("skipped", func(t *testing.T) {
		c := testConfig(t, files)
		g := new(recordingGenerator)
		c.Site = &seo.Site{Name: "Example"}
		c.SkipSiteFiles = true
		c.Generators = []Generator{g}
		if _, err := Build(t.Context(), c); err != nil {
			t.Fatal(err)
		}
		if g.pages != nil {
			t.Fatal("generator ran with SkipSiteFiles")
		}
	})

	t.Run("failure", func(t *testing.T) {
		c := testConfig(t, files)
		c.Site = &seo.Site{Name: "Example"}
		c.Generators = []Generator{failingGenerator{}}
		if _, err := Build(t.Context(), c); !errors.Is(err, errGenerate) {
			t.Fatalf("want %v, got %v", errGenerate, err)
		}
	})
}

func TestOutputPath(t *testing.T) {
	b := New(&Config{Src: "content", Dst: "output"})
	cases := map[string]struct {
		src    string
		want   string
		wantOK bool
	}{
		"page":         {src: "content/index.html", want: filepath.Join("output", "index.html"), wantOK: true},
		"nested post":  {src: "content/blog/hello.md", want: filepath.Join("output", "blog", "hello.html"), wantOK: true},
		"asset":        {src: "content/css/main.css", want: filepath.Join("output", "css", "main.css"), wantOK: true},
		"outside":      {src: "components/header.html"},
		"root itself":  {src: "content"},
		"parent sneak": {src: "content/../x.html"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := b.OutputPath(filepath.FromSlash(tc.src))
			testutil.AssertEqual(t, ok, tc.wantOK)
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestRemove(t *testing.T) {
	c := testConfig(t, map[string]string{"content/post.md": "# Post\n"})
	b := New(c)
	if _, err := b.Build(t.Context()); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(c.Dst, "post.html")
	if _, err := os.Stat(dst); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove(filepath.Join(c.Src, "post.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("output not removed: %v", err)
	}
	// Removing twice is fine.
	if err := b.Remove(filepath.Join(c.Src, "post.md")); err != nil {
		t.Fatal(err)
	}
}

func TestBuildPosts(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/posts/first.md":  "---\ntitle: First\ndate: 2026-01-01\n---\n# First\n\nNext: @{var(\"next_post.title\")} at @{var(\"next_post.url\")}\n",
		"content/posts/second.md": "---\ntitle: Second\ndate: 2026-02-01T10:00:00Z\nauthor: Jane\ntags: [go]\n---\n# @{var(\"post.title\")}\n\nPrevious: @{var(\"prev_post.title\")}. Posted @{var(\"post.date\")}.\n",
		"content/posts/broken.md": "---\ntitle: Broken\n---\n",
	})
	c.Site = &seo.Site{Name: "Example", BaseURL: "https://example.com"}

	res, err := Build(t.Context(), c)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("want *BatchError, got %v", err)
	}
	testutil.AssertEqual(t, len(be.Errs), 1)
	testutil.AssertEqual(t, be.Errs[0].Path, filepath.Join(c.Src, "posts", "broken.md"))
	testutil.AssertEqual(t, len(res.Outputs), 2)

	first := readFile(t, filepath.Join(c.Dst, "posts", "first.html"))
	for _, want := range []string{
		"Next: Second at /posts/second.html",
		"<title>First | Example</title>",
		`"@type":"BlogPosting"`,
		`"headline":"First"`,
	} {
		if !strings.Contains(first, want) {
			t.Errorf("first.html does not contain %q:\n%s", want, first)
		}
	}
	if strings.Contains(first, "title: First") || strings.Contains(first, "prev_post") {
		t.Errorf("front matter leaked into the page:\n%s", first)
	}

	second := readFile(t, filepath.Join(c.Dst, "posts", "second.html"))
	for _, want := range []string{
		"Second</h1>",
		"Previous: First. Posted February 1, 2026.",
		`"author":{"@type":"Person","name":"Jane"}`,
		`"keywords":"go"`,
	} {
		if !strings.Contains(second, want) {
			t.Errorf("second.html does not contain %q:\n%s", want, second)
		}
	}

	// Front matter metadata reaches the site-wide generators.
	for _, e := range res.Pages() {
		if e.Page == nil || e.Page.Published == nil {
			t.Errorf("%s: missing publication date", e.URL)
		}
	}
}

func TestBuildStructuredDataFromFrontMatter(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/post.md": "---\ntitle: Hi\ndate: 2026-01-01\nstructured_data: '{\"@type\":\"Recipe\"}'\n---\nText.\n",
	})
	c.Site = &seo.Site{Name: "Example"}
	if _, err := Build(t.Context(), c); err != nil {
		t.Fatal(err)
	}
	got := readFile(t, filepath.Join(c.Dst, "post.html"))
	if !strings.Contains(got, `{"@type":"Recipe"}`) || strings.Contains(got, "BlogPosting") {
		t.Errorf("structured data from front matter not used:\n%s", got)
	}
}

func TestBuildStripsSEOComment(t *testing.T) {
	files := map[string]string{
		"content/index.html":     `<!-- SEO {"title": "Home"} --><p>hi</p>`,
		"content/malformed.html": "<!--\n  SEO {oops}\n--><p>bad</p>",
	}

	for name, site := range map[string]*seo.Site{
		"no site": nil,
		"site":    {Name: "Example"},
	} {
		t.Run(name, func(t *testing.T) {
			c := testConfig(t, files)
			c.Site = site
			if _, err := Build(t.Context(), c); err != nil {
				t.Fatal(err)
			}
			for _, page := range []string{"index.html", "malformed.html"} {
				if got := readFile(t, filepath.Join(c.Dst, page)); strings.Contains(got, "SEO") {
					t.Errorf("%s keeps the SEO comment:\n%s", page, got)
				}
			}
		})
	}
}

type recordingChecker struct {
	mu    sync.Mutex
	pages map[string]string // dst -> page
	srcs  map[string]string // dst -> src
}

func (c *recordingChecker) Check(ctx context.Context, page []byte, src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pages == nil {
		c.pages, c.srcs = make(map[string]string), make(map[string]string)
	}
	c.pages[dst] = string(page)
	c.srcs[dst] = src
	return nil
}

type failingChecker struct{}

var errCheck = errors.New("check failed")

func (failingChecker) Check(ctx context.Context, page []byte, src, dst string) error {
	if filepath.Base(src) == "bad.html" {
		return errCheck
	}
	return nil
}

func TestBuildCheckers(t *testing.T) {
	t.Run("see injected page before minification", func(t *testing.T) {
		c := testConfig(t, map[string]string{
			"content/index.html": "<!-- SEO {\"title\": \"Home\"} -->\n<p>  hi  </p>",
			"content/style.css":  "p {}",
		})
		c.Site = &seo.Site{Name: "Example"}
		c.Minify = true
		ch := new(recordingChecker)
		c.Checkers = []Checker{ch}
		if _, err := Build(t.Context(), c); err != nil {
			t.Fatal(err)
		}

		dst := filepath.Join(c.Dst, "index.html")
		testutil.AssertEqual(t, len(ch.pages), 1)
		testutil.AssertEqual(t, ch.srcs[dst], filepath.Join(c.Src, "index.html"))
		page := ch.pages[dst]
		if !strings.Contains(page, "<title>Home | Example</title>") || !strings.Contains(page, "<p>  hi  </p>") {
			t.Errorf("unexpected checked page:\n%s", page)
		}
	})

	t.Run("failure", func(t *testing.T) {
		c := testConfig(t, map[string]string{
			"content/index.html": "<p>ok</p>",
			"content/bad.html":   "<p>bad</p>",
		})
		c.Checkers = []Checker{failingChecker{}}
		res, err := Build(t.Context(), c)
		if !errors.Is(err, errCheck) {
			t.Fatalf("want %v, got %v", errCheck, err)
		}
		testutil.AssertEqual(t, len(res.Errors), 1)
		testutil.AssertEqual(t, res.Errors[0].Path, filepath.Join(c.Src, "bad.html"))
		if _, err := os.Stat(filepath.Join(c.Dst, "bad.html")); !os.IsNotExist(err) {
			t.Errorf("page that failed a check was written")
		}
		testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "index.html")), "<p>ok</p>")
	})
}

func TestBuildPrunesRemovedSources(t *testing.T) {
	c := testConfig(t, map[string]string{
		"content/index.html": "<p>home</p>",
		"content/old.html":   "<p>old</p>",
		"content/post.md":    "# Post\n",
		"content/a.css":      "a{}",
		"output/keep.txt":    "not ours",
	})
	b := New(c)
	build := func() {
		t.Helper()
		if _, err := b.Build(t.Context()); err != nil {
			t.Fatal(err)
		}
	}
	build()

	for _, name := range []string{"old.html", "post.md"} {
		if err := os.Remove(filepath.Join(c.Src, name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Rename(filepath.Join(c.Src, "a.css"), filepath.Join(c.Src, "b.css")); err != nil {
		t.Fatal(err)
	}
	build()

	for _, name := range []string{"old.html", "post.html", "a.css"} {
		if _, err := os.Stat(filepath.Join(c.Dst, name)); !os.IsNotExist(err) {
			t.Errorf("stale %s survived a rebuild: %v", name, err)
		}
	}
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "index.html")), "<p>home</p>")
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "b.css")), "a{}")
	// Files this builder never wrote are left alone.
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "keep.txt")), "not ours")
}

func TestBuildUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	c := testConfig(t, map[string]string{
		"content/index.html":        "<p>ok</p>",
		"content/private/page.html": "<p>secret</p>",
	})
	private := filepath.Join(c.Src, "private")
	if err := os.Chmod(private, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(private, 0o755) })

	res, err := Build(t.Context(), c)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("want *BatchError, got %v", err)
	}
	testutil.AssertEqual(t, len(be.Errs), 1)
	testutil.AssertEqual(t, be.Errs[0].Path, private)
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("errors.Is(err, os.ErrPermission) = false for %v", err)
	}
	testutil.AssertEqual(t, len(res.Outputs), 1)
	testutil.AssertEqual(t, readFile(t, filepath.Join(c.Dst, "index.html")), "<p>ok</p>")
}
