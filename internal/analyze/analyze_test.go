// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package analyze

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/base/testutil"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "img", "wide.png"), 2000, 10)
	writePNG(t, filepath.Join(root, "posts", "small.png"), 10, 10)
	if err := os.WriteFile(filepath.Join(root, "img", "big.jpg"), bytes.Repeat([]byte{'x'}, 200<<10), 0o644); err != nil {
		t.Fatal(err)
	}

	const page = `<!DOCTYPE html>
<html>
<head>
<meta name="description" content="A post.">
<link rel="stylesheet" href="/a.css">
<script src="/blocking.js"></script>
<script src="/deferred.js" defer></script>
<script type="module" src="/module.js"></script>
<script type="application/ld+json">{}</script>
</head>
<body>
<img src="/img/wide.png">
<img src="/img/big.jpg">
<img src="small.png">
<img src="https://example.com/remote.png">
</body>
</html>`

	r, err := Analyze([]byte(page), filepath.Join(root, "posts", "hello.html"), root)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, r.Size, len(page))
	testutil.AssertEqual(t, r.Images, 4)
	testutil.AssertEqual(t, r.LargeImages, []string{"/img/big.jpg"})
	testutil.AssertEqual(t, r.OversizedImages, []string{"/img/wide.png (2000x10)"})
	testutil.AssertEqual(t, r.BlockingScripts, 1)
	testutil.AssertEqual(t, r.RenderBlockingCSS, 1)
	testutil.AssertEqual(t, r.MissingMeta, []string{"viewport", "robots"})
	testutil.AssertEqual(t, r.Recommendations, []string{
		"Large images detected (1). Consider compressing: /img/big.jpg",
		"Images with high resolution detected. Consider resizing: /img/wide.png (2000x10)",
		"Found 1 blocking script(s). Consider adding 'defer' or 'async' attributes.",
		"Missing important meta tags: viewport, robots",
	})
}

func TestAnalyzeClean(t *testing.T) {
	const page = `<html><head>
<meta name="description" content="d"><meta name="viewport" content="width=device-width"><meta name="robots" content="index">
</head><body><p>Hi</p></body></html>`
	r, err := Analyze([]byte(page), "index.html", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(r.Recommendations), 0)
	if !strings.HasSuffix(r.String(), "Recommendations:\nNone.\n") {
		t.Fatalf("unexpected report:\n%s", r)
	}
}

func TestPerformanceCheck(t *testing.T) {
	dir := t.TempDir()
	p := &Performance{
		Src: filepath.Join(dir, "content"),
		Dst: filepath.Join(dir, "output"),
		Dir: filepath.Join(dir, "output", "performance"),
	}
	src := filepath.Join(p.Src, "posts", "hello.md")
	dst := filepath.Join(p.Dst, "posts", "hello.html")
	if err := p.Check(t.Context(), []byte("<p>Hello</p>"), src, dst); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(p.Dir, "posts", "hello.perf.txt"))
	if err != nil {
		t.Fatal(err)
	}
	report := string(b)
	for _, want := range []string{
		"Performance Analysis for " + src + "\n\n",
		"Page size: 12 bytes\n",
		"Missing meta tags: description, viewport, robots\n",
		"\nRecommendations:\nMissing important meta tags: description, viewport, robots\n",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report does not contain %q:\n%s", want, report)
		}
	}
}

func TestAudit(t *testing.T) {
	const page = `<html><head>
<link rel="stylesheet" href="http://cdn.example.com/a.css">
<link rel="stylesheet" href="https://cdn.example.com/b.css">
<script src="HTTP://cdn.example.com/a.js"></script>
</head><body>
<img src="http://example.com/a.png">
<img src="/local.png">
<a href="http://example.org/">old</a>
<a href="https://example.org/">new</a>
<a href="/about">about</a>
</body></html>`

	f, err := Audit([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, f.MixedContent, []string{
		"http://cdn.example.com/a.css",
		"HTTP://cdn.example.com/a.js",
		"http://example.com/a.png",
	})
	testutil.AssertEqual(t, f.InsecureLinks, []string{"http://example.org/"})

	if err := (Security{}).Check(t.Context(), []byte(page), "index.html", "index.html"); err != nil {
		t.Fatalf("Security.Check failed: %v", err)
	}
}
