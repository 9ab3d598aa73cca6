// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package analyze inspects built pages.

[Performance] writes a plain text report per page into a report directory:

	Performance Analysis for content/index.html

	Page size: 1024 bytes
	Images: 2
	Large images: /img/hero.jpg
	Oversized images: /img/hero.jpg (4000x3000)
	Blocking scripts: 1
	Render-blocking stylesheets: 1
	Missing meta tags: viewport, robots

	Recommendations:
	Found 1 blocking script(s). Consider adding 'defer' or 'async' attributes.
	...

[Security] logs resources and links that are loaded over plain HTTP.
*/
package analyze

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder for image dimensions
	_ "image/jpeg" // JPEG decoder for image dimensions
	_ "image/png"  // PNG decoder for image dimensions
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Thresholds for recommendations.
const (
	maxPageSize     = 500_000
	maxImageSize    = 100 << 10
	maxImageWidth   = 1920
	maxImageHeight  = 1080
	maxStylesheets  = 2
	reportExtension = ".perf.txt"
)

var (
	imageExtRe    = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)$`)
	importantMeta = []string{"description", "viewport", "robots"}
)

// Report is the performance analysis of one page.
type Report struct {
	Path              string   // source of the page
	Size              int      // bytes
	Images            int      // number of img elements
	LargeImages       []string // local images above 100 KiB
	OversizedImages   []string // local images above 1920x1080, with dimensions
	BlockingScripts   int      // scripts without defer or async
	RenderBlockingCSS int      // stylesheet links
	MissingMeta       []string // absent description, viewport and robots tags
	Recommendations   []string
}

// Analyze returns the performance report for page, built from the source
// file src. Local images are looked up under root, the source directory,
// when their path is absolute, and next to src otherwise.
func Analyze(page []byte, src, root string) (*Report, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	r := &Report{Path: src, Size: len(page)}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		r.Images++
		if p, ok := img.Attr("src"); ok {
			r.inspectImage(p, src, root)
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if isBlocking(s) {
			r.BlockingScripts++
		}
	})
	r.RenderBlockingCSS = doc.Find(`link[rel~="stylesheet"]`).Length()
	for _, name := range importantMeta {
		if doc.Find(`meta[name="`+name+`"]`).Length() == 0 {
			r.MissingMeta = append(r.MissingMeta, name)
		}
	}

	r.recommend()
	return r, nil
}

func isBlocking(s *goquery.Selection) bool {
	if _, ok := s.Attr("defer"); ok {
		return false
	}
	if _, ok := s.Attr("async"); ok {
		return false
	}
	switch typ := strings.ToLower(s.AttrOr("type", "")); {
	case typ == "module", strings.Contains(typ, "json"):
		return false
	}
	return true
}

func (r *Report) inspectImage(ref, src, root string) {
	if !imageExtRe.MatchString(ref) || isRemote(ref) {
		return
	}
	var p string
	if rest, ok := strings.CutPrefix(ref, "/"); ok {
		p = filepath.Join(root, filepath.FromSlash(rest))
	} else {
		p = filepath.Join(filepath.Dir(src), filepath.FromSlash(ref))
	}

	fi, err := os.Stat(p)
	if err != nil {
		return
	}
	if fi.Size() > maxImageSize {
		r.LargeImages = append(r.LargeImages, ref)
	}

	f, err := os.Open(p)
	if err != nil {
		return
	}
	defer f.Close()
	// Formats without a registered decoder are skipped.
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return
	}
	if cfg.Width > maxImageWidth || cfg.Height > maxImageHeight {
		r.OversizedImages = append(r.OversizedImages, fmt.Sprintf("%s (%dx%d)", ref, cfg.Width, cfg.Height))
	}
}

func isRemote(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "data:")
}

func (r *Report) recommend() {
	if r.Size > maxPageSize {
		r.Recommendations = append(r.Recommendations, "Page size exceeds 500KB. Consider minifying HTML, CSS, and JavaScript.")
	}
	if len(r.LargeImages) > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Large images detected (%d). Consider compressing: %s", len(r.LargeImages), strings.Join(r.LargeImages, ", ")))
	}
	if len(r.OversizedImages) > 0 {
		r.Recommendations = append(r.Recommendations, "Images with high resolution detected. Consider resizing: "+strings.Join(r.OversizedImages, ", "))
	}
	if r.BlockingScripts > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Found %d blocking script(s). Consider adding 'defer' or 'async' attributes.", r.BlockingScripts))
	}
	if r.RenderBlockingCSS > maxStylesheets {
		r.Recommendations = append(r.Recommendations, "Multiple render-blocking stylesheets detected. Consider combining CSS files.")
	}
	if len(r.MissingMeta) > 0 {
		r.Recommendations = append(r.Recommendations, "Missing important meta tags: "+strings.Join(r.MissingMeta, ", "))
	}
}

// String formats r as a report file.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Performance Analysis for %s\n\n", r.Path)
	fmt.Fprintf(&b, "Page size: %d bytes\n", r.Size)
	fmt.Fprintf(&b, "Images: %d\n", r.Images)
	if len(r.LargeImages) > 0 {
		fmt.Fprintf(&b, "Large images: %s\n", strings.Join(r.LargeImages, ", "))
	}
	if len(r.OversizedImages) > 0 {
		fmt.Fprintf(&b, "Oversized images: %s\n", strings.Join(r.OversizedImages, ", "))
	}
	fmt.Fprintf(&b, "Blocking scripts: %d\n", r.BlockingScripts)
	fmt.Fprintf(&b, "Render-blocking stylesheets: %d\n", r.RenderBlockingCSS)
	if len(r.MissingMeta) > 0 {
		fmt.Fprintf(&b, "Missing meta tags: %s\n", strings.Join(r.MissingMeta, ", "))
	}
	b.WriteString("\nRecommendations:\n")
	if len(r.Recommendations) == 0 {
		b.WriteString("None.\n")
	}
	for _, rec := range r.Recommendations {
		b.WriteString(rec + "\n")
	}
	return b.String()
}

// Performance writes a [Report] for every built page into Dir. The report
// of a page mirrors its path under Dst, with the .perf.txt extension.
type Performance struct {
	Src string // source directory; absolute image paths are resolved against it
	Dst string // output directory
	Dir string // report directory
}

// Check implements the build package's Checker interface.
func (p *Performance) Check(ctx context.Context, page []byte, src, dst string) error {
	r, err := Analyze(page, src, p.Src)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(p.Dst, dst)
	if err != nil {
		return err
	}
	report := filepath.Join(p.Dir, strings.TrimSuffix(rel, filepath.Ext(rel))+reportExtension)
	if err := os.MkdirAll(filepath.Dir(report), 0o755); err != nil {
		return err
	}
	return os.WriteFile(report, []byte(r.String()), 0o644)
}
