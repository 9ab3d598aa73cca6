// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package analyze

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"go.astrophena.name/base/logger"

	"github.com/PuerkitoBio/goquery"
)

// Elements that load a subresource from the attribute.
const subresources = `img[src], script[src], iframe[src], audio[src], video[src], source[src], embed[src], ` +
	`link[rel~="stylesheet"][href], link[rel~="icon"][href]`

// Findings lists plain HTTP URLs found in a page.
type Findings struct {
	MixedContent  []string // subresources that would be blocked or warned about on HTTPS
	InsecureLinks []string // links to http:// pages
}

// Audit returns the plain HTTP URLs referenced by page.
func Audit(page []byte) (*Findings, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	f := new(Findings)
	doc.Find(subresources).Each(func(_ int, s *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(s) == "link" {
			attr = "href"
		}
		if u := s.AttrOr(attr, ""); isInsecure(u) {
			f.MixedContent = append(f.MixedContent, u)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if u := s.AttrOr("href", ""); isInsecure(u) {
			f.InsecureLinks = append(f.InsecureLinks, u)
		}
	})
	return f, nil
}

func isInsecure(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "http://")
}

// Security logs mixed content and insecure links of every built page. It
// never fails a build.
type Security struct{}

// Check implements the build package's Checker interface.
func (Security) Check(ctx context.Context, page []byte, src, dst string) error {
	f, err := Audit(page)
	if err != nil {
		return err
	}
	if len(f.MixedContent) > 0 {
		logger.Error(ctx, "mixed content found", slog.String("path", src), slog.Any("urls", f.MixedContent))
	}
	if len(f.InsecureLinks) > 0 {
		logger.Error(ctx, "insecure links found", slog.String("path", src), slog.Any("urls", f.InsecureLinks))
	}
	return nil
}
