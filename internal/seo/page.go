// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package seo

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var errPageMeta = errors.New("failed to parse SEO comment")

var pageMetaRe = regexp.MustCompile(`(?s)<!--\s*SEO\s*(\{.*?\})\s*-->`)

// Page is per-page metadata. The fields are the keys of the SEO comment.
type Page struct {
	Title           string          `json:"title"`                      // title: Page title, joined with the site name.
	Description     string          `json:"description,omitempty"`      // description: Falls back to the site description.
	Keywords        []string        `json:"keywords,omitempty"`         // keywords: Fall back to the site keywords.
	URL             string          `json:"url,omitempty"`              // url: Public path of the page, derived from the output path by default.
	CanonicalURL    string          `json:"canonical_url,omitempty"`    // canonical_url: Adds a canonical link.
	Image           string          `json:"image,omitempty"`            // image: Adds og:image and a large Twitter card.
	Author          string          `json:"author,omitempty"`           // author: Falls back to the site author.
	Published       *time.Time      `json:"published,omitempty"`        // published: RFC 3339 timestamp; pages with it go to the feed.
	ChangeFrequency string          `json:"change_frequency,omitempty"` // change_frequency: Sitemap changefreq, weekly by default.
	Priority        float64         `json:"priority,omitempty"`         // priority: Sitemap priority, 0.5 by default.
	StructuredData  json.RawMessage `json:"structured_data,omitempty"`  // structured_data: Emitted as JSON-LD.
}

// ParsePage extracts the metadata from the first SEO comment in b. It returns
// nil if b has none.
func ParsePage(b []byte) (*Page, error) {
	m := pageMetaRe.FindSubmatch(b)
	if m == nil {
		return nil, nil
	}
	var p Page
	if err := json.Unmarshal(m[1], &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errPageMeta, err)
	}
	return &p, nil
}

// StripPage removes SEO comments from b.
func StripPage(b []byte) []byte {
	return pageMetaRe.ReplaceAll(b, nil)
}

// Entry describes a built page for the site-wide generators.
type Entry struct {
	URL     string    // site path, like /about.html or /blog/
	ModTime time.Time // modification time of the source
	Page    *Page     // nil when the page has no SEO comment
}
