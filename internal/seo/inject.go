// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package seo

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tags in the head that Inject owns and replaces.
const ownedTags = `meta[name="description"], meta[name="keywords"], meta[name="author"], ` +
	`link[rel="canonical"], meta[property^="og:"], meta[name^="twitter:"], ` +
	`script[type="application/ld+json"]`

// Injector writes page and site metadata into the head of built pages.
type Injector struct{}

// Inject returns page with its title and metadata tags set from meta, using
// site for defaults. The SEO comment itself is removed.
func (Injector) Inject(page []byte, meta *Page, site *Site) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(StripPage(page)))
	if err != nil {
		return nil, err
	}

	if site.Language != "" {
		if h := doc.Find("html").First(); h.AttrOr("lang", "") == "" {
			h.SetAttr("lang", site.Language)
		}
	}

	head := doc.Find("head").First()
	head.Find(ownedTags).Remove()

	title := meta.Title
	if site.Name != "" && title != "" {
		title += " | " + site.Name
	} else if title == "" {
		title = site.Name
	}
	if t := head.Find("title"); t.Length() > 0 {
		t.First().SetText(title)
		t.Slice(1, t.Length()).Remove()
	} else {
		head.AppendHtml("<title>" + html.EscapeString(title) + "</title>")
	}

	var tags strings.Builder
	metaTag := func(attr, key, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&tags, `<meta %s="%s" content="%s">`, attr, key, html.EscapeString(value))
	}

	desc := cmp.Or(meta.Description, site.Description)
	keywords := meta.Keywords
	if len(keywords) == 0 {
		keywords = site.Keywords
	}
	pageURL := ""
	if site.BaseURL != "" && meta.URL != "" {
		pageURL = site.URL(meta.URL)
	}

	metaTag("name", "description", desc)
	metaTag("name", "keywords", strings.Join(keywords, ", "))
	metaTag("name", "author", cmp.Or(meta.Author, site.Author))
	if meta.CanonicalURL != "" {
		fmt.Fprintf(&tags, `<link rel="canonical" href="%s">`, html.EscapeString(meta.CanonicalURL))
	}
	metaTag("property", "og:title", title)
	metaTag("property", "og:description", desc)
	metaTag("property", "og:type", "website")
	metaTag("property", "og:url", pageURL)
	metaTag("property", "og:site_name", site.Name)
	if meta.Image != "" {
		image := meta.Image
		if site.BaseURL != "" {
			image = site.URL(image)
		}
		metaTag("property", "og:image", image)
		metaTag("name", "twitter:card", "summary_large_image")
	} else if site.TwitterHandle != "" {
		metaTag("name", "twitter:card", "summary")
	}
	metaTag("name", "twitter:site", site.TwitterHandle)
	if meta.Image != "" || site.TwitterHandle != "" {
		metaTag("name", "twitter:title", title)
	}
	if len(meta.StructuredData) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, meta.StructuredData); err != nil {
			return nil, fmt.Errorf("%w: structured_data: %v", errPageMeta, err)
		}
		// "</" must not appear inside a script element.
		ld := strings.ReplaceAll(buf.String(), "</", `<\/`)
		fmt.Fprintf(&tags, `<script type="application/ld+json">%s</script>`, ld)
	}
	head.AppendHtml(tags.String())

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
