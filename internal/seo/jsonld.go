// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package seo

import (
	"bytes"
	"cmp"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type blogPosting struct {
	Context       string   `json:"@context"`
	Type          string   `json:"@type"`
	Headline      string   `json:"headline"`
	Description   string   `json:"description,omitempty"`
	DatePublished string   `json:"datePublished,omitempty"`
	DateModified  string   `json:"dateModified,omitempty"`
	URL           string   `json:"url,omitempty"`
	Image         []string `json:"image,omitempty"`
	Keywords      string   `json:"keywords,omitempty"`
	Author        *thing   `json:"author,omitempty"`
	Publisher     *thing   `json:"publisher,omitempty"`
	ArticleBody   string   `json:"articleBody,omitempty"`
}

type thing struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// BlogPosting returns schema.org BlogPosting structured data for a post with
// metadata p. body is the HTML of the post itself, without the surrounding
// layout; its text becomes the article body.
func BlogPosting(p *Page, site *Site, body []byte) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	ld := blogPosting{
		Context:     "https://schema.org",
		Type:        "BlogPosting",
		Headline:    p.Title,
		Description: p.Description,
		Keywords:    strings.Join(p.Keywords, ", "),
		ArticleBody: strings.Join(strings.Fields(doc.Text()), " "),
	}
	if p.Published != nil {
		ld.DatePublished = p.Published.Format(time.RFC3339)
		ld.DateModified = ld.DatePublished
	}
	if site.BaseURL != "" && p.URL != "" {
		ld.URL = site.URL(p.URL)
	}
	if p.Image != "" {
		image := p.Image
		if site.BaseURL != "" {
			image = site.URL(image)
		}
		ld.Image = []string{image}
	}
	if author := cmp.Or(p.Author, site.Author); author != "" {
		ld.Author = &thing{Type: "Person", Name: author}
	}
	if site.Name != "" {
		ld.Publisher = &thing{Type: "Organization", Name: site.Name, URL: site.BaseURL}
	}

	b, err := json.Marshal(ld)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
