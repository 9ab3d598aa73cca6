// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package seo

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
)

// Sitemap writes sitemap.xml.
type Sitemap struct{}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Generate implements the build package's Generator interface.
func (Sitemap) Generate(ctx context.Context, pages []Entry, site *Site, dst string) error {
	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range sortedByURL(pages) {
		u := sitemapURL{
			Loc:        site.URL(p.URL),
			ChangeFreq: "weekly",
			Priority:   "0.5",
		}
		if !p.ModTime.IsZero() {
			u.LastMod = p.ModTime.UTC().Format(time.DateOnly)
		}
		if p.Page != nil {
			if p.Page.ChangeFrequency != "" {
				u.ChangeFreq = p.Page.ChangeFrequency
			}
			if p.Page.Priority > 0 {
				u.Priority = strconv.FormatFloat(p.Page.Priority, 'f', 1, 64)
			}
		}
		set.URLs = append(set.URLs, u)
	}

	b, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	b = append([]byte(xml.Header), b...)
	return os.WriteFile(filepath.Join(dst, "sitemap.xml"), append(b, '\n'), 0o644)
}

// Feed writes an RSS feed of the pages that have a publication date to
// feed.xml.
type Feed struct {
	created time.Time // used in tests
}

// Generate implements the build package's Generator interface.
func (f Feed) Generate(ctx context.Context, pages []Entry, site *Site, dst string) error {
	feed := &feeds.Feed{
		Title:       site.Name,
		Link:        &feeds.Link{Href: site.URL("/")},
		Description: site.Description,
		Created:     time.Now(),
	}
	if site.Author != "" {
		feed.Author = &feeds.Author{Name: site.Author}
	}
	if !f.created.IsZero() {
		feed.Created = f.created
	}

	var posts []Entry
	for _, p := range pages {
		if p.Page != nil && p.Page.Published != nil {
			posts = append(posts, p)
		}
	}
	// Newest first.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Page.Published.After(*posts[j].Page.Published)
	})

	for _, p := range posts {
		item := &feeds.Item{
			Title:       p.Page.Title,
			Link:        &feeds.Link{Href: site.URL(p.URL)},
			Description: p.Page.Description,
			Created:     *p.Page.Published,
			Id:          site.URL(p.URL),
		}
		if author := p.Page.Author; author != "" {
			item.Author = &feeds.Author{Name: author}
		} else {
			item.Author = feed.Author
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dst, "feed.xml"), []byte(rss), 0o644)
}

// Robots writes robots.txt allowing everything and pointing to the sitemap.
type Robots struct{}

// Generate implements the build package's Generator interface.
func (Robots) Generate(ctx context.Context, pages []Entry, site *Site, dst string) error {
	txt := fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s\n", site.URL("/sitemap.xml"))
	return os.WriteFile(filepath.Join(dst, "robots.txt"), []byte(txt), 0o644)
}

func sortedByURL(pages []Entry) []Entry {
	sorted := make([]Entry, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })
	return sorted
}
