// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package seo merges site-wide and per-page metadata into built pages and
generates the site-wide files search engines look for: sitemap.xml, an RSS
feed and robots.txt.

Site-wide defaults are read from a TOML file:

	site_name = "Example"
	base_url = "https://example.com"
	default_description = "An example site."
	default_keywords = ["example"]
	twitter_handle = "@example"

Pages opt in by carrying an SEO comment with a JSON object:

	<!-- SEO {"title": "About", "description": "About this site."} -->

See [Page] for the available fields.
*/
package seo

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
)

// Possible errors, used in tests.
var (
	errSiteNameMissing = errors.New("site_name is required")
	errBaseURLInvalid  = errors.New("invalid base_url")
)

// Site holds site-wide metadata.
type Site struct {
	Name          string   `toml:"site_name"`
	BaseURL       string   `toml:"base_url"`
	Description   string   `toml:"default_description"`
	Keywords      []string `toml:"default_keywords"`
	TwitterHandle string   `toml:"twitter_handle"`
	Language      string   `toml:"default_language"`
	Author        string   `toml:"author"`
}

// LoadSite reads site metadata from the TOML file at path.
func LoadSite(path string) (*Site, error) {
	var s Site
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !meta.IsDefined("site_name") || s.Name == "" {
		return nil, fmt.Errorf("%s: %w", path, errSiteNameMissing)
	}
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s: %w %q", path, errBaseURLInvalid, s.BaseURL)
		}
	}
	s.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	return &s, nil
}

// URL returns the absolute URL of the site path p.
func (s *Site) URL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return s.BaseURL + p
}
