// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package markdown

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"go.astrophena.name/stitch/internal/seo"
)

// Possible errors, used in tests.
var (
	errFrontMatterUnclosed = errors.New("front matter not closed with ---")
	errFrontMatterParse    = errors.New("failed to parse front matter")
	errFrontMatterMissing  = errors.New("missing required front matter field (title, date)")
	errFrontMatterDate     = errors.New("invalid front matter date")
)

// FrontMatter is the YAML block a post may start with:
//
//	---
//	title: Hello, world!
//	date: 2026-03-01T12:00:00Z
//	tags: [go, web]
//	---
type FrontMatter struct {
	Title          string   `yaml:"title"`
	Author         string   `yaml:"author"`
	Date           string   `yaml:"date"` // RFC 3339 or YYYY-MM-DD
	Tags           []string `yaml:"tags"`
	Description    string   `yaml:"description"`
	Keywords       []string `yaml:"keywords"`
	CanonicalURL   string   `yaml:"canonical_url"`
	StructuredData string   `yaml:"structured_data"` // JSON-LD, generated when empty
	Image          string   `yaml:"image"`
}

var delim = []byte("---")

// SplitFrontMatter separates the front matter of src from the Markdown that
// follows it. It returns a nil FrontMatter and src itself when src doesn't
// start with a --- line.
func SplitFrontMatter(src []byte) (*FrontMatter, []byte, error) {
	first, rest, _ := bytes.Cut(src, []byte("\n"))
	if !bytes.Equal(bytes.TrimRight(first, "\r"), delim) {
		return nil, src, nil
	}

	var block []byte
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		if bytes.Equal(bytes.TrimRight(line, "\r"), delim) {
			fm, err := parseFrontMatter(block)
			if err != nil {
				return nil, nil, err
			}
			return fm, rest, nil
		}
		block = append(block, line...)
		block = append(block, '\n')
	}
	return nil, nil, errFrontMatterUnclosed
}

func parseFrontMatter(b []byte) (*FrontMatter, error) {
	var fm FrontMatter
	if err := yaml.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", errFrontMatterParse, err)
	}
	if fm.Title == "" || fm.Date == "" {
		return nil, errFrontMatterMissing
	}
	if _, err := fm.Published(); err != nil {
		return nil, err
	}
	if fm.StructuredData != "" && !json.Valid([]byte(fm.StructuredData)) {
		return nil, fmt.Errorf("%w: structured_data is not valid JSON", errFrontMatterParse)
	}
	return &fm, nil
}

// Published returns the parsed date of the post.
func (fm *FrontMatter) Published() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, fm.Date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q (want RFC 3339 or YYYY-MM-DD)", errFrontMatterDate, fm.Date)
}

// Page returns the SEO metadata described by fm. Tags are used as keywords
// when there are none.
func (fm *FrontMatter) Page() *seo.Page {
	p := &seo.Page{
		Title:        fm.Title,
		Description:  fm.Description,
		Keywords:     fm.Keywords,
		CanonicalURL: fm.CanonicalURL,
		Image:        fm.Image,
		Author:       fm.Author,
	}
	if len(p.Keywords) == 0 {
		p.Keywords = fm.Tags
	}
	if t, err := fm.Published(); err == nil {
		p.Published = &t
	}
	if fm.StructuredData != "" {
		p.StructuredData = json.RawMessage(fm.StructuredData)
	}
	return p
}
