// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package minify minifies built pages and assets.
package minify

import (
	"path/filepath"
	"strings"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	mjson "github.com/tdewolff/minify/v2/json"
)

// Kind is a kind of minifiable content.
type Kind int

// Supported kinds.
const (
	HTML Kind = iota
	CSS
	JS
	JSON
)

func (k Kind) mediaType() string {
	switch k {
	case CSS:
		return "text/css"
	case JS:
		return "application/javascript"
	case JSON:
		return "application/json"
	}
	return "text/html"
}

func (k Kind) String() string {
	switch k {
	case HTML:
		return "html"
	case CSS:
		return "css"
	case JS:
		return "js"
	case JSON:
		return "json"
	}
	return "unknown"
}

// KindOf returns the kind of the file at path, judging by its extension.
func KindOf(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTML, true
	case ".css":
		return CSS, true
	case ".js", ".mjs":
		return JS, true
	case ".json":
		return JSON, true
	}
	return 0, false
}

// Minifier minifies content. It is safe for concurrent use.
type Minifier struct {
	m *tdminify.M
}

// New returns a Minifier for every supported kind.
func New() *Minifier {
	m := tdminify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepDefaultAttrVals: true,
		KeepEndTags:         true,
	})
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", mjson.Minify)

	return &Minifier{m: m}
}

// Minify returns the minified form of b.
func (m *Minifier) Minify(k Kind, b []byte) ([]byte, error) {
	return m.m.Bytes(k.mediaType(), b)
}
