// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package markdown converts Markdown posts to HTML and highlights fenced code
// blocks that name a language.
package markdown

import (
	"bytes"
	"html"
	"regexp"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"rsc.io/markdown"
)

// DefaultStyle is the chroma style used when Converter.Style is empty.
const DefaultStyle = "github"

var codeBlockRe = regexp.MustCompile(`(?s)<pre><code class="language-([^"\s]+)">(.*?)</code></pre>`)

// Converter converts Markdown to HTML. The zero value is ready to use.
type Converter struct {
	// Style is the name of the chroma style for highlighted code.
	Style string
	// SkipHighlight leaves code blocks as rendered by the Markdown parser.
	SkipHighlight bool
}

func newParser() *markdown.Parser {
	return &markdown.Parser{
		HeadingID:          true,
		Strikethrough:      true,
		TaskList:           true,
		AutoLinkText:       true,
		AutoLinkAssumeHTTP: true,
		Table:              true,
		Emoji:              true,
		SmartDot:           true,
		SmartDash:          true,
		SmartQuote:         true,
		Footnote:           true,
	}
}

// Convert returns the HTML rendering of the Markdown document src. Raw HTML,
// including component tags and comments, is passed through.
func (c *Converter) Convert(src []byte) ([]byte, error) {
	doc := newParser().Parse(string(src))
	out := []byte(markdown.ToHTML(doc))
	if c.SkipHighlight {
		return out, nil
	}
	return c.highlight(out)
}

func (c *Converter) highlight(b []byte) ([]byte, error) {
	if !bytes.Contains(b, []byte(`<pre><code class="language-`)) {
		return b, nil
	}

	style := styles.Get(c.Style)
	if c.Style == "" {
		style = styles.Get(DefaultStyle)
	}
	formatter := chromahtml.New(chromahtml.TabWidth(4))

	var ferr error
	out := codeBlockRe.ReplaceAllFunc(b, func(block []byte) []byte {
		m := codeBlockRe.FindSubmatch(block)
		lexer := lexers.Get(string(m[1]))
		if lexer == nil {
			return block
		}
		lexer = chroma.Coalesce(lexer)

		it, err := lexer.Tokenise(nil, html.UnescapeString(string(m[2])))
		if err != nil {
			ferr = err
			return block
		}
		var buf bytes.Buffer
		if err := formatter.Format(&buf, style, it); err != nil {
			ferr = err
			return block
		}
		return buf.Bytes()
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}
