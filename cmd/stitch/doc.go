// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Stitch builds a static site out of pages and reusable components.

# Usage

	$ stitch [flags]

Stitch reads pages, posts and assets from the input directory (default
"content"), expands <component name="..." /> tags with files from the
components directory (default "components") and writes the result into the
output directory (default "output").

With -watch, stitch performs an initial build, serves the output directory on
-listen and rebuilds the site whenever a file in the input or components
directory changes. Open pages are reloaded automatically, stylesheets are
swapped in place and build errors are shown in the browser.

# Variables

Pages may reference @{var("name")} variables. They are read from the file
named by -variables (default "variables.toml"), overlaid by the environment
specific file next to it, for example "variables.prod.toml".

# SEO

With -enable-seo, site-wide metadata is read from -seo-config (default
"seo_config.toml"). Pages may carry their own metadata in a comment:

	<!-- SEO {"title": "Hello", "description": "A post."} -->

Titles, descriptions, canonical links, Open Graph and Twitter tags are then
injected into each page, and sitemap.xml, feed.xml and robots.txt are
generated.

Posts are Markdown pages that start with YAML front matter:

	---
	title: Hello, world!
	date: 2026-03-01
	tags: [go]
	---

The front matter is used as the SEO metadata of the post, and a BlogPosting
JSON-LD block is generated unless it sets structured_data. Posts can reference
@{var("post.title")}, @{var("post.date")} and the other fields of their front
matter, and link to their neighbours by date with @{var("prev_post.url")} and
@{var("next_post.url")}.

# Checks

With -analyze-performance, a report on page size, images, blocking scripts,
stylesheets and missing meta tags is written for every page into the
"performance" directory of the output, for example
"output/performance/posts/hello.perf.txt".

With -security-checks, resources and links loaded over plain HTTP are logged.

The -release flag implies -minify, -security-checks and -env prod.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
