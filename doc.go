// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package stitch is a static site builder that assembles pages out of
// reusable HTML components.
//
// The command lives in cmd/stitch; run it with -help to see available
// flags. The packages doing the work are:
//
//	internal/component  Component lookup, caching and expansion.
//	internal/build      Parallel builds of a content tree.
//	internal/devserver  Watch mode with live reload.
//	internal/seo        SEO metadata, sitemap.xml, feed.xml and robots.txt.
//	internal/vars       @{var("...")} substitution from TOML files.
//	internal/markdown   Markdown posts with highlighted code blocks.
//	internal/minify     HTML, CSS, JavaScript and JSON minification.
package stitch
