// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package build

import (
	"os"
	"sort"
	"strings"
	"time"

	"go.astrophena.name/stitch/internal/markdown"
)

// post is a Markdown page that starts with front matter.
type post struct {
	fm        *markdown.FrontMatter
	published time.Time
	url       string
	body      []byte         // Markdown after the front matter
	vars      map[string]any // post, prev_post and next_post variables
}

// loadPosts reads the front matter of every Markdown page in jobs and links
// the resulting posts to their neighbours by date. It returns the jobs that
// can be built and errors for the rest.
func (b *Builder) loadPosts(jobs []job) ([]job, []*FileError) {
	var (
		ok    []job
		errs  []*FileError
		posts []*post
	)
	for _, j := range jobs {
		if j.asset || !isMarkdown(j.path) {
			ok = append(ok, j)
			continue
		}
		raw, err := os.ReadFile(j.path)
		if err != nil {
			errs = append(errs, &FileError{Path: j.path, Err: err})
			continue
		}
		fm, body, err := markdown.SplitFrontMatter(raw)
		if err != nil {
			errs = append(errs, &FileError{Path: j.path, Err: err})
			continue
		}
		if fm != nil {
			// Validated by SplitFrontMatter.
			published, _ := fm.Published()
			dst, _ := b.OutputPath(j.path)
			j.post = &post{fm: fm, published: published, url: b.siteURL(dst), body: body}
			posts = append(posts, j.post)
		}
		ok = append(ok, j)
	}

	// Newest first. "Previous" is the older neighbour.
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].published.Equal(posts[j].published) {
			return posts[i].published.After(posts[j].published)
		}
		return posts[i].url < posts[j].url
	})
	for i, p := range posts {
		p.vars = map[string]any{"post": p.info()}
		if i+1 < len(posts) {
			p.vars["prev_post"] = posts[i+1].link()
		}
		if i > 0 {
			p.vars["next_post"] = posts[i-1].link()
		}
	}

	return ok, errs
}

func (p *post) info() map[string]any {
	return map[string]any{
		"title":       p.fm.Title,
		"url":         p.url,
		"date":        p.published.Format("January 2, 2006"),
		"author":      p.fm.Author,
		"description": p.fm.Description,
		"tags":        strings.Join(p.fm.Tags, ", "),
	}
}

func (p *post) link() map[string]any {
	return map[string]any{"url": p.url, "title": p.fm.Title}
}
