// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"log/slog"
	"path/filepath"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"

	"go.astrophena.name/stitch/internal/analyze"
	"go.astrophena.name/stitch/internal/build"
	"go.astrophena.name/stitch/internal/devserver"
	"go.astrophena.name/stitch/internal/env"
	"go.astrophena.name/stitch/internal/seo"
	"go.astrophena.name/stitch/internal/vars"
)

func main() { cli.Main(new(app)) }

type app struct {
	inputDir           string
	outputDir          string
	componentsDir      string
	release            bool
	minify             bool
	enableSEO          bool
	seoConfig          string
	variables          string
	env                env.Env
	watch              bool
	listen             string
	workers            int
	noMarkdown         bool
	analyzePerformance bool
	securityChecks     bool
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.inputDir, "input-dir", "content", "Read pages, posts and assets from `dir`.")
	fs.StringVar(&a.outputDir, "output-dir", "output", "Write the built site into `dir`.")
	fs.StringVar(&a.componentsDir, "components-dir", "components", "Look up components in `dir`.")
	fs.BoolVar(&a.release, "release", false, "Build for release. Implies -minify, -security-checks and -env prod.")
	fs.BoolVar(&a.minify, "minify", false, "Minify pages and assets.")
	fs.BoolVar(&a.enableSEO, "enable-seo", false, "Inject SEO metadata and generate sitemap.xml, feed.xml and robots.txt.")
	fs.StringVar(&a.seoConfig, "seo-config", "seo_config.toml", "Read site-wide SEO metadata from `file`.")
	fs.StringVar(&a.variables, "variables", "variables.toml", "Read variables from `file`.")
	fs.Var(&a.env, "env", "Build for `environment` (dev, staging or prod).")
	fs.BoolVar(&a.watch, "watch", false, "Serve the site, rebuilding and reloading it on changes.")
	fs.StringVar(&a.listen, "listen", "localhost:3000", "Listen on `host:port` in watch mode.")
	fs.IntVar(&a.workers, "workers", 0, "Build `n` files concurrently. If zero, uses the number of CPUs.")
	fs.BoolVar(&a.noMarkdown, "no-markdown", false, "Copy .md files verbatim instead of converting them.")
	fs.BoolVar(&a.analyzePerformance, "analyze-performance", false, "Write a performance report for each page into the performance directory of the output.")
	fs.BoolVar(&a.securityChecks, "security-checks", false, "Log resources and links loaded over plain HTTP.")
}

func (a *app) Run(ctx context.Context) error {
	c, err := a.config()
	if err != nil {
		return err
	}

	if a.watch {
		return devserver.Serve(ctx, c, a.listen)
	}

	c.Clean = true
	res, err := build.Build(ctx, c)
	if err != nil {
		return err
	}
	var written int
	for _, o := range res.Outputs {
		if o.Written {
			written++
		}
	}
	logger.Info(ctx, "wrote site",
		slog.String("dir", c.Dst),
		slog.Int("files", len(res.Outputs)),
		slog.Int("written", written),
		slog.String("env", c.Env.String()),
	)
	return nil
}

func (a *app) config() (*build.Config, error) {
	if a.release {
		a.minify = true
		a.securityChecks = true
		a.env = env.Prod
	}
	if a.env == "" {
		a.env = env.Dev
	}

	v, err := vars.Load(a.variables, a.env)
	if err != nil {
		return nil, err
	}

	c := &build.Config{
		Src:          a.inputDir,
		Dst:          a.outputDir,
		Components:   a.componentsDir,
		Env:          a.env,
		Workers:      a.workers,
		SkipMarkdown: a.noMarkdown,
		Minify:       a.minify,
		Vars:         v,
	}
	if a.enableSEO {
		site, err := seo.LoadSite(a.seoConfig)
		if err != nil {
			return nil, err
		}
		c.Site = site
	}
	if a.analyzePerformance {
		c.Checkers = append(c.Checkers, &analyze.Performance{
			Src: a.inputDir,
			Dst: a.outputDir,
			Dir: filepath.Join(a.outputDir, "performance"),
		})
	}
	if a.securityChecks {
		c.Checkers = append(c.Checkers, analyze.Security{})
	}
	return c, nil
}
