// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package devserver serves a site for local development.

[Serve] performs an initial build, watches the content and components
directories and rebuilds the whole site when something changes. Open pages
get a small script injected that keeps a WebSocket connection to the server
and reacts to pushed messages:

	reload                                  reload the page
	{"type": "css", "path": "/main.css"}    refetch a stylesheet in place
	{"type": "error", "message": "..."}     show a build error overlay
*/
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"

	"go.astrophena.name/stitch/internal/build"
	"go.astrophena.name/stitch/internal/changebus"
)

// ErrWatcherStartup is returned by Serve when the file watcher could not be
// set up.
var ErrWatcherStartup = errors.New("failed to start file watcher")

// debounceInterval is the minimum time between two accepted change events.
// Events arriving sooner are dropped.
const debounceInterval = 100 * time.Millisecond

var serveReadyHook func() // used in tests, called when Serve started serving the site

type state int32

const (
	stateIdle state = iota
	stateWatching
	stateDebouncing
	stateRebuilding
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateWatching:
		return "watching"
	case stateDebouncing:
		return "debouncing"
	case stateRebuilding:
		return "rebuilding"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

type server struct {
	c       *build.Config
	builder *build.Builder

	changes *changebus.Bus // watcher -> rebuild loop
	pending *changebus.Subscription
	clients *changebus.Bus // rebuild loop -> browsers

	debounce *debouncer
	state    atomic.Int32
}

func newServer(c *build.Config) (*server, error) {
	b := build.New(c)
	c = b.Config()

	for _, dir := range []string{c.Src, c.Dst, c.Components} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	s := &server{
		c:        c,
		builder:  b,
		changes:  new(changebus.Bus),
		clients:  new(changebus.Bus),
		debounce: &debouncer{d: debounceInterval},
	}
	s.pending = s.changes.Subscribe(64)
	return s, nil
}

func (s *server) setState(st state) { s.state.Store(int32(st)) }

func (s *server) getState() state { return state(s.state.Load()) }

// Serve builds the site and starts serving it on a provided host:port.
func Serve(ctx context.Context, c *build.Config, addr string) error {
	s, err := newServer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info(ctx, "performing an initial build")
	// Later builds only remove outputs that went stale while serving.
	s.c.Clean = true
	s.rebuild(ctx, nil)
	s.c.Clean = false

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherStartup, err)
	}
	defer watcher.Close()
	for _, dir := range []string{s.c.Src, s.c.Components} {
		if err := s.watchRecursive(watcher, dir); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWatcherStartup, dir, err)
		}
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", "http://"+l.Addr().String()))

	httpSrv := &http.Server{Handler: s.handler()}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				errCh <- err
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Go(func() { s.rebuildLoop(ctx) })
	wg.Go(func() { s.watchLoop(ctx, watcher) })
	s.setState(stateWatching)

	if serveReadyHook != nil {
		serveReadyHook()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case serveErr = <-errCh:
	}

	cancel()
	// Closing the bus ends every live reload connection.
	s.clients.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	err = httpSrv.Shutdown(shutdownCtx)
	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return err
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", &staticHandler{fs: os.DirFS(s.c.Dst)})
	mux.HandleFunc(reloadScriptPath, serveReloadScript)
	mux.HandleFunc(liveReloadPath, s.handleLiveReload)
	return mux
}

// rebuildLoop rebuilds the site for every batch of accepted changes and
// forwards the changes to connected clients once the build succeeded.
func (s *server) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.pending.C():
			if !ok {
				return
			}
			evs := []changebus.Event{ev}
		drain:
			for {
				select {
				case ev, ok := <-s.pending.C():
					if !ok {
						break drain
					}
					evs = append(evs, ev)
				default:
					break drain
				}
			}
			s.rebuild(ctx, evs)
		}
	}
}

func (s *server) rebuild(ctx context.Context, evs []changebus.Event) error {
	s.setState(stateRebuilding)
	defer s.setState(stateWatching)

	// Cached component lookups and expansions may be stale after any change.
	if len(evs) > 0 {
		s.builder.Invalidate()
	}
	for _, ev := range evs {
		if _, err := os.Lstat(ev.Path); !os.IsNotExist(err) {
			continue
		}
		if err := s.builder.Remove(ev.Path); err != nil {
			logger.Error(ctx, "failed to remove output of a deleted file", slog.String("path", ev.Path), slog.Any("err", err))
		}
	}

	if len(evs) > 0 {
		logger.Info(ctx, "triggering build", slog.Int("changes", len(evs)))
	}
	if _, err := s.builder.Build(ctx); err != nil {
		s.setState(stateFailed)
		s.report(ctx, err)
		return err
	}

	for _, ev := range evs {
		s.clients.Publish(ev)
	}
	return nil
}

// report logs a build failure and pushes it to connected clients.
func (s *server) report(ctx context.Context, err error) {
	location := "unknown"
	var be *build.BatchError
	if errors.As(err, &be) && len(be.Errs) > 0 {
		location = be.Errs[0].Path
	}
	logger.Error(ctx, "failed to rebuild the site", slog.Any("err", err), slog.String("location", location))
	s.clients.Publish(changebus.Event{
		Path:    location,
		Kind:    changebus.Error,
		Message: fmt.Sprintf("Build Error: %v\n\nLocation: %s", err, location),
	})
}

// within reports whether path is dir or inside it.
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
