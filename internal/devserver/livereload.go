// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package devserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/coder/websocket"

	"go.astrophena.name/stitch/internal/changebus"
)

const (
	liveReloadPath   = "/_stitch/livereload"
	reloadScriptPath = "/_stitch/reload.js"

	clientBuffer = 16
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

//go:embed reload.js
var reloadJS []byte

// pushMessage is a JSON message for the client. Plain reloads are sent as
// the bare text "reload".
type pushMessage struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *server) handleLiveReload(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Error(r.Context(), "failed to accept live reload connection", slog.Any("err", err))
		return
	}
	defer conn.CloseNow()

	sub := s.clients.Subscribe(clientBuffer)
	defer sub.Close()

	// Clients never send messages. Reading is still needed to process
	// control frames and to notice the client going away.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := s.push(ctx, conn, ev); err != nil {
				logger.Info(ctx, "dropping live reload client", slog.Any("err", err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *server) push(ctx context.Context, conn *websocket.Conn, ev changebus.Event) error {
	msg, err := s.message(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

// message translates ev into what the client understands.
func (s *server) message(ev changebus.Event) ([]byte, error) {
	switch ev.Kind {
	case changebus.CSSChange:
		// Stylesheets outside of the content directory are not served
		// directly, so fall back to a reload.
		if u, ok := s.siteURL(ev.Path); ok {
			return json.Marshal(pushMessage{Type: "css", Path: u})
		}
	case changebus.Error:
		return json.Marshal(pushMessage{Type: "error", Message: ev.Message})
	}
	return []byte("reload"), nil
}

// siteURL returns the URL path a file in the content directory is served at.
func (s *server) siteURL(path string) (string, bool) {
	if !within(s.c.Src, path) {
		return "", false
	}
	absSrc, err := filepath.Abs(s.c.Src)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absSrc, absPath)
	if err != nil || rel == "." {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}
