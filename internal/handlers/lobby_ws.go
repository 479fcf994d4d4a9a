// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/wordhex/internal/middleware"
	"github.com/jason-s-yu/wordhex/internal/models"
)

// Stream frame types.
const (
	frameLobby     = "lobby"
	frameLobbyList = "lobby_list"
)

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// LobbyWS streams snapshots of lobby {code} until the client goes away.
func (a *API) LobbyWS(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	a.stream(w, r, func(ctx context.Context, box *mailbox) func() {
		return a.app.Lobbies.SubscribeToLobby(ctx, code, func(l models.Lobby) {
			box.put(frame{Type: frameLobby, Data: l})
		})
	})
}

// LobbyListWS streams the lobby listing until the client goes away.
func (a *API) LobbyListWS(w http.ResponseWriter, r *http.Request) {
	a.stream(w, r, func(ctx context.Context, box *mailbox) func() {
		return a.app.Lobbies.SubscribeToLobbyList(ctx, func(l []models.Lobby) {
			box.put(frame{Type: frameLobbyList, Data: l})
		})
	})
}

// stream runs the shared upgrade, subscribe and write loop.
func (a *API) stream(w http.ResponseWriter, r *http.Request, subscribe func(context.Context, *mailbox) func()) {
	remoteAddr := r.RemoteAddr
	path := r.URL.Path

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: a.originPatterns(),
	})
	if err != nil {
		a.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}
	actor, err := a.actorFor(r)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid token")
		return
	}
	middleware.LogWebSocketConnect(a.logger, remoteAddr, path, actor.ID)

	// Clients only listen; CloseRead cancels ctx once they hang up.
	ctx := c.CloseRead(r.Context())
	box := newMailbox()
	unsubscribe := subscribe(ctx, box)
	defer unsubscribe()

	err = a.writeLoop(ctx, c, box)
	middleware.LogWebSocketDisconnect(a.logger, remoteAddr, path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// writeLoop sends the most recent pending frame until ctx ends. It returns
// nil when the client closed the stream.
func (a *API) writeLoop(ctx context.Context, c *websocket.Conn, box *mailbox) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				return err
			}
		case <-box.ready:
			for _, f := range box.drain() {
				data, err := json.Marshal(f)
				if err != nil {
					a.logger.Warnf("failed to marshal stream frame: %v", err)
					continue
				}
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = c.Write(writeCtx, websocket.MessageText, data)
				cancel()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	}
}

func (a *API) originPatterns() []string {
	if a.app.Config.Env == "production" && len(a.app.Config.AllowedOrigins) > 0 {
		return a.app.Config.AllowedOrigins
	}
	return []string{"*"}
}

// mailbox holds the frames a stream still has to send. Every frame carries a
// full snapshot, so only the newest frame of each type is kept.
type mailbox struct {
	mu      sync.Mutex
	pending map[string]frame
	order   []string
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{pending: make(map[string]frame), ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(f frame) {
	m.mu.Lock()
	if _, ok := m.pending[f.Type]; !ok {
		m.order = append(m.order, f.Type)
	}
	m.pending[f.Type] = f
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame, 0, len(m.order))
	for _, t := range m.order {
		out = append(out, m.pending[t])
	}
	m.pending = make(map[string]frame)
	m.order = nil
	return out
}
