package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/middleware"
	"github.com/hongminglow/vault-be/internal/realtime"
	"github.com/hongminglow/vault-be/internal/storepath"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = wsPongWait * 9 / 10
	wsMaxFrame     = 4096
)

// Frame ops accepted from clients.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// ClientFrame is a request sent over the socket.
type ClientFrame struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// ErrorFrame reports a rejected request for one path.
type ErrorFrame struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

// SessionSource authenticates socket tokens and reports sign-outs.
type SessionSource interface {
	middleware.Authenticator
	OnChange(fn func(auth.Change)) func()
}

// RealtimeHandler upgrades /ws connections and bridges them to the hub.
// Anonymous sockets may watch public paths; private paths need a session.
type RealtimeHandler struct {
	hub      *realtime.Hub
	sessions SessionSource
	cookies  middleware.TokenSource
	upgrader websocket.Upgrader
}

// NewRealtimeHandler builds the handler. allowedOrigins follows the CORS
// setting; "*" accepts any origin.
func NewRealtimeHandler(hub *realtime.Hub, sessions SessionSource, cookies middleware.TokenSource, allowedOrigins []string) *RealtimeHandler {
	allowAll := lo.Contains(allowedOrigins, "*")
	allowed := lo.SliceToMap(allowedOrigins, func(o string) (string, struct{}) {
		return strings.ToLower(strings.TrimRight(o, "/")), struct{}{}
	})
	return &RealtimeHandler{
		hub:      hub,
		sessions: sessions,
		cookies:  cookies,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := allowed[strings.ToLower(origin)]
				return ok
			},
		},
	}
}

// Register attaches the websocket endpoint.
func (h *RealtimeHandler) Register(r *mux.Router) {
	r.HandleFunc("/ws", h.handle).Methods(http.MethodGet)
}

func (h *RealtimeHandler) handle(w http.ResponseWriter, r *http.Request) {
	var id auth.Identity
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.RequestToken(r, h.cookies)
	}
	if token != "" {
		var err error
		id, err = h.sessions.Authenticate(token)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "session is invalid or expired")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{conn: conn, hub: h.hub, owner: id.UserID, tokenID: id.TokenID, subs: make(map[string]*realtime.Subscription)}
	if c.owner != "" {
		unregister := h.sessions.OnChange(c.onIdentityChange)
		defer unregister()
	}
	go c.pingLoop(ctx)
	c.readLoop(ctx)
	cancel()
	c.closeAll()
	_ = conn.Close()
}

type wsConn struct {
	conn *websocket.Conn
	hub  *realtime.Hub

	writeMu sync.Mutex

	mu      sync.Mutex
	owner   string
	tokenID string
	subs    map[string]*realtime.Subscription
}

func (c *wsConn) currentOwner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// onIdentityChange demotes the socket to anonymous when its session is
// signed out and ends every view it had open.
func (c *wsConn) onIdentityChange(ch auth.Change) {
	if ch.Kind != auth.SignedOut {
		return
	}
	c.mu.Lock()
	if c.owner == "" || c.tokenID != ch.TokenID {
		c.mu.Unlock()
		return
	}
	owner := c.owner
	c.owner, c.tokenID = "", ""
	subs := lo.Values(c.subs)
	c.subs = make(map[string]*realtime.Subscription)
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	slog.Info("websocket session signed out", "user", owner, "closed", len(subs))
	go c.write(ErrorFrame{Error: "signed out"})
}

func (c *wsConn) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(wsMaxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var frame ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read ended", "owner", c.currentOwner(), "error", err)
			}
			return
		}
		switch frame.Op {
		case OpSubscribe:
			c.subscribe(ctx, frame.Path)
		case OpUnsubscribe:
			c.unsubscribe(frame.Path)
		default:
			c.write(ErrorFrame{Error: "op must be subscribe or unsubscribe", Path: frame.Path})
		}
	}
}

// subscribe opens raw for the socket's current owner. A repeated subscribe
// replaces the earlier view so the client always gets a fresh snapshot.
func (c *wsConn) subscribe(ctx context.Context, raw string) {
	owner := c.currentOwner()
	sub, err := c.hub.Subscribe(ctx, raw, owner)
	if err != nil {
		c.write(ErrorFrame{Error: subscribeMessage(err), Path: raw})
		return
	}

	c.mu.Lock()
	if c.owner != owner {
		// Signed out while the snapshot was being read.
		c.mu.Unlock()
		sub.Close()
		c.write(ErrorFrame{Error: "signed out", Path: raw})
		return
	}
	prev := c.subs[sub.Path()]
	c.subs[sub.Path()] = sub
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	go func() {
		defer func() {
			c.forget(sub)
			sub.Close()
		}()
		for snap := range sub.C() {
			if err := c.write(snap); err != nil {
				return
			}
		}
	}()
}

// forget drops sub from the socket once its channel has ended, unless it has
// already been replaced.
func (c *wsConn) forget(sub *realtime.Subscription) {
	c.mu.Lock()
	if c.subs[sub.Path()] == sub {
		delete(c.subs, sub.Path())
	}
	c.mu.Unlock()
}

func (c *wsConn) unsubscribe(raw string) {
	p, err := storepath.Parse(raw)
	if err != nil {
		c.write(ErrorFrame{Error: err.Error(), Path: raw})
		return
	}
	c.mu.Lock()
	sub, ok := c.subs[p.String()]
	delete(c.subs, p.String())
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (c *wsConn) closeAll() {
	c.mu.Lock()
	subs := lo.Values(c.subs)
	c.subs = make(map[string]*realtime.Subscription)
	c.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

func (c *wsConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func subscribeMessage(err error) string {
	switch {
	case errors.Is(err, storepath.ErrInvalidPath):
		return "unknown path"
	case errors.Is(err, realtime.ErrForbidden):
		return "path belongs to another user"
	case errors.Is(err, realtime.ErrClosed):
		return "server is shutting down"
	default:
		slog.Error("subscribe failed", "error", err)
		return "failed to read path"
	}
}
