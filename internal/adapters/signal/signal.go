// Package signal is the websocket event router: it translates inbound
// client events into registry calls and fans resulting events out to
// the requesting connection, the admin, or the whole session room. No
// business logic lives here and no authorization is decided here.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"songbingo/internal/app"
	"songbingo/internal/config"
	"songbingo/internal/domain"
	"songbingo/internal/game"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn is one client endpoint. Writes go through a buffered send
// channel; a full buffer means the client is too slow and TrySend
// reports backpressure instead of blocking the room.
type wsConn struct {
	id    domain.ConnectionID
	token string // client token cookie, used for admin claims
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Controller owns the connection set and implements app.Notifier so
// registry-originated changes (auto-pause, teardown) reach the room.
type Controller struct {
	reg     *app.Registry
	cfg     *config.Config
	limiter *CommandLimiter

	mu    sync.RWMutex
	conns map[domain.ConnectionID]*wsConn
}

func NewController(reg *app.Registry, cfg *config.Config) *Controller {
	return &Controller{
		reg:     reg,
		cfg:     cfg,
		limiter: NewCommandLimiter(cfg.MarkLimit, cfg.MarkInterval),
		conns:   make(map[domain.ConnectionID]*wsConn),
	}
}

// HandleWS upgrades the request and runs the connection's pumps. The
// connection id is server-generated; the client token cookie only
// matters for claiming HTTP-created sessions.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := &wsConn{
		id:    domain.ConnectionID(uuid.NewString()),
		token: c.GetString("client_token"),
		conn:  ws,
		send:  make(chan []byte, 32),
	}

	ctl.mu.Lock()
	ctl.conns[conn.id] = conn
	ctl.mu.Unlock()
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Msg("new ws connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

// drop removes the connection and tells the registry it is gone. Safe
// to call more than once per connection.
func (ctl *Controller) drop(conn *wsConn) {
	conn.Close()
	ctl.mu.Lock()
	_, known := ctl.conns[conn.id]
	delete(ctl.conns, conn.id)
	ctl.mu.Unlock()
	if known {
		ctl.limiter.Forget(conn.id)
		ctl.reg.OnDisconnect(conn.id)
	}
}

func (ctl *Controller) lookup(id domain.ConnectionID) (*wsConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.conns[id]
	return c, ok
}

// broadcast fans an event out to every connection of the session room.
// Connections that cannot keep up are kicked, per the backpressure
// policy the rest of the room should not pay for.
func (ctl *Controller) broadcast(id domain.SessionID, v any) {
	ctl.sendTo(ctl.reg.Connections(id), v)
}

func (ctl *Controller) sendTo(conns []domain.ConnectionID, v any) {
	data, err := marshalEvent(v)
	if err != nil {
		return
	}
	for _, cid := range conns {
		c, ok := ctl.lookup(cid)
		if !ok {
			continue
		}
		if err := c.TrySend(data); err != nil {
			log.Warn().Str("module", "signal").Str("conn", string(cid)).
				Err(err).Msg("kicking slow connection")
			ctl.drop(c)
		}
	}
}

// TrackUpdate implements app.Notifier for timer-driven transitions.
func (ctl *Controller) TrackUpdate(id domain.SessionID, upd game.TrackUpdate) {
	ctl.broadcast(id, trackUpdateEvent{Type: "trackUpdate", TrackUpdate: upd})
}

// SessionEnded implements app.Notifier for admin teardown. The
// registry has already forgotten the session, so the recipients come
// with the call.
func (ctl *Controller) SessionEnded(id domain.SessionID, reason string, conns []domain.ConnectionID) {
	ctl.sendTo(conns, sessionEndedEvent{Type: "sessionEnded", Reason: reason})
}

// writeTimeout bounds a single frame write in the pumps.
const writeTimeout = 5 * time.Second
