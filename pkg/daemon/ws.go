package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/events"
	"github.com/charlie0129/batthud/pkg/hud"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	wsSendBuf      = 32
	wsBroadcastBuf = 128
)

// wsHub tracks websocket clients. Slow clients are disconnected when their
// send buffer fills.
type wsHub struct {
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		broadcast:  make(chan []byte, wsBroadcastBuf),
		register:   make(chan *wsClient, 64),
		unregister: make(chan *wsClient, 64),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Run processes hub events until ctx is canceled and disconnects all
// clients on shutdown.
func (h *wsHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"remoteAddr": c.remoteAddr,
				"clients":    n,
			}).Debug("ws client registered")

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*wsClient

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow client")
			}
		}
	}
}

func (h *wsHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *wsHub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *wsHub) removeClient(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.closeSend()

	logrus.WithFields(logrus.Fields{
		"remoteAddr": c.remoteAddr,
		"reason":     reason,
		"clients":    n,
	}).Debug("ws client disconnected")
}

// Broadcast enqueues a serialized frame. It drops the message if the hub
// queue is full.
func (h *wsHub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		logrus.WithField("bytes", len(msg)).Warn("ws hub broadcast queue full, dropping message")
	}
}

type wsClient struct {
	hub        *wsHub
	conn       *websocket.Conn
	send       chan []byte
	closeOnce  sync.Once
	remoteAddr string
}

func newWSClient(hub *wsHub, conn *websocket.Conn, remoteAddr string) *wsClient {
	return &wsClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, wsSendBuf),
		remoteAddr: remoteAddr,
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// writePump writes queued messages and pings. It exits on write error or
// when send is closed.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards incoming messages to detect disconnects and handle
// control frames.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.unregister <- c
			return
		}
	}
}

func (c *wsClient) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	entry := logrus.WithFields(logrus.Fields{
		"remoteAddr": c.remoteAddr,
		"op":         op,
	})
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		entry.WithField("code", ce.Code).Debug("ws client closed")
		return
	}
	entry.WithError(err).Debug("ws pump exiting")
}

var upgrader = websocket.Upgrader{
	// The socket is local. Browsers are not expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades the request, registers the client and sends hud.init
// with the current frame.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("ws upgrade failed")
		return
	}

	client := newWSClient(s.ws, conn, c.Request.RemoteAddr)

	initMsg, err := events.NewEnvelope(events.HUDInit, time.Now().UTC(), s.engine.Frame())
	if err != nil {
		logrus.WithError(err).Error("failed to encode hud.init")
		_ = conn.Close()
		return
	}
	client.send <- initMsg

	s.ws.register <- client

	// Pumps are not tied to the request context, which is canceled when
	// the handler returns.
	go client.writePump()
	go client.readPump()
}

// runBroadcaster forwards engine frames and decisions to websocket clients.
func runBroadcaster(ctx context.Context, hub *wsHub, frames <-chan hud.Frame, decisions <-chan AlertDecision) {
	for {
		var (
			typ  string
			data any
			at   time.Time
		)

		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			typ, data, at = events.HUDFrame, f, f.At
		case d, ok := <-decisions:
			if !ok {
				return
			}
			typ, data, at = events.Alert, d, time.Now()
		}

		msg, err := events.NewEnvelope(typ, at.UTC(), data)
		if err != nil {
			logrus.WithError(err).WithField("type", typ).Warn("ws broadcaster marshal failed")
			continue
		}
		hub.Broadcast(msg)
	}
}
