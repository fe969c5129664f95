package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/batthud/pkg/events"
	"github.com/charlie0129/batthud/pkg/hud"
)

// serve runs router on a unix socket in a temp dir.
func serve(t *testing.T, router http.Handler) string {
	t.Helper()

	// Unix socket paths are limited in length, so avoid t.TempDir.
	dir, err := os.MkdirTemp("", "batthud")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "d.sock")

	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	srv := &http.Server{Handler: router}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	return path
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return gin.New()
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestNotFound(t *testing.T) {
	c := NewClient(serve(t, newRouter()))
	_, err := c.Get("/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequests(t *testing.T) {
	r := newRouter()
	var clicked string
	var hovered bool
	var limit int
	r.GET("/version", func(c *gin.Context) { c.IndentedJSON(http.StatusOK, "v1.2.3") })
	r.GET("/hud", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, hud.Frame{State: hud.Revealed, Title: "Charging"})
	})
	r.POST("/hud/click", func(c *gin.Context) {
		_ = c.BindJSON(&clicked)
		c.IndentedJSON(http.StatusCreated, "ok")
	})
	r.POST("/hud/hover", func(c *gin.Context) {
		_ = c.BindJSON(&hovered)
		c.IndentedJSON(http.StatusCreated, "ok")
	})
	r.PUT("/charge-limit", func(c *gin.Context) {
		_ = c.BindJSON(&limit)
		if limit > 100 {
			c.IndentedJSON(http.StatusBadRequest, "too high")
			return
		}
		c.IndentedJSON(http.StatusCreated, "ok")
	})
	c := NewClient(serve(t, r))

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	f, err := c.GetHUD()
	require.NoError(t, err)
	assert.Equal(t, hud.Revealed, f.State)
	assert.Equal(t, "Charging", f.Title)

	_, err = c.Click(hud.Detailed)
	require.NoError(t, err)
	assert.Equal(t, "detailed", clicked)

	_, err = c.Hover(true)
	require.NoError(t, err)
	assert.True(t, hovered)

	_, err = c.SetChargeLimit(80)
	require.NoError(t, err)
	assert.Equal(t, 80, limit)

	_, err = c.SetChargeLimit(120)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWatch(t *testing.T) {
	r := newRouter()
	upgrader := websocket.Upgrader{}
	r.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, typ := range []string{events.HUDInit, events.HUDFrame} {
			msg, _ := events.NewEnvelope(typ, time.Unix(1700000000, 0), hud.Frame{State: hud.Hidden})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	})
	c := NewClient(serve(t, r))

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	err := c.Watch(ctx, func(e events.Envelope) {
		got = append(got, e.Type)
		if len(got) == 2 {
			cancel()
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{events.HUDInit, events.HUDFrame}, got)
}
