package client

import (
	"context"
	"net"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/events"
)

// Watch streams envelopes from the daemon's /ws endpoint into handle until
// ctx is canceled or the connection drops. The first envelope is hud.init.
func (c *Client) Watch(ctx context.Context, handle func(events.Envelope)) error {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialUnix(ctx, c.socketPath)
		},
	}

	conn, _, err := dialer.DialContext(ctx, "ws://unix/ws", nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to connect to hud stream")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return pkgerrors.Wrapf(err, "hud stream closed")
		}
		env, err := events.Decode(b)
		if err != nil {
			logrus.WithError(err).Warn("skipping malformed envelope")
			continue
		}
		handle(env)
	}
}
