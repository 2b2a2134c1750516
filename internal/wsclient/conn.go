// Package wsclient subscribes to a node's event feed over WebSocket.
package wsclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

const (
	idleTimeout    = 75 * time.Second
	pingEvery      = 30 * time.Second
	controlTimeout = 10 * time.Second
	maxErrorBody   = 512
)

var dialer = websocket.Dialer{
	HandshakeTimeout: 5 * time.Second,
}

// Conn is a read-only subscription to an event feed. Only control frames are
// ever written, serialized by ctrlMu.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	ctrlMu sync.Mutex
	once   sync.Once
}

// Dial opens the feed at feedURL, e.g. ws://localhost:8090/events.
func Dial(ctx context.Context, feedURL string, logger *slog.Logger) (*Conn, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp == nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("feed rejected subscription (%d): %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("feed rejected subscription (%d)", resp.StatusCode)
	}
	return &Conn{ws: ws, logger: logger.With("feed", u.Host)}, nil
}

// ReadLoop hands every valid envelope to onEnv until the feed closes or ctx
// ends. Messages that are not valid envelopes are logged and skipped.
func (c *Conn) ReadLoop(ctx context.Context, onEnv func(protocol.Envelope)) error {
	c.extendDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})
	c.ws.SetPingHandler(func(data string) error {
		c.extendDeadline()
		return c.control(websocket.PongMessage, []byte(data))
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.keepalive(ctx, stop)

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("feed read failed", "error", err)
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("skipping feed message", "error", err)
			continue
		}
		onEnv(env)
	}
}

// keepalive pings the feed and closes the socket when ctx ends, which
// unblocks ReadMessage.
func (c *Conn) keepalive(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-ticker.C:
			if err := c.control(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("feed ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Conn) extendDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
}

func (c *Conn) control(messageType int, data []byte) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return c.ws.WriteControl(messageType, data, time.Now().Add(controlTimeout))
}

// Close says goodbye with a normal close frame and drops the socket.
// Later calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.ws.Close()
	})
	return err
}
