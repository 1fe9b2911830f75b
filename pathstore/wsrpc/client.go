package wsrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wbrown/janus-pathstore/pathstore/protocol"
)

// Client is the consumer side of a connection. It carries one request
// at a time; concurrent RoundTrip calls are serialized. A failed round
// trip leaves the connection unusable, because an abandoned read would
// let a late response masquerade as the answer to the next request.
// Callers should Close and dial again.
type Client struct {
	settings *Settings

	mu sync.Mutex // serializes frames on the wire
	ws *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

var _ protocol.Transport = (*Client)(nil)

// Dial connects to a server's websocket endpoint. With a nonzero
// PingTimeout the client keeps an idle connection alive by sending
// empty frames. Nil settings take DefaultSettings.
func Dial(ctx context.Context, url string, settings *Settings) (*Client, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	dialer := &websocket.Dialer{HandshakeTimeout: settings.WsHandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{settings: settings, ws: ws, done: make(chan struct{})}
	if settings.PingTimeout > 0 {
		go c.keepalive()
	}
	return c, nil
}

// RoundTrip writes one request envelope and reads its response
// envelope. Cancelling the context tears the connection down.
func (c *Client) RoundTrip(ctx context.Context, envelope []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, envelope); err != nil {
		return nil, failure(ctx, "write request", err)
	}
	for {
		c.ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			return nil, failure(ctx, "read response", err)
		}
		if messageType != websocket.BinaryMessage || len(message) == 0 {
			continue
		}
		return message, nil
	}
}

// failure prefers the context's verdict over the transport error it
// provoked
func failure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ping writes an empty keepalive frame. Servers discard it without
// answering.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, make([]byte, 0))
}

func (c *Client) keepalive() {
	ticker := time.NewTicker(c.settings.PingTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		}
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
