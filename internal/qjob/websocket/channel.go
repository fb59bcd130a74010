// Package websocket implements the streaming status path: a single-use
// transport channel over one websocket connection, and the stream client
// that waits for a job's terminal status on top of it.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"qjob/internal/qjob/api"
)

// ErrChannelClosed reports that the peer closed the connection before the
// caller was done with it.
var ErrChannelClosed = errors.New("channel closed")

// Channel holds exactly one underlying websocket connection. There is no
// implicit reconnection; a failed channel is discarded and a new one dialed.
type Channel struct {
	conn      *gws.Conn
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a channel to the given ws:// or wss:// endpoint. Any failure
// to establish the connection surfaces as ConnectError.
func Dial(ctx context.Context, rawURL string, header http.Header) (*Channel, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &api.ConnectError{URL: rawURL, Err: err}
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, &api.ConnectError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	dialer := gws.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("handshake rejected (http %d): %w", resp.StatusCode, err)
		}
		return nil, &api.ConnectError{URL: rawURL, Err: err}
	}

	return &Channel{conn: conn}, nil
}

// Send writes one JSON frame to the peer.
func (c *Channel) Send(v interface{}) error {
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return nil
}

// Receive blocks until a frame arrives, the timeout elapses, or the peer
// closes the connection. The caller resumes exactly once per such event.
func (c *Channel) Receive(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &api.TimeoutError{Op: "channel receive", Budget: timeout}
		}
		return nil, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return data, nil
}

// Close tears down the connection. Safe to call from any exit path and
// from a concurrent canceller; only the first call does work.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
