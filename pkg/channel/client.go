package channel

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ReasonServerRestart is the close reason the server sends when it is going
// away on purpose. The connection manager treats it as an invitation to
// reconnect immediately.
const ReasonServerRestart = "server restart"

// Client is one live websocket push channel. Messages on a single channel are
// delivered in send order; writes are serialized with a mutex so concurrent
// submitters cannot interleave frames.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
}

// Dial opens a push channel to the given ws:// or wss:// endpoint for the
// given teacher. The handshake is bounded by timeout; exceeding it counts as
// a failed attempt.
func Dial(ctx context.Context, endpoint, teacherID string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid channel endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("owner", teacherID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial push channel: %w", err)
	}

	log.Debugf("Push channel established to %s", endpoint)
	return &Client{conn: conn}, nil
}

// Send writes one envelope to the channel.
func (c *Client) Send(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

// Listen starts the reader goroutine. Every decoded envelope is passed to
// onMessage; when the channel dies, onDisconnect is called exactly once with
// the close reason (empty when the peer gave none).
func (c *Client) Listen(onMessage func(Envelope), onDisconnect func(reason string, err error)) {
	go func() {
		for {
			var env Envelope
			if err := c.conn.ReadJSON(&env); err != nil {
				reason := ""
				if closeErr, ok := err.(*websocket.CloseError); ok {
					reason = closeErr.Text
				}
				onDisconnect(reason, err)
				return
			}
			onMessage(env)
		}
	}()
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
