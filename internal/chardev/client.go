package chardev

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultReplyTimeout bounds the wait for a write status.
const DefaultReplyTimeout = 5 * time.Second

// Client is an open session on a published node.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial opens a session on the node at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unixpacket", path)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", path, err)
	}
	return &Client{conn: conn, timeout: DefaultReplyTimeout}, nil
}

// SetTimeout changes how long Write waits for the status reply.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Write sends p as one write invocation and waits for its status.
//
// An empty p is rejected locally with ErrFault: an empty packet is
// indistinguishable from a hangup on the wire.
//
// Returns:
//   - int: 1 on success, 0 otherwise
//   - error: ErrInvalidArgument, ErrFault, ErrNoDevice or ErrInternal
func (c *Client) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, fmt.Errorf("%w: empty write", ErrFault)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, fmt.Errorf("setting deadline: %w", err)
		}
	}
	if _, err := c.conn.Write(p); err != nil {
		return 0, fmt.Errorf("sending write: %w", err)
	}

	reply := make([]byte, 1)
	if _, err := c.conn.Read(reply); err != nil {
		return 0, fmt.Errorf("reading status: %w", err)
	}

	if err := Status(reply[0]).Err(); err != nil {
		return 0, err
	}
	return 1, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}
