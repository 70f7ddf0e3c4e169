// SPDX-License-Identifier: EPL-2.0

package scpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrRemote wraps an error reply from the instrument.
var ErrRemote = errors.New("instrument error")

// Client sends queries over one connection. It is safe for concurrent use;
// queries are serialized.
type Client struct {
	mu    sync.Mutex
	conn  net.Conn
	limit int
}

// Dial connects to an instrument at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing instrument: %w", err)
	}
	return NewClient(conn), nil
}

func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, limit: 64 << 20}
}

func (c *Client) Close() error { return c.conn.Close() }

// Query sends one command, appending '?' when missing, and returns the raw
// JSON reply. An {"error": ...} reply becomes an ErrRemote error.
func (c *Client) Query(ctx context.Context, cmd string) (json.RawMessage, error) {
	cmd = strings.TrimSpace(cmd)
	if !strings.HasSuffix(cmd, "?") {
		cmd += "?"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return nil, fmt.Errorf("sending %s: %w", cmd, err)
	}
	body, err := ReadFrame(c.conn, c.limit)
	if err != nil {
		return nil, fmt.Errorf("reply to %s: %w", cmd, err)
	}

	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemote, e.Error)
	}
	return body, nil
}

// Fetch queries FETC for d and decodes the per-channel reply.
func (c *Client) Fetch(ctx context.Context, d time.Duration) (map[string][]float64, error) {
	body, err := c.Query(ctx, fmt.Sprintf("FETC:%g", d.Seconds()))
	if err != nil {
		return nil, err
	}
	var out map[string][]float64
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding fetch reply: %w", err)
	}
	return out, nil
}
