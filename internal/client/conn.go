package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrDisconnected is returned once the server has closed the connection.
var ErrDisconnected = errors.New("disconnected from server")

// replyBuffer bounds one reply. The protocol has no framing: the server sends
// each reply in a single Write and one Read here is taken as the whole reply.
// A reply longer than this, or one split in transit, leaves bytes that would
// be paired with the next request.
const replyBuffer = 16 << 10

// Requester sends one request and returns its reply.
type Requester interface {
	Do(ctx context.Context, request string) (string, error)
}

// Conn is a client connection shared by the command loop and the status
// poller. Do holds a lock from write to read, so a request is always paired
// with its own reply.
type Conn struct {
	mu      sync.Mutex
	c       net.Conn
	buf     []byte
	timeout time.Duration
	closed  bool
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewConn(c, timeout), nil
}

// NewConn wraps an established connection. timeout bounds each request when
// the context has no deadline; zero means no bound.
func NewConn(c net.Conn, timeout time.Duration) *Conn {
	return &Conn{c: c, buf: make([]byte, replyBuffer), timeout: timeout}
}

// Do writes request and returns the next read from the server.
func (c *Conn) Do(ctx context.Context, request string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrDisconnected
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	c.c.SetDeadline(deadline)

	if _, err := c.c.Write([]byte(request)); err != nil {
		return "", c.fail(err)
	}
	n, err := c.c.Read(c.buf)
	if err != nil {
		return "", c.fail(err)
	}
	return string(c.buf[:n]), nil
}

// fail marks the connection dead; callers hold c.mu. After a timeout a late
// reply could pair with the next request, so the socket is dropped as well.
func (c *Conn) fail(err error) error {
	c.closed = true
	c.c.Close()

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: request timed out", ErrDisconnected)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return ErrDisconnected
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}

// Close sends a best-effort quit and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.c.SetWriteDeadline(time.Now().Add(time.Second))
	c.c.Write([]byte("quit"))
	return c.c.Close()
}
