package connection

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/edwingeng/deque/v2"

	"github.com/yndnr/respkv-go/internal/protocol/resp"
)

// Defaults.
const (
	DefaultAddr        = "127.0.0.1:6379"
	DefaultDialTimeout = 5 * time.Second
	DefaultMaxPending  = 10000
)

// Errors.
var (
	ErrClosed     = errors.New("connection closed")
	ErrOverloaded = errors.New("connection overloaded")
)

// Options configures Dial.
type Options struct {
	// Password is sent with AUTH right after connecting.
	Password string
	// Username selects the two-argument AUTH form.
	Username string

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	DialTimeout time.Duration

	// MaxPending caps requests awaiting a reply.
	MaxPending int
}

// Result is the outcome of one request.
type Result struct {
	Reply resp.Frame
	Err   error
}

// Client is a pipelining RESP client. It is safe for concurrent use.
type Client struct {
	conn       net.Conn
	maxPending int

	// wmu serializes writers and is held across socket writes. mu guards
	// pending and err and is never held during I/O, so the reader can
	// complete requests while a large batch is still being written.
	wmu sync.Mutex
	bw  *bufio.Writer

	mu      sync.Mutex
	pending *deque.Deque[chan Result]
	err     error

	done chan struct{}
}

// Dial connects to addr. An addr of the form "unix:/path" dials a unix
// socket; anything else is a TCP host:port.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}

	network := "tcp"
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		network, addr = "unix", path
	}

	d := &net.Dialer{Timeout: opts.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if opts.TLS != nil {
		td := &tls.Dialer{NetDialer: d, Config: opts.TLS}
		conn, err = td.DialContext(ctx, network, addr)
	} else {
		conn, err = d.DialContext(ctx, network, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c := newClient(conn, opts.MaxPending)

	if opts.Password != "" {
		args := []string{"AUTH", opts.Password}
		if opts.Username != "" {
			args = []string{"AUTH", opts.Username, opts.Password}
		}
		reply, err := c.Do(ctx, args...)
		if err == nil && reply.IsError() {
			err = errors.New(reply.Str)
		}
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("auth: %w", err)
		}
	}
	return c, nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return newClient(conn, DefaultMaxPending)
}

func newClient(conn net.Conn, maxPending int) *Client {
	c := &Client{
		conn:       conn,
		maxPending: maxPending,
		bw:         bufio.NewWriter(conn),
		pending:    deque.NewDeque[chan Result](),
		done:       make(chan struct{}),
	}
	go c.listen()
	return c
}

// Send writes one request and returns a channel that receives its reply.
func (c *Client) Send(args ...string) <-chan Result {
	ch := c.enqueue([][]string{args})
	return ch[0]
}

// Do sends one request and waits for its reply. Server error replies are
// returned as frames, not as errors.
func (c *Client) Do(ctx context.Context, args ...string) (resp.Frame, error) {
	return wait(ctx, c.Send(args...))
}

// Pipeline writes all requests with a single flush and returns the replies
// in request order. It stops at the first transport error.
func (c *Client) Pipeline(ctx context.Context, cmds [][]string) ([]resp.Frame, error) {
	chans := c.enqueue(cmds)
	replies := make([]resp.Frame, 0, len(cmds))
	for _, ch := range chans {
		reply, err := wait(ctx, ch)
		if err != nil {
			return replies, err
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func wait(ctx context.Context, ch <-chan Result) (resp.Frame, error) {
	select {
	case r := <-ch:
		return r.Reply, r.Err
	case <-ctx.Done():
		return resp.Frame{}, ctx.Err()
	}
}

func (c *Client) enqueue(cmds [][]string) []chan Result {
	chans := make([]chan Result, len(cmds))
	for i := range chans {
		chans[i] = make(chan Result, 1)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	// Register before writing: replies may arrive before the flush ends.
	c.mu.Lock()
	err := c.err
	if err == nil && c.pending.Len()+len(cmds) > c.maxPending {
		err = ErrOverloaded
	}
	if err != nil {
		c.mu.Unlock()
		for _, ch := range chans {
			ch <- Result{Err: err}
		}
		return chans
	}
	for _, ch := range chans {
		c.pending.PushFront(ch)
	}
	c.mu.Unlock()

	for _, args := range cmds {
		if err := resp.Write(c.bw, resp.Command(args...)); err != nil {
			c.shutdown(err)
			return chans
		}
	}
	if err := c.bw.Flush(); err != nil {
		c.shutdown(err)
	}
	return chans
}

// listen decodes replies and completes pending requests oldest first.
func (c *Client) listen() {
	defer close(c.done)

	var (
		buf     []byte
		chunk   = make([]byte, 16*1024)
		scanner = resp.NewScanner(resp.NewDecoder())
		readErr error
	)

	for {
		f, n, err := scanner.Next(buf)
		if errors.Is(err, resp.ErrIncomplete) {
			if readErr != nil {
				c.shutdown(readErr)
				return
			}
			var m int
			m, readErr = c.conn.Read(chunk)
			buf = append(buf, chunk[:m]...)
			continue
		}
		if err != nil {
			c.shutdown(err)
			return
		}
		buf = buf[n:]

		c.mu.Lock()
		if c.pending.Len() == 0 {
			c.mu.Unlock()
			c.shutdown(fmt.Errorf("unexpected reply %s", f))
			return
		}
		ch := c.pending.PopBack()
		c.mu.Unlock()

		ch <- Result{Reply: f}
	}
}

// shutdown fails every pending request with err and closes the connection.
func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	for c.pending.Len() > 0 {
		c.pending.PopBack() <- Result{Err: c.err}
	}
	c.mu.Unlock()

	_ = c.conn.Close()
}

// Close closes the connection and waits for the reader to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
