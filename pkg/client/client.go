// Package client provides a minimal RESP client SDK for talking to a
// blink worker or router directly. It mirrors the teacher's client
// package's connection-pooling design, narrowed to string-only
// SET/GET/DEL (INFO and CONFIG GET have no client method) - no TTL, no
// hash/list/set commands, no consistent-hash node selection (that is
// the router's job, not the client's).
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blinkdb/blink/pkg/resp"
)

// Client is a connection-pooled RESP client to a single blink endpoint
// (a worker or a router).
type Client struct {
	address     string
	connTimeout time.Duration
	readTimeout time.Duration

	mu    sync.Mutex
	conns []net.Conn
	log   *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithConnTimeout overrides the default dial timeout.
func WithConnTimeout(d time.Duration) Option {
	return func(c *Client) { c.connTimeout = d }
}

// WithReadTimeout overrides the default response read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// New returns a Client targeting address ("host:port").
func New(address string, opts ...Option) *Client {
	c := &Client{
		address:     address,
		connTimeout: 5 * time.Second,
		readTimeout: 5 * time.Second,
		log:         logrus.WithField("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getConn() (net.Conn, error) {
	c.mu.Lock()
	if n := len(c.conns); n > 0 {
		conn := c.conns[n-1]
		c.conns = c.conns[:n-1]
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	dialer := &net.Dialer{Timeout: c.connTimeout}
	return dialer.DialContext(context.Background(), "tcp", c.address)
}

func (c *Client) putConn(conn net.Conn) {
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
}

func (c *Client) discard(conn net.Conn) {
	if err := conn.Close(); err != nil {
		c.log.WithError(err).Debug("error closing discarded connection")
	}
}

// do sends a RESP-encoded command array and returns the raw reply bytes.
func (c *Client) do(args ...string) ([]byte, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}

	elems := make([][]byte, len(args))
	for i, a := range args {
		elems[i] = resp.BulkString(a)
	}
	if _, err := conn.Write(resp.Array(elems...)); err != nil {
		c.discard(conn)
		return nil, fmt.Errorf("client: write: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		c.discard(conn)
		return nil, fmt.Errorf("client: set read deadline: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		c.discard(conn)
		return nil, fmt.Errorf("client: read: %w", err)
	}

	c.putConn(conn)
	return buf[:n], nil
}

// Set stores key/value. Returns an error if the server rejects the
// entry (e.g. too large to fit even after eviction).
func (c *Client) Set(key, value string) error {
	reply, err := c.do("SET", key, value)
	if err != nil {
		return err
	}
	if len(reply) > 0 && reply[0] == '-' {
		return fmt.Errorf("server error: %s", trimReply(reply))
	}
	return nil
}

// Get retrieves key's value. ok is false if the key is absent.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	reply, err := c.do("GET", key)
	if err != nil {
		return "", false, err
	}
	if len(reply) >= 5 && string(reply[:5]) == "$-1\r\n" {
		return "", false, nil
	}
	v, parseOK := parseBulkString(reply)
	if !parseOK {
		return "", false, fmt.Errorf("client: unexpected reply: %q", reply)
	}
	return v, true, nil
}

// Del deletes key, returning whether it was present.
func (c *Client) Del(key string) (bool, error) {
	reply, err := c.do("DEL", key)
	if err != nil {
		return false, err
	}
	return len(reply) > 0 && reply[0] == ':' && reply[1] == '1', nil
}

// Close closes all pooled connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.conns = nil
	return nil
}

func trimReply(reply []byte) string {
	s := string(reply)
	if len(s) > 2 && s[len(s)-2:] == "\r\n" {
		s = s[:len(s)-2]
	}
	if len(s) > 0 && s[0] == '-' {
		s = s[1:]
	}
	return s
}

func parseBulkString(reply []byte) (string, bool) {
	args, _, ok := resp.ParseCommand(append([]byte{'*', '1', '\r', '\n'}, reply...))
	if !ok || len(args) != 1 {
		return "", false
	}
	return args[0], true
}
