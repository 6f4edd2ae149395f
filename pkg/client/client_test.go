package client

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEchoServer accepts one connection and replies to each request
// with the next canned reply in order.
func startEchoServer(t *testing.T, replies [][]byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for _, reply := range replies {
			if _, err := readRESPArray(reader); err != nil {
				return
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

// readRESPArray consumes exactly one RESP array request off r, enough to
// keep the test server's request/reply pairing in lockstep.
func readRESPArray(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n := 0
	for _, c := range line[1 : len(line)-2] {
		n = n*10 + int(c-'0')
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil { // "$len"
			return nil, err
		}
		if _, err := r.ReadString('\n'); err != nil { // value + CRLF
			return nil, err
		}
	}
	return nil, nil
}

func TestClientSetReceivesOK(t *testing.T) {
	addr := startEchoServer(t, [][]byte{[]byte("+OK\r\n")})
	c := New(addr)
	defer c.Close()

	err := c.Set("foo", "bar")
	assert.NoError(t, err)
}

func TestClientGetHit(t *testing.T) {
	addr := startEchoServer(t, [][]byte{[]byte("$3\r\nbar\r\n")})
	c := New(addr)
	defer c.Close()

	v, ok, err := c.Get("foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestClientGetMiss(t *testing.T) {
	addr := startEchoServer(t, [][]byte{[]byte("$-1\r\n")})
	c := New(addr)
	defer c.Close()

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientDel(t *testing.T) {
	addr := startEchoServer(t, [][]byte{[]byte(":1\r\n")})
	c := New(addr)
	defer c.Close()

	deleted, err := c.Del("foo")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestClientSetErrorReply(t *testing.T) {
	addr := startEchoServer(t, [][]byte{[]byte("-ERR entry too large\r\n")})
	c := New(addr)
	defer c.Close()

	err := c.Set("foo", "bar")
	assert.Error(t, err)
}
