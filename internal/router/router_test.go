package router

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinkdb/blink/internal/worker"
	"github.com/blinkdb/blink/pkg/config"
)

func startTestWorker(t *testing.T, port int) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.WorkerConfig{
		MaxMemoryBytes:  1 << 20,
		ServerIP:        "127.0.0.1",
		ServerPort:      port,
		BufferSize:      4096,
		MaxEvents:       64,
		RewriteInterval: 0,
		BloomFilterSize: 1000,
		LogPath:         filepath.Join(dir, "blink.pkv"),
		LogLevel:        "info",
	}
	w, err := worker.New(cfg)
	require.NoError(t, err)
	go w.Run()
	t.Cleanup(func() { w.Stop() })
	waitForListener(t, cfg.Address())
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener never came up on %s", addr)
}

func TestRouterForwardsToWorkerAndRelaysReply(t *testing.T) {
	startTestWorker(t, 16480)
	startTestWorker(t, 16481)

	cfg := &config.RouterConfig{
		ServerIP:   "127.0.0.1",
		ServerPort: 16490,
		BufferSize: 4096,
		MaxEvents:  64,
		NumWorkers: 2,
		WorkerBase: 16480,
		LogLevel:   "info",
	}

	rt, err := New(cfg)
	require.NoError(t, err)
	go rt.Run()
	t.Cleanup(func() { rt.Stop() })
	waitForListener(t, cfg.Address())

	conn, err := net.Dial("tcp", cfg.Address())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", readReply(t, conn))

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "$3\r\nbar\r\n", readReply(t, conn))
}

func TestRouterReportsBackendUnavailable(t *testing.T) {
	cfg := &config.RouterConfig{
		ServerIP:   "127.0.0.1",
		ServerPort: 16491,
		BufferSize: 4096,
		MaxEvents:  64,
		NumWorkers: 1,
		WorkerBase: 16590, // nothing listening here
		LogLevel:   "info",
	}

	rt, err := New(cfg)
	require.NoError(t, err)
	go rt.Run()
	t.Cleanup(func() { rt.Stop() })
	waitForListener(t, cfg.Address())

	conn, err := net.Dial("tcp", cfg.Address())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "-ERR backend unavailable\r\n", readReply(t, conn))
}

func readReply(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	buf := make([]byte, 256)
	n, err := r.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}
