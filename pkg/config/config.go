// Package config loads worker and router settings from flags
// and environment variables, following the precedence the teacher's
// config package establishes: flags, then environment, then defaults.
// Environment variables are prefixed "BLINK_".
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default worker configuration constants, matching spec.md §6's
// recognized process options.
const (
	DefaultMaxMemoryBytes   = 64 * 1024 * 1024
	DefaultServerIP         = "0.0.0.0"
	DefaultServerPort       = 6380
	DefaultBufferSize       = 4096
	DefaultMaxEvents        = 128
	DefaultRewriteInterval  = 30 * time.Second
	DefaultBloomFilterSize  = 100000
	DefaultNumWorkers       = 4
	DefaultLogLevel         = "info"
)

// WorkerConfig holds the settings a single cache worker needs: its
// listener address, its LRU capacity, its persistence tier tuning, and
// its reactor batch size.
type WorkerConfig struct {
	MaxMemoryBytes  int64
	ServerIP        string
	ServerPort      int
	BufferSize      int
	MaxEvents       int
	RewriteInterval time.Duration
	BloomFilterSize int
	LogPath         string
	LogLevel        string
}

// RouterConfig holds the settings a sharding front-end needs: its own
// listener plus the addresses of the worker backends it routes to.
type RouterConfig struct {
	ServerIP    string
	ServerPort  int
	BufferSize  int
	MaxEvents   int
	NumWorkers  int
	WorkerBase  int // first worker port; workers bind WorkerBase, WorkerBase+1, ...
	LogLevel    string
}

// Address returns the "ip:port" form suitable for net.Listen.
func (c *WorkerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.ServerIP, c.ServerPort)
}

// Address returns the "ip:port" form suitable for net.Listen.
func (c *RouterConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.ServerIP, c.ServerPort)
}

// LoadWorkerConfig parses command-line flags (falling back to BLINK_*
// environment variables, then defaults) into a WorkerConfig.
func LoadWorkerConfig() *WorkerConfig {
	cfg := &WorkerConfig{
		MaxMemoryBytes:  DefaultMaxMemoryBytes,
		ServerIP:        DefaultServerIP,
		ServerPort:      DefaultServerPort,
		BufferSize:      DefaultBufferSize,
		MaxEvents:       DefaultMaxEvents,
		RewriteInterval: DefaultRewriteInterval,
		BloomFilterSize: DefaultBloomFilterSize,
		LogPath:         "blink.pkv",
		LogLevel:        DefaultLogLevel,
	}
	applyWorkerEnv(cfg)

	var rewriteMs int64
	flag.Int64Var(&cfg.MaxMemoryBytes, "max-memory-bytes", cfg.MaxMemoryBytes, "LRU capacity in bytes")
	flag.StringVar(&cfg.ServerIP, "server-ip", cfg.ServerIP, "listener IP address")
	flag.IntVar(&cfg.ServerPort, "server-port", cfg.ServerPort, "listener port")
	flag.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "per-connection read buffer size")
	flag.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "reactor epoll_wait batch size")
	flag.Int64Var(&rewriteMs, "rewrite-interval-ms", cfg.RewriteInterval.Milliseconds(), "compactor period in milliseconds")
	flag.IntVar(&cfg.BloomFilterSize, "bloom-filter-size", cfg.BloomFilterSize, "counting filter bucket count")
	flag.StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "path to the append-only persistence log")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()
	cfg.RewriteInterval = time.Duration(rewriteMs) * time.Millisecond

	return cfg
}

func applyWorkerEnv(cfg *WorkerConfig) {
	if v := os.Getenv("BLINK_MAX_MEMORY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxMemoryBytes = n
		}
	}
	if v := os.Getenv("BLINK_SERVER_IP"); v != "" {
		cfg.ServerIP = v
	}
	if v := os.Getenv("BLINK_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = n
		}
	}
	if v := os.Getenv("BLINK_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferSize = n
		}
	}
	if v := os.Getenv("BLINK_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxEvents = n
		}
	}
	if v := os.Getenv("BLINK_REWRITE_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RewriteInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("BLINK_BLOOM_FILTER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BloomFilterSize = n
		}
	}
	if v := os.Getenv("BLINK_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("BLINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks that WorkerConfig's values are usable.
func (c *WorkerConfig) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}
	if c.MaxMemoryBytes < 1 {
		return fmt.Errorf("max memory bytes must be positive: %d", c.MaxMemoryBytes)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size must be positive: %d", c.BufferSize)
	}
	if c.MaxEvents < 1 {
		return fmt.Errorf("max events must be positive: %d", c.MaxEvents)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// LoadRouterConfig parses command-line flags (falling back to BLINK_*
// environment variables, then defaults) into a RouterConfig.
func LoadRouterConfig() *RouterConfig {
	cfg := &RouterConfig{
		ServerIP:   DefaultServerIP,
		ServerPort: 6390,
		BufferSize: DefaultBufferSize,
		MaxEvents:  DefaultMaxEvents,
		NumWorkers: DefaultNumWorkers,
		WorkerBase: DefaultServerPort,
		LogLevel:   DefaultLogLevel,
	}

	flag.StringVar(&cfg.ServerIP, "server-ip", cfg.ServerIP, "router listener IP address")
	flag.IntVar(&cfg.ServerPort, "server-port", cfg.ServerPort, "router listener port")
	flag.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "per-connection read buffer size")
	flag.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "reactor epoll_wait batch size")
	flag.IntVar(&cfg.NumWorkers, "num-workers", cfg.NumWorkers, "number of in-process worker backends")
	flag.IntVar(&cfg.WorkerBase, "worker-base-port", cfg.WorkerBase, "first worker listener port")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if v := os.Getenv("BLINK_NUM_WORKERS"); v != "" && !setFlags["num-workers"] {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumWorkers = n
		}
	}
	if v := os.Getenv("BLINK_SERVER_PORT"); v != "" && !setFlags["server-port"] {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = n
		}
	}
	return cfg
}

// Validate checks that RouterConfig's values are usable.
func (c *RouterConfig) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("num workers must be positive: %d", c.NumWorkers)
	}
	return nil
}

// WorkerAddresses returns the "ip:port" addresses of the in-process
// worker backends a router configured with cfg should dial.
func (c *RouterConfig) WorkerAddresses() []string {
	addrs := make([]string, c.NumWorkers)
	for i := 0; i < c.NumWorkers; i++ {
		addrs[i] = fmt.Sprintf("127.0.0.1:%d", c.WorkerBase+i)
	}
	return addrs
}

// ParseAddr splits an "ip:port" address into its parts for hashring.Node
// construction.
func ParseAddr(addr string) (ip string, port int, err error) {
	idx := strings.LastIndexByte(addr, ':')
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid address: %s", addr)
	}
	port, err = strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in address %s: %w", addr, err)
	}
	return addr[:idx], port, nil
}
