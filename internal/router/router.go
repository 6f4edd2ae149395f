// Package router implements the consistent-hash sharding front-end
// spec.md §4.7 describes: a single-threaded reactor on the client side
// that, per request, looks up the owning worker on a hash ring, opens a
// fresh TCP connection to it, forwards the request, and relays the
// reply back. Grounded on original_source/lib/load_balancer.h's
// LoadBalancer::server_init/getServer.
package router

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blinkdb/blink/internal/reactor"
	"github.com/blinkdb/blink/pkg/config"
	"github.com/blinkdb/blink/pkg/hashring"
	"github.com/blinkdb/blink/pkg/resp"
)

// Router is the sharding front-end: a reactor plus a hash ring over a
// fixed set of worker backends.
type Router struct {
	cfg     *config.RouterConfig
	ring    *hashring.Ring
	reactor *reactor.Reactor
	dialTimeout time.Duration
	log     *logrus.Entry
}

// New builds a Router from cfg. Backend connections are not reused - a
// fresh TCP connection is opened to the chosen worker on every request.
func New(cfg *config.RouterConfig) (*Router, error) {
	nodes := make([]hashring.Node, 0, len(cfg.WorkerAddresses()))
	for _, addr := range cfg.WorkerAddresses() {
		ip, port, err := config.ParseAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		nodes = append(nodes, hashring.Node{IP: ip, Port: port})
	}

	rt := &Router{
		cfg:         cfg,
		ring:        hashring.New(nodes),
		dialTimeout: 2 * time.Second,
		log:         logrus.WithField("component", "router").WithField("addr", cfg.Address()),
	}

	r, err := reactor.New(cfg.ServerIP, cfg.ServerPort, cfg.BufferSize, cfg.MaxEvents, rt.route)
	if err != nil {
		return nil, fmt.Errorf("router: new reactor: %w", err)
	}
	rt.reactor = r

	return rt, nil
}

// route picks the command's key (the second RESP array element, which is
// the key for SET, GET and DEL; for CONFIG it is the subcommand, and a
// one-element command such as INFO is rejected as invalid), looks up its
// owning worker, and relays the request to it synchronously.
func (rt *Router) route(args []string) []byte {
	if len(args) < 2 {
		return resp.Error("invalid command")
	}
	key := args[1]

	node, ok := rt.ring.Get(key)
	if !ok {
		return resp.Error("no workers available")
	}

	addr := fmt.Sprintf("%s:%d", node.IP, node.Port)
	conn, err := net.DialTimeout("tcp", addr, rt.dialTimeout)
	if err != nil {
		rt.log.WithError(err).WithField("backend", addr).Warn("backend connect failed")
		return resp.Error("backend unavailable")
	}
	defer conn.Close()

	elems := make([][]byte, len(args))
	for i, a := range args {
		elems[i] = resp.BulkString(a)
	}
	request := resp.Array(elems...)

	if _, err := conn.Write(request); err != nil {
		rt.log.WithError(err).WithField("backend", addr).Warn("backend write failed")
		return resp.Error("backend unavailable")
	}

	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		rt.log.WithError(err).WithField("backend", addr).Warn("backend read failed")
		return resp.Error("backend unavailable")
	}

	return buf[:n]
}

// Run blocks, routing requests until Stop is called.
func (rt *Router) Run() error {
	rt.log.Info("router starting")
	return rt.reactor.Run()
}

// Stop halts the router's reactor.
func (rt *Router) Stop() error {
	rt.log.Info("router stopping")
	return rt.reactor.Stop()
}
