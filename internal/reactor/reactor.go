// Package reactor implements the single-threaded, readiness-driven event
// loop spec.md §4.6 describes: one epoll instance, level-triggered accept
// readiness, edge-triggered client read readiness, MAX_EVENTS-capped
// epoll_wait batches. Grounded on original_source/lib/server.h's
// Server::init and utils/create_non_locking_socket.h, translated from
// raw C socket/epoll calls into golang.org/x/sys/unix - deliberately
// bypassing net.Listen so the reactor, not the Go runtime's netpoller,
// owns readiness for every registered fd.
package reactor

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/blinkdb/blink/pkg/resp"
)

// Handler processes one complete, already-parsed RESP command and
// returns the RESP-encoded reply to write back.
type Handler func(args []string) []byte

// Reactor is a single-threaded epoll event loop bound to one listening
// socket. It is not safe for concurrent use from multiple goroutines;
// callers run one per worker/router OS thread.
type Reactor struct {
	listenFD   int
	epollFD    int
	bufferSize int
	maxEvents  int
	handler    Handler

	mu      sync.Mutex
	clients map[int]*clientConn

	log *logrus.Entry

	stopCh chan struct{}
}

type clientConn struct {
	fd      int
	pending []byte // bytes read but not yet forming a complete request
}

// New creates a Reactor bound to ip:port, with a read buffer of
// bufferSize bytes per readiness event and at most maxEvents events
// returned per epoll_wait call.
func New(ip string, port int, bufferSize, maxEvents int, handler Handler) (*Reactor, error) {
	listenFD, err := bindAndListen(ip, port)
	if err != nil {
		return nil, err
	}

	epollFD, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(listenFD)
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, listenFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(listenFD),
	}); err != nil {
		unix.Close(listenFD)
		unix.Close(epollFD)
		return nil, fmt.Errorf("reactor: epoll_ctl add listener: %w", err)
	}

	return &Reactor{
		listenFD:   listenFD,
		epollFD:    epollFD,
		bufferSize: bufferSize,
		maxEvents:  maxEvents,
		handler:    handler,
		clients:    make(map[int]*clientConn),
		log:        logrus.WithField("component", "reactor").WithField("addr", fmt.Sprintf("%s:%d", ip, port)),
		stopCh:     make(chan struct{}),
	}, nil
}

// bindAndListen creates a non-blocking, SO_REUSEADDR TCP listening
// socket bound to ip:port, mirroring create_non_locking_socket.h.
func bindAndListen(ip string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("reactor: set nonblocking: %w", err)
	}

	addr, err := parseIPv4(ip, port)
	if err != nil {
		unix.Close(fd)
		return 0, err
	}

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("reactor: bind %s:%d: %w", ip, port, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("reactor: listen: %w", err)
	}

	return fd, nil
}

func parseIPv4(ip string, port int) (*unix.SockaddrInet4, error) {
	addr := &unix.SockaddrInet4{Port: port}
	parsed := parseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("reactor: invalid IP address: %s", ip)
	}
	copy(addr.Addr[:], parsed)
	return addr, nil
}

// Run blocks, servicing readiness events until Stop is called or
// epoll_wait returns an unrecoverable error.
func (r *Reactor) Run() error {
	events := make([]unix.EpollEvent, r.maxEvents)
	r.log.Info("reactor listening")

	for {
		select {
		case <-r.stopCh:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epollFD, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case <-r.stopCh:
				// Stop closed the epoll fd to unblock this wait; not a real fault.
				return nil
			default:
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.listenFD {
				r.acceptOne()
			} else {
				r.readOne(fd)
			}
		}
	}
}

func (r *Reactor) acceptOne() {
	connFD, _, err := unix.Accept(r.listenFD)
	if err != nil {
		if err != unix.EAGAIN {
			r.log.WithError(err).Warn("accept failed")
		}
		return
	}

	if err := unix.SetNonblock(connFD, true); err != nil {
		r.log.WithError(err).Warn("set nonblocking failed")
		unix.Close(connFD)
		return
	}

	if err := unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_ADD, connFD, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET,
		Fd:     int32(connFD),
	}); err != nil {
		r.log.WithError(err).Warn("epoll_ctl add client failed")
		unix.Close(connFD)
		return
	}

	r.mu.Lock()
	r.clients[connFD] = &clientConn{fd: connFD}
	r.mu.Unlock()
}

func (r *Reactor) readOne(fd int) {
	r.mu.Lock()
	cc, ok := r.clients[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	buf := make([]byte, r.bufferSize)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			cc.pending = append(cc.pending, buf[:n]...)
		}
		if err != nil {
			if err == unix.EAGAIN {
				break // edge-triggered: drained the socket for now
			}
			r.closeClient(fd)
			return
		}
		if n == 0 {
			r.closeClient(fd)
			return
		}
		if n < len(buf) {
			break
		}
	}

	r.drainRequests(cc)
}

// drainRequests parses as many complete RESP frames as are currently
// buffered for cc, dispatching and replying to each in turn, and leaves
// any trailing partial frame in cc.pending for the next readiness event.
func (r *Reactor) drainRequests(cc *clientConn) {
	for {
		args, consumed, ok := resp.ParseCommand(cc.pending)
		if !ok {
			return
		}
		cc.pending = cc.pending[consumed:]

		reply := r.handler(args)
		if err := writeAll(cc.fd, reply); err != nil {
			r.closeClient(cc.fd)
			return
		}
	}
}

func writeAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

func (r *Reactor) closeClient(fd int) {
	r.mu.Lock()
	_, ok := r.clients[fd]
	if ok {
		delete(r.clients, fd)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)
}

// Stop halts Run and releases the epoll fd and listening socket.
func (r *Reactor) Stop() error {
	close(r.stopCh)
	unix.Close(r.epollFD)
	return unix.Close(r.listenFD)
}
