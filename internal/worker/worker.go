// Package worker wires one cache worker together: a reactor for
// non-blocking I/O, a dispatcher for command execution, and a two-tier
// store for data. Grounded on the teacher's internal/server package's
// role as the composition root between config and the serving loop.
package worker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blinkdb/blink/internal/reactor"
	"github.com/blinkdb/blink/pkg/config"
	"github.com/blinkdb/blink/pkg/dispatch"
	"github.com/blinkdb/blink/pkg/store"
)

// Worker is a single-threaded cache backend: one reactor, one
// dispatcher, one two-tier store. It shares no mutable state with any
// other worker in the same process.
type Worker struct {
	cfg     *config.WorkerConfig
	store   *store.Store
	reactor *reactor.Reactor
	log     *logrus.Entry
}

// New builds a Worker from cfg, opening its persistence log and binding
// its listening socket. The worker does not start serving until Run is
// called.
func New(cfg *config.WorkerConfig) (*Worker, error) {
	s, err := store.Open(store.Config{
		MaxMemoryBytes:  cfg.MaxMemoryBytes,
		LogPath:         cfg.LogPath,
		BloomFilterSize: cfg.BloomFilterSize,
		RewriteInterval: cfg.RewriteInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: open store: %w", err)
	}

	d := dispatch.New(s)

	w := &Worker{
		cfg:   cfg,
		store: s,
		log:   logrus.WithField("component", "worker").WithField("addr", cfg.Address()),
	}

	r, err := reactor.New(cfg.ServerIP, cfg.ServerPort, cfg.BufferSize, cfg.MaxEvents, d.Dispatch)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("worker: new reactor: %w", err)
	}
	w.reactor = r

	return w, nil
}

// Run blocks, serving requests until Stop is called.
func (w *Worker) Run() error {
	w.log.Info("worker starting")
	return w.reactor.Run()
}

// Stop halts the reactor and closes the persistence tier.
func (w *Worker) Stop() error {
	w.log.Info("worker stopping")
	reactorErr := w.reactor.Stop()
	storeErr := w.store.Close()
	if reactorErr != nil {
		return reactorErr
	}
	return storeErr
}
