// Command server runs a single blink cache worker: a non-blocking RESP
// server with an LRU core and an append-only persistence tier.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/blinkdb/blink/internal/worker"
	"github.com/blinkdb/blink/pkg/config"
)

func main() {
	cfg := config.LoadWorkerConfig()
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"addr":         cfg.Address(),
		"max_memory":   cfg.MaxMemoryBytes,
		"log_path":     cfg.LogPath,
		"buffer_size":  cfg.BufferSize,
		"max_events":   cfg.MaxEvents,
	}).Info("starting blink worker")

	w, err := worker.New(cfg)
	if err != nil {
		logrus.Fatalf("worker failed to start: %v", err)
	}

	go func() {
		if err := w.Run(); err != nil {
			logrus.Fatalf("worker run loop failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutting down worker")
	if err := w.Stop(); err != nil {
		logrus.Errorf("error stopping worker: %v", err)
		os.Exit(1)
	}
	logrus.Info("worker stopped")
}
