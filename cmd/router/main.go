// Command router runs the consistent-hash sharding front-end together
// with its own in-process worker backends, per spec.md's "workers may
// run as parallel threads within one process" note.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/blinkdb/blink/internal/router"
	"github.com/blinkdb/blink/internal/worker"
	"github.com/blinkdb/blink/pkg/config"
)

func main() {
	routerCfg := config.LoadRouterConfig()
	if err := routerCfg.Validate(); err != nil {
		logrus.Fatalf("invalid router configuration: %v", err)
	}

	workers := make([]*worker.Worker, 0, routerCfg.NumWorkers)
	for i := 0; i < routerCfg.NumWorkers; i++ {
		wCfg := &config.WorkerConfig{
			MaxMemoryBytes:  config.DefaultMaxMemoryBytes,
			ServerIP:        "127.0.0.1",
			ServerPort:      routerCfg.WorkerBase + i,
			BufferSize:      routerCfg.BufferSize,
			MaxEvents:       routerCfg.MaxEvents,
			RewriteInterval: config.DefaultRewriteInterval,
			BloomFilterSize: config.DefaultBloomFilterSize,
			LogPath:         fmt.Sprintf("blink-worker-%d.pkv", i),
			LogLevel:        routerCfg.LogLevel,
		}

		w, err := worker.New(wCfg)
		if err != nil {
			logrus.Fatalf("worker %d failed to start: %v", i, err)
		}
		workers = append(workers, w)

		go func(w *worker.Worker, idx int) {
			if err := w.Run(); err != nil {
				logrus.Fatalf("worker %d run loop failed: %v", idx, err)
			}
		}(w, i)
	}

	rt, err := router.New(routerCfg)
	if err != nil {
		logrus.Fatalf("router failed to start: %v", err)
	}

	go func() {
		if err := rt.Run(); err != nil {
			logrus.Fatalf("router run loop failed: %v", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":        routerCfg.Address(),
		"num_workers": routerCfg.NumWorkers,
	}).Info("router and workers started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutting down")
	rt.Stop()
	for i, w := range workers {
		if err := w.Stop(); err != nil {
			logrus.Errorf("error stopping worker %d: %v", i, err)
		}
	}
}
