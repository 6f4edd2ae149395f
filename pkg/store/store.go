// Package store composes the byte-accounted LRU cache in front of the
// append-only persistence log: hot entries live in RAM under a strict
// byte bound, evicted entries spill to the log, and a miss on the hot
// tier consults the log before giving up. The LRU remains authoritative
// for recency; a key may be hot, cold, both (a rehydrated key keeps its
// log record), or absent, and when it is in both tiers Get returns the
// hot copy.
package store

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/blinkdb/blink/pkg/lru"
	"github.com/blinkdb/blink/pkg/persist"
)

// Store is the two-tier store spec.md §4.3 describes.
type Store struct {
	hot  *lru.Cache
	cold *persist.Store
	sf   singleflight.Group
	log  *logrus.Entry
}

// Config configures a two-tier Store.
type Config struct {
	MaxMemoryBytes  int64
	LogPath         string
	BloomFilterSize int
	RewriteInterval time.Duration
}

// Open wires an LRU cache in front of a persistence log: eviction spills
// to the log, and a miss rehydrates from it. Concurrent Gets for the same
// cold key are collapsed into a single log read via singleflight, so a
// thundering herd of misses for one evicted key doesn't replay the disk
// read once per goroutine.
func Open(cfg Config) (*Store, error) {
	cold, err := persist.Open(cfg.LogPath, cfg.BloomFilterSize, cfg.RewriteInterval)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cold: cold,
		log:  logrus.WithField("component", "store"),
	}

	s.hot = lru.New(cfg.MaxMemoryBytes,
		lru.WithSpill(s.spill),
		lru.WithRehydrate(s.rehydrate),
	)
	return s, nil
}

func (s *Store) spill(key, value string) {
	if err := s.cold.Insert(key, value); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("spill to log failed")
	}
}

func (s *Store) rehydrate(key string) (string, bool) {
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		value, ok := s.cold.Get(key)
		if !ok {
			return nil, errMiss
		}
		return value, nil
	})
	if err != nil {
		return "", false
	}
	return v.(string), true
}

var errMiss = errCache("miss")

type errCache string

func (e errCache) Error() string { return string(e) }

// Set stores key/value, evicting as needed. ErrTooLarge (from pkg/lru) is
// returned unmodified when the entry cannot fit even after full eviction.
func (s *Store) Set(key, value string) error {
	return s.hot.Set(key, value)
}

// Get returns key's value, checking the hot tier first and falling back
// to the log on a miss.
func (s *Store) Get(key string) (string, bool) {
	return s.hot.Get(key)
}

// Del removes key from both tiers, reporting whether it was present in
// either.
func (s *Store) Del(key string) bool {
	hotHit := s.hot.Del(key)
	coldHit := s.cold.Remove(key)
	return hotHit || coldHit
}

// MemoryUsage, MaxMemory, and Size report on the hot tier only - the
// numbers spec.md's INFO command surfaces.
func (s *Store) MemoryUsage() int64 { return s.hot.MemoryUsage() }
func (s *Store) MaxMemory() int64   { return s.hot.MaxMemory() }
func (s *Store) Size() int          { return s.hot.Size() }

// Close releases the persistence tier's resources (background compactor,
// file handle).
func (s *Store) Close() error {
	return s.cold.Close()
}
