// Package persist implements the append-only key-value log that backs the
// two-tier store's cold data: a sequential log file, a trie-based
// in-memory index, a counting Bloom filter, and a background compactor.
// Grounded on original_source/lib/persistence_kv_store.h, translated from
// its C++ fstream/thread design to Go's os.File and goroutines.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Record separators: one record per line, "key value\n". Keys and values
// must not contain whitespace, matching spec.md's on-disk format.
const recordSep = ' '

// Store is the append-only, crash-recoverable key-value log. Reads hold a
// short lock around index access only; writes append to the file without
// touching the index lock, then take the index lock just long enough to
// record the new offset - mirroring the locking discipline spec.md's
// concurrency model calls for.
type Store struct {
	path string

	writeMu sync.Mutex // serializes "seek to end, write, note offset"
	fileMu  sync.RWMutex
	file    *os.File

	idxMu  sync.Mutex
	idx    *trie
	filter *countingFilter

	filterSize      int
	rewriteInterval time.Duration

	log      *logrus.Entry
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Open opens (creating if necessary) the log file at path and rebuilds the
// index and filter from it by a single forward scan, then, if
// rewriteInterval is positive, starts the background compactor on it.
func Open(path string, filterSize int, rewriteInterval time.Duration) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}

	s := &Store{
		path:            path,
		file:            f,
		idx:             newTrie(),
		filter:          newCountingFilter(filterSize),
		filterSize:      filterSize,
		rewriteInterval: rewriteInterval,
		log:             logrus.WithField("component", "persist"),
		stopCh:          make(chan struct{}),
	}

	if err := s.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}

	if rewriteInterval > 0 {
		s.wg.Add(1)
		go s.compactLoop()
	}

	return s, nil
}

// rebuildIndex performs the startup forward scan described in spec.md §6:
// "Restart reconstructs the index and filter by a single forward scan of
// the live file."
func (s *Store) rebuildIndex() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("persist: seek start: %w", err)
	}

	reader := bufio.NewReader(s.file)
	var offset int64
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\n")
			key, _, ok := splitRecord(trimmed)
			if ok {
				s.idx.insert(key, offset)
				s.filter.insert(key)
			}
			offset += int64(len(line))
		}
		if err != nil {
			break
		}
	}

	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("persist: seek end: %w", err)
	}
	return nil
}

func splitRecord(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, recordSep)
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// Insert appends key/value to the end of the log and records the key's
// new offset. If the log is unusable (the seek/write fails), the insert
// is logged and skipped - spec.md's PersistenceIoError semantics: the
// caller treats this as a cache-only operation, not a client-visible
// error.
func (s *Store) Insert(key, value string) error {
	s.writeMu.Lock()
	s.fileMu.RLock()
	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		s.fileMu.RUnlock()
		s.writeMu.Unlock()
		s.log.WithError(err).Warn("seek to end failed, skipping insert")
		return fmt.Errorf("persist: seek end: %w", err)
	}

	line := key + string(recordSep) + value + "\n"
	if _, err := s.file.WriteString(line); err != nil {
		s.fileMu.RUnlock()
		s.writeMu.Unlock()
		s.log.WithError(err).Warn("append failed, skipping insert")
		return fmt.Errorf("persist: append: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.log.WithError(err).Warn("fsync failed")
	}
	s.fileMu.RUnlock()
	s.writeMu.Unlock()

	s.idxMu.Lock()
	s.idx.insert(key, offset)
	s.filter.insert(key)
	s.idxMu.Unlock()
	return nil
}

// Get returns key's value from the log, or ok=false on a filter miss, an
// index miss, a tombstoned entry, or a corruption-suspected mismatch
// between the stored key at the indexed offset and the requested key.
func (s *Store) Get(key string) (string, bool) {
	s.idxMu.Lock()
	if !s.filter.contains(key) {
		s.idxMu.Unlock()
		return "", false
	}
	offset, ok := s.idx.search(key)
	s.idxMu.Unlock()
	if !ok {
		return "", false
	}

	s.fileMu.RLock()
	line, err := s.readLineAt(offset)
	s.fileMu.RUnlock()
	if err != nil {
		s.log.WithError(err).Warn("read at offset failed")
		return "", false
	}

	storedKey, value, ok := splitRecord(line)
	if !ok || storedKey != key {
		// Corruption/stale-offset suspected: discard the bad index entry.
		s.idxMu.Lock()
		s.idx.remove(key)
		s.idxMu.Unlock()
		return "", false
	}
	return value, true
}

func (s *Store) readLineAt(offset int64) (string, error) {
	r := io.NewSectionReader(s.file, offset, 1<<20)
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}

// Remove tombstones key and reports whether it was actually live (present
// and not already deleted) beforehand. No file write occurs; the stale
// record is reclaimed by the next compaction.
func (s *Store) Remove(key string) bool {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	_, wasLive := s.idx.search(key)
	s.idx.remove(key)
	if wasLive {
		s.filter.remove(key)
	}
	return wasLive
}

// Close stops the background compactor and closes the log file.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.file.Close()
}
