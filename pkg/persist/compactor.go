package persist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// compactLoop runs the background rewrite scheduler, grounded on
// PersistenceKVStore::startRewriteScheduler: sleep rewriteInterval, then
// compact. Unlike the original, which only triggers once a dirty counter
// crosses a threshold, every tick here runs a compaction pass; the work
// is proportional to live file size and compaction blocks readers only
// during the final file and index swap.
func (s *Store) compactLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.rewriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.compact(); err != nil {
				s.log.WithError(err).Warn("compaction aborted")
			}
		}
	}
}

// compact walks the live log sequentially, keeping only the latest
// version of each live key, then atomically replaces the live file and
// rebuilds the index from scratch out of the surviving records - the
// "C++ part-b variant" behavior spec.md's Open Questions section
// recommends in place of the original's leak-forever tombstones.
func (s *Store) compact() error {
	tmpPath := s.path + ".rewrite.tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	scanFile, err := os.Open(s.path)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("persist: open for scan: %w", err)
	}
	defer scanFile.Close()

	newIdx := newTrie()
	newFilter := newCountingFilter(s.filterSize)

	reader := bufio.NewReader(scanFile)
	var offset int64
	var writeOffset int64
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\n")
			key, _, ok := splitRecord(trimmed)
			if ok && s.isLiveAt(key, offset) {
				n, werr := tmpFile.WriteString(line)
				if werr != nil {
					tmpFile.Close()
					return fmt.Errorf("persist: write temp record: %w", werr)
				}
				newIdx.insert(key, writeOffset)
				newFilter.insert(key)
				writeOffset += int64(n)
			}
			offset += int64(len(line))
		}
		if readErr != nil {
			if readErr != io.EOF {
				tmpFile.Close()
				return fmt.Errorf("persist: scan live file: %w", readErr)
			}
			break
		}
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("persist: sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("persist: close temp file: %w", err)
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("persist: close live file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		// Best effort to keep serving: reopen the untouched original.
		s.file, _ = os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
		return fmt.Errorf("persist: rename temp over live: %w", err)
	}

	newFile, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("persist: reopen after compaction: %w", err)
	}
	if _, err := newFile.Seek(0, io.SeekEnd); err != nil {
		newFile.Close()
		return fmt.Errorf("persist: seek new file: %w", err)
	}
	s.file = newFile

	s.idxMu.Lock()
	s.idx = newIdx
	s.filter = newFilter
	s.idxMu.Unlock()

	return nil
}

// isLiveAt reports whether offset is the current index's offset for key,
// i.e. this record on disk is the latest version and should survive
// compaction.
func (s *Store) isLiveAt(key string, offset int64) bool {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	current, ok := s.idx.search(key)
	return ok && current == offset
}
