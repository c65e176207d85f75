package data

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// StreamLoader reads snapshots on demand using byte offset indexing,
// keeping one open file handle per ticker.
type StreamLoader struct {
	indexes map[string][]int64  // ticker -> line byte offsets
	files   map[string]*os.File // ticker -> open file handle
	mu      sync.RWMutex        // protects file seeks/reads
	logger  *zap.Logger
}

// Compile-time interface verification
var _ SnapshotLoader = (*StreamLoader)(nil)

func NewStreamLoader(dataDir, date string, logger *zap.Logger) (*StreamLoader, error) {
	loader := &StreamLoader{
		indexes: make(map[string][]int64),
		files:   make(map[string]*os.File),
		logger:  logger,
	}

	dateDir := filepath.Join(dataDir, date)

	err := filepath.Walk(dateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Base(path) != SnapshotFile {
			return nil
		}

		ticker := filepath.Base(filepath.Dir(path))

		offsets, file, err := loader.indexFile(path)
		if err != nil {
			logger.Warn("failed to index file", zap.String("path", path), zap.Error(err))
			return nil
		}

		loader.indexes[ticker] = offsets
		loader.files[ticker] = file

		logger.Info("indexed snapshots",
			zap.String("ticker", ticker),
			zap.Int("count", len(offsets)),
		)
		return nil
	})

	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("walking data directory: %w", err)
	}

	if len(loader.indexes) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", SnapshotFile, dateDir)
	}

	return loader, nil
}

// indexFile records the byte offset of every non-empty line and keeps the
// file open for later reads.
func (s *StreamLoader) indexFile(path string) ([]int64, *os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	var offsets []int64
	var offset int64

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if n := len(line); n > 0 && !(n == 1 && line[0] == '\n') {
			offsets = append(offsets, offset)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			file.Close()
			return nil, nil, err
		}

		offset += int64(len(line))
	}

	return offsets, file, nil
}

func (s *StreamLoader) GetAtIndex(ctx context.Context, ticker string, index int) (*Snapshot, error) {
	s.mu.RLock()
	offsets, ok := s.indexes[ticker]
	file := s.files[ticker]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if index < 0 || index >= len(offsets) {
		return nil, ErrIndexOutOfBounds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := file.Seek(offsets[index], io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek error: %w", err)
	}

	reader := bufio.NewReader(file)
	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read error: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(line, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	if snap.Ticker == "" {
		snap.Ticker = ticker
	}

	return &snap, nil
}

func (s *StreamLoader) GetLength(ticker string) (int, error) {
	s.mu.RLock()
	offsets, ok := s.indexes[ticker]
	s.mu.RUnlock()

	if !ok {
		return 0, ErrNotFound
	}
	return len(offsets), nil
}

func (s *StreamLoader) Exists(ticker string) bool {
	s.mu.RLock()
	_, ok := s.indexes[ticker]
	s.mu.RUnlock()

	return ok
}

func (s *StreamLoader) GetLoadedTickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickers := make([]string, 0, len(s.indexes))
	for t := range s.indexes {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func (s *StreamLoader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ticker, file := range s.files {
		if err := file.Close(); err != nil {
			s.logger.Warn("failed to close file", zap.String("ticker", ticker), zap.Error(err))
		}
	}

	s.indexes = nil
	s.files = nil
	return nil
}
