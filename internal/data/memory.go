package data

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// MemoryLoader keeps every snapshot for a date in memory.
type MemoryLoader struct {
	data   map[string][]Snapshot // key: ticker
	logger *zap.Logger
}

// Compile-time interface verification
var _ SnapshotLoader = (*MemoryLoader)(nil)

// NewMemoryLoader loads {dataDir}/{date}/{ticker}/chain.jsonl for every ticker.
func NewMemoryLoader(dataDir, date string, logger *zap.Logger) (*MemoryLoader, error) {
	loader := &MemoryLoader{
		data:   make(map[string][]Snapshot),
		logger: logger,
	}

	dateDir := filepath.Join(dataDir, date)

	err := filepath.Walk(dateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Base(path) != SnapshotFile {
			return nil
		}

		// Format: data/{date}/{ticker}/chain.jsonl
		ticker := filepath.Base(filepath.Dir(path))

		snapshots, err := loader.loadJSONL(path, ticker)
		if err != nil {
			logger.Warn("failed to load file", zap.String("path", path), zap.Error(err))
			return nil
		}

		loader.data[ticker] = snapshots
		logger.Info("loaded snapshots",
			zap.String("ticker", ticker),
			zap.Int("count", len(snapshots)),
		)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walking data directory: %w", err)
	}

	if len(loader.data) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", SnapshotFile, dateDir)
	}

	return loader, nil
}

// NewMemoryLoaderFromSnapshots builds a loader from snapshots already in memory.
func NewMemoryLoaderFromSnapshots(snapshots []Snapshot, logger *zap.Logger) *MemoryLoader {
	loader := &MemoryLoader{
		data:   make(map[string][]Snapshot),
		logger: logger,
	}
	for _, s := range snapshots {
		loader.data[s.Ticker] = append(loader.data[s.Ticker], s)
	}
	return loader
}

func (m *MemoryLoader) loadJSONL(path, ticker string) ([]Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snapshots []Snapshot
	scanner := bufio.NewScanner(file)

	// Full chains run to several megabytes per line
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 64*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var snap Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if snap.Ticker == "" {
			snap.Ticker = ticker
		}
		snapshots = append(snapshots, snap)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

func (m *MemoryLoader) GetAtIndex(ctx context.Context, ticker string, index int) (*Snapshot, error) {
	snapshots, ok := m.data[ticker]
	if !ok {
		return nil, ErrNotFound
	}
	if index < 0 || index >= len(snapshots) {
		return nil, ErrIndexOutOfBounds
	}
	return &snapshots[index], nil
}

func (m *MemoryLoader) GetLength(ticker string) (int, error) {
	snapshots, ok := m.data[ticker]
	if !ok {
		return 0, ErrNotFound
	}
	return len(snapshots), nil
}

func (m *MemoryLoader) Exists(ticker string) bool {
	_, ok := m.data[ticker]
	return ok
}

func (m *MemoryLoader) Close() error {
	m.data = nil
	return nil
}

// GetLoadedTickers returns all loaded tickers, sorted.
func (m *MemoryLoader) GetLoadedTickers() []string {
	tickers := make([]string, 0, len(m.data))
	for t := range m.data {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}
