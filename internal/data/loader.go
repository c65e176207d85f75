package data

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("data not found")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// SnapshotLoader provides random access to chain snapshots per ticker.
type SnapshotLoader interface {
	// GetAtIndex returns the snapshot at the given index
	GetAtIndex(ctx context.Context, ticker string, index int) (*Snapshot, error)

	// GetLength returns the number of snapshots available
	GetLength(ticker string) (int, error)

	// Exists checks if snapshots exist for the ticker
	Exists(ticker string) bool

	// GetLoadedTickers returns all loaded tickers (for /tickers endpoint)
	GetLoadedTickers() []string

	// Close releases any resources
	Close() error
}

// SnapshotFile is the file name holding a ticker's snapshots for a date.
const SnapshotFile = "chain.jsonl"
