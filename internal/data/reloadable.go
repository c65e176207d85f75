package data

import (
	"context"
	"sync"
)

// ReloadableLoader wraps a SnapshotLoader so the server can switch replay
// dates without restarting.
type ReloadableLoader struct {
	mu      sync.RWMutex
	current SnapshotLoader
}

func NewReloadableLoader(initial SnapshotLoader) *ReloadableLoader {
	return &ReloadableLoader{
		current: initial,
	}
}

// Swap replaces the underlying loader and returns the old one, which the
// caller must close.
func (r *ReloadableLoader) Swap(next SnapshotLoader) SnapshotLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.current
	r.current = next
	return old
}

func (r *ReloadableLoader) GetAtIndex(ctx context.Context, ticker string, index int) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.GetAtIndex(ctx, ticker, index)
}

func (r *ReloadableLoader) GetLength(ticker string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.GetLength(ticker)
}

func (r *ReloadableLoader) Exists(ticker string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Exists(ticker)
}

func (r *ReloadableLoader) GetLoadedTickers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.GetLoadedTickers()
}

func (r *ReloadableLoader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Close()
}

// Compile-time interface verification
var _ SnapshotLoader = (*ReloadableLoader)(nil)
