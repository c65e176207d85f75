package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SnapshotSource serves quote, expirations and chains from a single
// snapshot, making a recorded capture look like a live provider.
type SnapshotSource struct {
	snap *Snapshot
}

func NewSnapshotSource(snap *Snapshot) *SnapshotSource {
	return &SnapshotSource{snap: snap}
}

func (s *SnapshotSource) check(ticker string) error {
	if s.snap == nil || !strings.EqualFold(s.snap.Ticker, ticker) {
		return fmt.Errorf("%w: ticker %s", ErrNotFound, ticker)
	}
	return nil
}

func (s *SnapshotSource) Quote(ctx context.Context, ticker string) (Quote, error) {
	if err := s.check(ticker); err != nil {
		return Quote{}, err
	}
	return s.snap.Quote, nil
}

// Expirations returns the snapshot's expirations in ascending order.
func (s *SnapshotSource) Expirations(ctx context.Context, ticker string) ([]string, error) {
	if err := s.check(ticker); err != nil {
		return nil, err
	}
	exps := make([]string, 0, len(s.snap.Chains))
	for exp := range s.snap.Chains {
		exps = append(exps, exp)
	}
	sort.Strings(exps)
	return exps, nil
}

func (s *SnapshotSource) Chain(ctx context.Context, ticker, expiration string) ([]OptionContract, error) {
	if err := s.check(ticker); err != nil {
		return nil, err
	}
	contracts, ok := s.snap.Chains[expiration]
	if !ok {
		return nil, fmt.Errorf("%w: expiration %s", ErrNotFound, expiration)
	}
	return contracts, nil
}

// HistoricalGamma returns the recorded prior net gamma for an expiration.
func (s *SnapshotSource) HistoricalGamma(ctx context.Context, ticker, expiration string) (float64, bool) {
	if s.check(ticker) != nil || s.snap.HistoricalGamma == nil {
		return 0, false
	}
	v, ok := s.snap.HistoricalGamma[expiration]
	return v, ok
}
