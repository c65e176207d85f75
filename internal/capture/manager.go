// Package capture records live option chains into the snapshot store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/provider"
)

type Manager struct {
	source  analyzer.ChainSource
	baseDir string
	workers int
	now     func() time.Time
	logger  *zap.Logger
}

type BatchResult struct {
	Total     int
	Success   int
	NotFound  int
	Failed    int
	Contracts int
	Errors    []string
}

func NewManager(source analyzer.ChainSource, baseDir string, workers int, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		source:  source,
		baseDir: baseDir,
		workers: workers,
		now:     time.Now,
		logger:  logger,
	}
}

func (m *Manager) Execute(ctx context.Context, tasks []Task) (*BatchResult, error) {
	result := &BatchResult{Total: len(tasks)}

	if len(tasks) == 0 {
		return result, nil
	}

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.NotFound:
			result.NotFound++
		case r.Success:
			result.Success++
			result.Contracts += r.Contracts
		default:
			result.Failed++
			if r.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Task, r.Error))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) worker(ctx context.Context, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		if ctx.Err() != nil {
			return
		}

		result := m.processTask(ctx, task)

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (m *Manager) processTask(ctx context.Context, task Task) TaskResult {
	result := TaskResult{Task: task}

	snap, err := m.Capture(ctx, task.Ticker)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			m.logger.Debug("not found", zap.String("task", task.String()))
			result.NotFound = true
			return result
		}
		result.Error = err
		return result
	}

	path := task.OutputPath(m.baseDir)
	if prev, err := LastSnapshot(path); err != nil {
		m.logger.Warn("ignoring unreadable previous snapshot", zap.String("path", path), zap.Error(err))
	} else if prev != nil {
		snap.HistoricalGamma = NetGammaByExpiration(prev)
	}

	if err := AppendSnapshot(path, snap); err != nil {
		result.Error = err
		return result
	}

	for _, contracts := range snap.Chains {
		result.Contracts += len(contracts)
	}
	result.Expirations = len(snap.Chains)
	result.Success = true

	m.logger.Info("captured",
		zap.String("task", task.String()),
		zap.Int("expirations", result.Expirations),
		zap.Int("contracts", result.Contracts),
	)
	return result
}

// Capture fetches the quote and every expiration's chain for ticker.
func (m *Manager) Capture(ctx context.Context, ticker string) (*data.Snapshot, error) {
	quote, err := m.source.Quote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	expirations, err := m.source.Expirations(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching expirations: %w", err)
	}

	snap := &data.Snapshot{
		Timestamp: m.now().Unix(),
		Ticker:    ticker,
		Quote:     quote,
		Chains:    make(map[string][]data.OptionContract, len(expirations)),
	}
	for _, exp := range expirations {
		contracts, err := m.source.Chain(ctx, ticker, exp)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("skipping expiration",
				zap.String("ticker", ticker),
				zap.String("expiration", exp),
				zap.Error(err),
			)
			continue
		}
		snap.Chains[exp] = contracts
	}
	return snap, nil
}
