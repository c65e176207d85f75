package capture

import (
	"fmt"
	"path/filepath"

	"github.com/dgnsrekt/gex-analytics/internal/data"
)

// Task captures one ticker's chain into the snapshot store for a date.
type Task struct {
	Ticker string
	Date   string
}

func (t Task) OutputPath(baseDir string) string {
	return filepath.Join(baseDir, t.Date, t.Ticker, data.SnapshotFile)
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s", t.Date, t.Ticker)
}

// NewTasks builds one task per ticker for date.
func NewTasks(tickers []string, date string) []Task {
	tasks := make([]Task, 0, len(tickers))
	for _, ticker := range tickers {
		tasks = append(tasks, Task{Ticker: ticker, Date: date})
	}
	return tasks
}

type TaskResult struct {
	Task        Task
	Success     bool
	NotFound    bool
	Expirations int
	Contracts   int
	Error       error
}
