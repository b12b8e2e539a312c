package storage

import (
	"context"
	"time"
)

// Store persists fuzzing runs and their test cases.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, r *Run) error
	FinishRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Test cases
	InsertTestCase(ctx context.Context, tc *TestCase) error
	ListTestCases(ctx context.Context, runID string, f TestCaseFilter, p Pagination) (*PaginatedResult, error)

	// Retention
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
