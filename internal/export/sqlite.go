package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/storage"
)

// SQLite stores the records of one run in the report database.
type SQLite struct {
	store storage.Store
	run   *storage.Run
}

// NewSQLite creates the run row and returns an exporter bound to it.
func NewSQLite(ctx context.Context, store storage.Store, contract, baseURL string) (*SQLite, error) {
	run := &storage.Run{Contract: contract, BaseURL: baseURL}
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return &SQLite{store: store, run: run}, nil
}

// RunID identifies the run in the database.
func (s *SQLite) RunID() string { return s.run.ID }

func (s *SQLite) WriteToFile(ctx context.Context, r *report.Record) error {
	req, err := json.Marshal(r.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := json.Marshal(r.Response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return s.store.InsertTestCase(ctx, &storage.TestCase{
		RunID:           s.run.ID,
		TestID:          r.TestID,
		Fuzzer:          r.Fuzzer,
		Scenario:        r.Scenario,
		ExpectedResult:  r.ExpectedResult,
		Path:            r.Path,
		FullRequestPath: r.FullRequestPath,
		Method:          r.Request.Method,
		StatusCode:      r.Response.Code,
		Request:         req,
		Response:        resp,
		Result:          r.Result,
		ResultDetails:   r.ResultDetails,
		BodyDiff:        r.BodyDiff,
		StartedAt:       r.StartedAt,
	})
}

func (s *SQLite) WriteSummary(ctx context.Context, _ []*report.Record, total, success, warn, errors int) error {
	s.run.Total = total
	s.run.Success = success
	s.run.Warnings = warn
	s.run.Errors = errors
	return s.store.FinishRun(ctx, s.run)
}

func (s *SQLite) WriteReportFiles(context.Context) error { return nil }
