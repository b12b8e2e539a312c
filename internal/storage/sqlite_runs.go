package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// CreateRun inserts r. An empty ID is filled with a new uuid and a zero
// StartedAt with the current time.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO runs (id, contract, base_url, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Contract, r.BaseURL, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of r and stamps FinishedAt.
func (s *SQLiteStore) FinishRun(ctx context.Context, r *Run) error {
	if r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
	res, err := s.writeDB.ExecContext(ctx,
		`UPDATE runs SET finished_at=?, total=?, success=?, warnings=?, errors=? WHERE id=?`,
		formatTimePtr(r.FinishedAt), r.Total, r.Success, r.Warnings, r.Errors, r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.readDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) InsertTestCase(ctx context.Context, tc *TestCase) error {
	request, response := string(tc.Request), string(tc.Response)
	if request == "" {
		request = "{}"
	}
	if response == "" {
		response = "{}"
	}
	res, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO test_cases (run_id, test_id, fuzzer, scenario, expected_result, path, full_request_path,
		 method, status_code, request, response, result, result_details, body_diff, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.RunID, tc.TestID, tc.Fuzzer, tc.Scenario, tc.ExpectedResult, tc.Path, tc.FullRequestPath,
		tc.Method, tc.StatusCode, request, response, tc.Result, tc.ResultDetails, tc.BodyDiff,
		formatTime(tc.StartedAt))
	if err != nil {
		return fmt.Errorf("insert test case: %w", err)
	}
	tc.ID, _ = res.LastInsertId()
	return nil
}

func buildTestCaseWhere(runID string, f TestCaseFilter) (string, []any) {
	where := "run_id=?"
	args := []any{runID}

	if f.Result != "" {
		where += " AND result=?"
		args = append(args, f.Result)
	}
	if f.Fuzzer != "" {
		where += " AND fuzzer=?"
		args = append(args, f.Fuzzer)
	}
	if f.Path != "" {
		where += " AND path LIKE ?"
		args = append(args, "%"+f.Path+"%")
	}
	return where, args
}

// ListTestCases pages through the test cases of a run in insertion order.
func (s *SQLiteStore) ListTestCases(ctx context.Context, runID string, f TestCaseFilter, p Pagination) (*PaginatedResult, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 50
	}
	where, args := buildTestCaseWhere(runID, f)

	var total int64
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM test_cases WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count test cases: %w", err)
	}

	offset := (p.Page - 1) * p.PerPage
	rows, err := s.readDB.QueryContext(ctx,
		"SELECT "+testCaseColumns+" FROM test_cases WHERE "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, p.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	cases := []*TestCase{}
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &PaginatedResult{
		Data:       cases,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: int(math.Ceil(float64(total) / float64(p.PerPage))),
	}, nil
}

// PruneRuns deletes runs started before the cutoff together with their
// test cases and returns the number of deleted runs.
func (s *SQLiteStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	ts := formatTime(before)

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("prune begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM test_cases WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, ts); err != nil {
		return 0, fmt.Errorf("prune test cases: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune commit: %w", err)
	}
	return n, nil
}
