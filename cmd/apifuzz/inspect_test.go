package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/y0f/apifuzz/internal/storage"
)

func seededStore(t *testing.T) (string, *storage.Run) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "apifuzz.db")
	store, err := storage.NewSQLiteStore(path, 1)
	require.NoError(t, err)
	defer store.Close()

	run := &storage.Run{Contract: "petstore.yml", BaseURL: "http://localhost:8080", StartedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.CreateRun(ctx, run))
	results := []string{"success", "error", "warning", "error"}
	for i, result := range results {
		require.NoError(t, store.InsertTestCase(ctx, &storage.TestCase{
			RunID:         run.ID,
			TestID:        "Test " + string(rune('1'+i)),
			Fuzzer:        "NewFieldsFuzzer",
			Path:          "/pets",
			Method:        "POST",
			StatusCode:    200 + i,
			Result:        result,
			ResultDetails: "details " + result,
			StartedAt:     time.Now(),
		}))
	}
	run.Total, run.Success, run.Warnings, run.Errors = 4, 1, 1, 2
	require.NoError(t, store.FinishRun(ctx, run))

	unfinished := &storage.Run{Contract: "orders.yml", BaseURL: "http://localhost:9090"}
	require.NoError(t, store.CreateRun(ctx, unfinished))
	return path, run
}

func TestListRuns(t *testing.T) {
	path, run := seededStore(t)
	store, err := storage.NewSQLiteStore(path, 1)
	require.NoError(t, err)
	defer store.Close()

	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), store, &buf, 0))

	out := buf.String()
	require.Contains(t, out, "ID")
	require.Contains(t, out, run.ID)
	require.Contains(t, out, "petstore.yml")
	require.Contains(t, out, "orders.yml")
	require.Contains(t, out, "unfinished")
	// newest first
	require.Less(t, bytes.Index(buf.Bytes(), []byte("orders.yml")), bytes.Index(buf.Bytes(), []byte("petstore.yml")))

	buf.Reset()
	require.NoError(t, listRuns(context.Background(), store, &buf, 1))
	require.NotContains(t, buf.String(), "petstore.yml")
}

func TestListRunsEmpty(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "empty.db"), 1)
	require.NoError(t, err)
	defer store.Close()

	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), store, &buf, 10))
	require.Equal(t, "no runs recorded\n", buf.String())
}

func TestShowRun(t *testing.T) {
	path, run := seededStore(t)
	store, err := storage.NewSQLiteStore(path, 1)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, showRun(ctx, store, &buf, run.ID, storage.TestCaseFilter{Result: "error"}, storage.Pagination{}))
	out := buf.String()
	require.Contains(t, out, "run "+run.ID+" against http://localhost:8080 (petstore.yml)")
	require.Contains(t, out, "4 tests: 1 success, 1 warnings, 2 errors")
	require.Contains(t, out, "Test 2")
	require.Contains(t, out, "Test 4")
	require.NotContains(t, out, "Test 1")
	require.Contains(t, out, "page 1 of 1, 2 matching test cases")

	buf.Reset()
	require.NoError(t, showRun(ctx, store, &buf, run.ID, storage.TestCaseFilter{}, storage.Pagination{Page: 2, PerPage: 3}))
	require.Contains(t, buf.String(), "Test 4")
	require.NotContains(t, buf.String(), "Test 3")
	require.Contains(t, buf.String(), "page 2 of 2, 4 matching test cases")

	err = showRun(ctx, store, &buf, "missing", storage.TestCaseFilter{}, storage.Pagination{})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestShowCommand(t *testing.T) {
	path, run := seededStore(t)

	var buf bytes.Buffer
	showCmd.SetOut(&buf)
	showCmd.SetArgs([]string{run.ID, "--db", path, "--result", "warning"})
	require.NoError(t, showCmd.Execute())
	require.Contains(t, buf.String(), "Test 3")
	require.Contains(t, buf.String(), "details warning")
	require.NotContains(t, buf.String(), "details error")
}

func TestRunsCommandMissingDatabase(t *testing.T) {
	runsCmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "nope.db")})
	runsCmd.SetOut(&bytes.Buffer{})
	runsCmd.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, runsCmd.Execute(), "open report database")
}
