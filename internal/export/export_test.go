package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/y0f/apifuzz/internal/httpcall"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/storage"
)

func record(id int, fuzzer, result string) *report.Record {
	return &report.Record{
		ID:              id,
		TestID:          "Test " + string(rune('0'+id)),
		Scenario:        "Add new field [apifuzzFuzzyField] inside the request",
		ExpectedResult:  "Should return [2XX]",
		Path:            "/pets",
		FullRequestPath: "http://api.local/pets",
		Request:         httpcall.Request{Method: "POST", URL: "http://api.local/pets", Body: `{"name":"Rex"}`},
		Response:        httpcall.Response{Code: 201, Body: `{"id":1}`},
		Fuzzer:          fuzzer,
		Result:          result,
		ResultDetails:   "Call returned as expected",
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "auto")
	ctx := context.Background()

	require.NoError(t, c.WriteToFile(ctx, record(1, "NewFieldsFuzzer", report.ResultSuccess)))
	require.NoError(t, c.WriteSummary(ctx, nil, 3, 1, 1, 1))
	require.NoError(t, c.WriteReportFiles(ctx))

	out := buf.String()
	require.Contains(t, out, "Test 1")
	require.Contains(t, out, "NewFieldsFuzzer POST /pets -> 201")
	require.Contains(t, out, "| Call returned as expected")
	require.Contains(t, out, "3 tests: 1 success, 1 warnings, 1 errors")
	// a bytes.Buffer is never a terminal
	require.NotContains(t, out, "\x1b[")
}

func TestConsoleColorOn(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "on")

	require.NoError(t, c.WriteToFile(context.Background(), record(2, "NewFieldsFuzzer", report.ResultError)))
	require.Contains(t, buf.String(), "\x1b[")
}

func TestJSONFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "report")
	j, err := NewJSONFiles(dir)
	require.NoError(t, err)
	ctx := context.Background()

	records := []*report.Record{
		record(1, "NewFieldsFuzzer", report.ResultSuccess),
		record(2, "NewFieldsFuzzer", report.ResultWarning),
		record(3, "ExtremePositiveValueInIntegerFieldsFuzzer", report.ResultError),
	}
	for _, r := range records {
		require.NoError(t, j.WriteToFile(ctx, r))
	}
	require.NoError(t, j.WriteSummary(ctx, records, 3, 1, 1, 1))
	require.NoError(t, j.WriteReportFiles(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "Test2.json"))
	require.NoError(t, err)
	var got report.Record
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, 2, got.ID)
	require.Equal(t, report.ResultWarning, got.Result)
	require.Equal(t, `{"name":"Rex"}`, got.Request.Body)

	data, err = os.ReadFile(filepath.Join(dir, summaryFile))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	require.Equal(t, 3, summary.Total)
	require.Len(t, summary.Tests, 3)
	require.Equal(t, "POST", summary.Tests[0].Method)

	data, err = os.ReadFile(filepath.Join(dir, fuzzersFile))
	require.NoError(t, err)
	var totals []FuzzerTotals
	require.NoError(t, json.Unmarshal(data, &totals))
	require.Equal(t, []FuzzerTotals{
		{Fuzzer: "ExtremePositiveValueInIntegerFieldsFuzzer", Errors: 1},
		{Fuzzer: "NewFieldsFuzzer", Success: 1, Warnings: 1},
	}, totals)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestSQLite(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "report.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	s, err := NewSQLite(ctx, store, "petstore.yml", "http://api.local")
	require.NoError(t, err)
	require.NotEmpty(t, s.RunID())

	r := record(1, "NewFieldsFuzzer", report.ResultWarning)
	r.BodyDiff = "@@ -1,1 +1,1 @@"
	require.NoError(t, s.WriteToFile(ctx, r))
	require.NoError(t, s.WriteSummary(ctx, []*report.Record{r}, 1, 0, 1, 0))
	require.NoError(t, s.WriteReportFiles(ctx))

	run, err := store.GetRun(ctx, s.RunID())
	require.NoError(t, err)
	require.Equal(t, 1, run.Total)
	require.Equal(t, 1, run.Warnings)
	require.NotNil(t, run.FinishedAt)

	res, err := store.ListTestCases(ctx, s.RunID(), storage.TestCaseFilter{}, storage.Pagination{})
	require.NoError(t, err)
	cases := res.Data.([]*storage.TestCase)
	require.Len(t, cases, 1)
	require.Equal(t, "POST", cases[0].Method)
	require.Equal(t, 201, cases[0].StatusCode)
	require.Equal(t, r.BodyDiff, cases[0].BodyDiff)

	var req httpcall.Request
	require.NoError(t, json.Unmarshal(cases[0].Request, &req))
	require.Equal(t, r.Request.URL, req.URL)
}

type failingExporter struct {
	err   error
	calls int
}

func (f *failingExporter) WriteToFile(context.Context, *report.Record) error {
	f.calls++
	return f.err
}

func (f *failingExporter) WriteSummary(context.Context, []*report.Record, int, int, int, int) error {
	f.calls++
	return f.err
}

func (f *failingExporter) WriteReportFiles(context.Context) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	first := &failingExporter{err: errors.New("disk full")}
	second := &failingExporter{}
	third := &failingExporter{err: errors.New("database locked")}
	m := Multi{first, second, third}
	ctx := context.Background()

	err := m.WriteToFile(ctx, record(1, "NewFieldsFuzzer", report.ResultSuccess))
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorContains(t, err, "disk full")
	require.ErrorContains(t, err, "database locked")

	require.Error(t, m.WriteSummary(ctx, nil, 0, 0, 0, 0))
	require.Error(t, m.WriteReportFiles(ctx))
	require.Equal(t, 3, second.calls)

	require.NoError(t, Multi{second}.WriteToFile(ctx, record(1, "NewFieldsFuzzer", report.ResultSuccess)))
}
