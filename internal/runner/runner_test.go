package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/export"
	"github.com/y0f/apifuzz/internal/fuzzer"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/storage"
	"github.com/y0f/apifuzz/internal/synth"
)

const petContract = `
openapi: 3.0.0
paths:
  /pets:
    post:
      operationId: createPet
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        "400":
          description: bad
components:
  schemas:
    Pet:
      type: object
      properties:
        name:
          type: string
          example: Rex
        age:
          type: integer
`

type petServer struct {
	*httptest.Server
	hits   atomic.Int64
	bodies chan string
}

func newPetServer(t *testing.T) *petServer {
	t.Helper()
	s := &petServer{bodies: make(chan string, 64)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		s.bodies <- string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"name":"Rex","age":1}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "petstore.yml")
	require.NoError(t, os.WriteFile(path, []byte(petContract), 0o644))

	cfg := config.Defaults()
	cfg.Contract.Path = path
	cfg.Target.BaseURL = baseURL + "/"
	cfg.Target.RateLimitPerSec = 1000
	cfg.Run.Fuzzers = []string{"LeadingWhitespacesInFieldsTrimValidateFuzzer", "NewFieldsFuzzer"}
	cfg.Report.Dir = filepath.Join(dir, "report")
	cfg.Report.DatabasePath = filepath.Join(dir, "apifuzz.db")
	cfg.Report.MetricsFile = filepath.Join(dir, "apifuzz.prom")
	cfg.Report.Color = "off"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	srv := newPetServer(t)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	var out bytes.Buffer
	session, err := Open(ctx, cfg, &out, testLogger())
	require.NoError(t, err)
	require.NotEmpty(t, session.RunID)

	res, err := New(cfg, session.Caller, session.Exporter, testLogger()).Run(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	// name gets one test case per whitespace character, age is not a
	// string, and NewFieldsFuzzer adds one more
	require.Equal(t, 1, res.Scenarios)
	require.Equal(t, 2, res.Fuzzers)
	require.Zero(t, res.Failures)
	require.Equal(t, report.Snapshot{Success: 7}, res.Stats)
	require.EqualValues(t, 7, srv.hits.Load())
	require.Contains(t, out.String(), "7 tests: 7 success, 0 warnings, 0 errors")

	for i := 1; i <= 7; i++ {
		require.FileExists(t, filepath.Join(cfg.Report.Dir, export.TestFile(i)))
	}
	data, err := os.ReadFile(filepath.Join(cfg.Report.Dir, "summary.json"))
	require.NoError(t, err)
	var summary export.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	require.Equal(t, 7, summary.Total)

	metrics, err := os.ReadFile(cfg.Report.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(metrics), `apifuzz_test_cases_total{result="success"} 7`)
	require.Contains(t, string(metrics), `apifuzz_scenarios_synthesized_total 1`)

	store, err := storage.NewSQLiteStore(cfg.Report.DatabasePath, 1)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(ctx, session.RunID)
	require.NoError(t, err)
	require.Equal(t, 7, run.Total)
	require.Equal(t, 7, run.Success)
	require.NotNil(t, run.FinishedAt)
}

func TestRunWorkerPool(t *testing.T) {
	srv := newPetServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Run.Workers = 4
	cfg.Report.DatabasePath = ""
	cfg.Report.MetricsFile = ""
	ctx := context.Background()

	session, err := Open(ctx, cfg, io.Discard, testLogger())
	require.NoError(t, err)
	defer session.Close()
	require.Empty(t, session.RunID)

	res, err := New(cfg, session.Caller, session.Exporter, testLogger()).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, report.Snapshot{Success: 7}, res.Stats)
	require.EqualValues(t, 7, srv.hits.Load())

	close(srv.bodies)
	var padded int
	for body := range srv.bodies {
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &payload))
		if name, _ := payload["name"].(string); name != "Rex" {
			padded++
		}
	}
	require.Equal(t, 6, padded)
}

func TestRunConfigOverrides(t *testing.T) {
	srv := newPetServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Report.DatabasePath = ""
	cfg.Report.MetricsFile = ""
	cfg.Run.Expect = map[string]string{"LeadingWhitespacesInFieldsTrimValidateFuzzer": "4XX"}
	ctx := context.Background()

	session, err := Open(ctx, cfg, io.Discard, testLogger())
	require.NoError(t, err)
	defer session.Close()

	res, err := New(cfg, session.Caller, session.Exporter, testLogger()).Run(ctx)
	require.NoError(t, err)
	// the service accepts padded names, which is now an error
	require.Equal(t, report.Snapshot{Success: 1, Errors: 6}, res.Stats)

	cfg.Run.SkipFields = []string{"name"}
	res, err = New(cfg, session.Caller, session.Exporter, testLogger()).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, report.Snapshot{Success: 1, Skipped: 1}, res.Stats)
}

func TestRunErrors(t *testing.T) {
	srv := newPetServer(t)
	logger := testLogger()

	t.Run("missing contract", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.Contract.Path = filepath.Join(t.TempDir(), "missing.yml")
		_, err := New(cfg, nil, export.Multi{}, logger).Run(context.Background())
		require.ErrorContains(t, err, "load contract")
	})

	t.Run("no fuzzers", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.Run.Fuzzers = []string{"Nope"}
		_, err := New(cfg, nil, export.Multi{}, logger).Run(context.Background())
		require.ErrorContains(t, err, "no fuzzers enabled")
	})

	t.Run("unknown path", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.Contract.Paths = []string{"/owners"}
		_, err := New(cfg, nil, export.Multi{}, logger).Run(context.Background())
		require.ErrorContains(t, err, "synthesize")
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(cfg, nil, export.Multi{}, logger).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

type failingFuzzer struct{}

func (failingFuzzer) Name() string        { return "Failing" }
func (failingFuzzer) Description() string { return "always fails to export" }
func (failingFuzzer) Fuzz(context.Context, *synth.Scenario) error {
	return io.ErrShortWrite
}

func TestPool(t *testing.T) {
	scenarios := []*synth.Scenario{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}
	q := queue(scenarios, []fuzzer.Fuzzer{failingFuzzer{}})
	require.Equal(t, 3, q.Len())
	require.Equal(t, "/a", q.Front().Scenario.Path)

	jobs := make(chan Job, q.Len())
	results := make(chan JobResult, q.Len())
	for q.Len() > 0 {
		jobs <- q.PopFront()
	}
	close(jobs)

	NewPool(2, jobs, results, testLogger()).Run(context.Background())
	close(results)

	var n int
	for jr := range results {
		require.ErrorIs(t, jr.Err, io.ErrShortWrite)
		n++
	}
	require.Equal(t, 3, n)
}
