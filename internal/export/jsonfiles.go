package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/y0f/apifuzz/internal/report"
)

const (
	summaryFile = "summary.json"
	fuzzersFile = "fuzzers.json"
)

// JSONFiles writes every record to <dir>/Test<N>.json, the run summary to
// summary.json and per-fuzzer totals to fuzzers.json.
type JSONFiles struct {
	dir string

	mu      sync.Mutex
	fuzzers map[string]*FuzzerTotals
}

// Summary is the content of summary.json.
type Summary struct {
	Total    int            `json:"total"`
	Success  int            `json:"success"`
	Warnings int            `json:"warnings"`
	Errors   int            `json:"errors"`
	Tests    []SummaryEntry `json:"tests"`
}

type SummaryEntry struct {
	ID            int    `json:"id"`
	TestID        string `json:"test_id"`
	Fuzzer        string `json:"fuzzer"`
	Path          string `json:"path"`
	Method        string `json:"method"`
	Result        string `json:"result"`
	ResultDetails string `json:"result_details"`
}

// FuzzerTotals counts verdicts for one fuzzer.
type FuzzerTotals struct {
	Fuzzer   string `json:"fuzzer"`
	Success  int    `json:"success"`
	Warnings int    `json:"warnings"`
	Errors   int    `json:"errors"`
}

func NewJSONFiles(dir string) (*JSONFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &JSONFiles{dir: dir, fuzzers: make(map[string]*FuzzerTotals)}, nil
}

// TestFile returns the file name used for record id.
func TestFile(id int) string {
	return fmt.Sprintf("Test%d.json", id)
}

func (j *JSONFiles) WriteToFile(_ context.Context, r *report.Record) error {
	j.mu.Lock()
	t, ok := j.fuzzers[r.Fuzzer]
	if !ok {
		t = &FuzzerTotals{Fuzzer: r.Fuzzer}
		j.fuzzers[r.Fuzzer] = t
	}
	switch r.Result {
	case report.ResultSuccess:
		t.Success++
	case report.ResultWarning:
		t.Warnings++
	case report.ResultError:
		t.Errors++
	}
	j.mu.Unlock()

	return j.writeJSON(TestFile(r.ID), r)
}

func (j *JSONFiles) WriteSummary(_ context.Context, records []*report.Record, total, success, warn, errors int) error {
	s := Summary{
		Total:    total,
		Success:  success,
		Warnings: warn,
		Errors:   errors,
		Tests:    make([]SummaryEntry, 0, len(records)),
	}
	for _, r := range records {
		s.Tests = append(s.Tests, SummaryEntry{
			ID:            r.ID,
			TestID:        r.TestID,
			Fuzzer:        r.Fuzzer,
			Path:          r.Path,
			Method:        r.Request.Method,
			Result:        r.Result,
			ResultDetails: r.ResultDetails,
		})
	}
	return j.writeJSON(summaryFile, s)
}

func (j *JSONFiles) WriteReportFiles(context.Context) error {
	j.mu.Lock()
	totals := make([]FuzzerTotals, 0, len(j.fuzzers))
	for _, t := range j.fuzzers {
		totals = append(totals, *t)
	}
	j.mu.Unlock()

	sort.Slice(totals, func(a, b int) bool { return totals[a].Fuzzer < totals[b].Fuzzer })
	return j.writeJSON(fuzzersFile, totals)
}

// writeJSON replaces name atomically so readers never see partial files.
func (j *JSONFiles) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(j.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(j.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
