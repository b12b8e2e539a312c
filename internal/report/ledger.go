// Package report tracks test cases from start to verdict, classifies
// responses against the contract and hands finished records to an
// exporter.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/y0f/apifuzz/internal/diff"
	"github.com/y0f/apifuzz/internal/httpcall"
)

// Ledger allocates test case ids and collects finished records. Each
// running test case is an explicit *TestCase handle, so one ledger can be
// shared by several workers as long as each handle stays with one worker.
type Ledger struct {
	exporter Exporter
	stats    *Stats
	logger   *slog.Logger

	nextID atomic.Int64

	mu       sync.Mutex
	finished []*Record
	started  time.Time
}

func NewLedger(exporter Exporter, stats *Stats, logger *slog.Logger) *Ledger {
	return &Ledger{
		exporter: exporter,
		stats:    stats,
		logger:   logger,
	}
}

func (l *Ledger) Stats() *Stats {
	return l.stats
}

// StartSession marks the beginning of a run.
func (l *Ledger) StartSession(ctx context.Context) {
	l.mu.Lock()
	l.started = time.Now()
	l.mu.Unlock()
	l.logger.InfoContext(ctx, "fuzzing session started")
}

// EndSession writes the summary and the report files.
func (l *Ledger) EndSession(ctx context.Context) error {
	records := l.Records()
	snap := l.stats.Snapshot()

	l.mu.Lock()
	elapsed := time.Since(l.started)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "fuzzing session finished",
		"total", snap.Total(),
		"success", snap.Success,
		"warnings", snap.Warn,
		"errors", snap.Errors,
		"skipped", snap.Skipped,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	if err := l.exporter.WriteSummary(ctx, records, snap.Total(), snap.Success, snap.Warn, snap.Errors); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := l.exporter.WriteReportFiles(ctx); err != nil {
		return fmt.Errorf("write report files: %w", err)
	}
	return nil
}

// Run executes fn as one test case attributed to fuzzer. The record is
// exported once fn returns unless the test case was skipped. Export
// failures are returned; they do not change the verdict.
func (l *Ledger) Run(ctx context.Context, fuzzer string, fn func(tc *TestCase)) error {
	tc := l.start(ctx, fuzzer)
	fn(tc)
	return l.end(ctx, tc, fuzzer)
}

func (l *Ledger) start(ctx context.Context, fuzzer string) *TestCase {
	id := int(l.nextID.Add(1))
	rec := &Record{
		ID:        id,
		TestID:    fmt.Sprintf("Test %d", id),
		StartedAt: time.Now(),
	}

	return &TestCase{
		ledger: l,
		record: rec,
		ctx:    ctx,
		logger: l.logger.With("test", id, "fuzzer", fuzzer),
	}
}

func (l *Ledger) end(ctx context.Context, tc *TestCase, fuzzer string) error {
	rec := tc.record
	rec.Fuzzer = fuzzer

	l.mu.Lock()
	if !rec.Skipped {
		l.finished = append(l.finished, rec)
	}
	l.mu.Unlock()

	if rec.Skipped {
		return nil
	}
	if err := l.exporter.WriteToFile(ctx, rec); err != nil {
		tc.logger.Error("export test case failed", "error", err)
		return fmt.Errorf("export %s: %w", rec.TestID, err)
	}
	return nil
}

// Records returns the finished, non-skipped records ordered by id.
func (l *Ledger) Records() []*Record {
	l.mu.Lock()
	out := make([]*Record, len(l.finished))
	copy(out, l.finished)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TestCase is the handle to the record being built by one running test.
type TestCase struct {
	ledger *Ledger
	record *Record
	ctx    context.Context
	logger *slog.Logger
}

func (t *TestCase) ID() int { return t.record.ID }

// Record returns a copy of the record as it stands.
func (t *TestCase) Record() Record { return *t.record }

// Logger is scoped to the test case id and fuzzer.
func (t *TestCase) Logger() *slog.Logger { return t.logger }

func (t *TestCase) AddScenario(format string, args ...any) {
	t.record.Scenario = fmt.Sprintf(format, args...)
	t.logger.Debug("scenario", "text", t.record.Scenario)
}

func (t *TestCase) AddExpectedResult(format string, args ...any) {
	t.record.ExpectedResult = fmt.Sprintf(format, args...)
}

func (t *TestCase) AddPath(path string) {
	t.record.Path = path
}

func (t *TestCase) AddFullRequestPath(url string) {
	t.record.FullRequestPath = url
}

// AddRequest records the request. Only the first call has an effect.
func (t *TestCase) AddRequest(req httpcall.Request) {
	if t.record.hasRequest {
		return
	}
	t.record.Request = req
	t.record.hasRequest = true
}

// AddResponse records the response. Only the first call has an effect.
func (t *TestCase) AddResponse(resp httpcall.Response) {
	if t.record.hasResponse {
		return
	}
	t.record.Response = resp
	t.record.hasResponse = true
}

// ReportResult classifies resp against what doc documents for the
// operation and the family the fuzzer expected. Error verdicts get the
// same placeholders as ReportError.
func (t *TestCase) ReportResult(doc Documented, resp httpcall.Response, expected CodeFamily) {
	t.AddResponse(resp)

	a := Assess(doc, resp, expected)
	v := Classify(a, resp, expected, doc.DocumentedCodes())
	if a.CodeExpected && a.CodeDocumented && !a.MatchesSchema {
		if ex, ok := closestExample(doc, resp); ok {
			t.record.BodyDiff = diff.JSON(ex, resp.Body)
		}
	}
	if v.Result == ResultError {
		t.fillPlaceholders()
	}
	t.finish(v.Result, v.Details)
}

func (t *TestCase) ReportInfo(format string, args ...any) {
	t.finish(ResultSuccess, fmt.Sprintf(format, args...))
}

func (t *TestCase) ReportWarn(format string, args ...any) {
	t.finish(ResultWarning, fmt.Sprintf(format, args...))
}

// ReportError marks the test case as failed. Missing snapshots are filled
// with empty placeholders.
func (t *TestCase) ReportError(format string, args ...any) {
	t.fillPlaceholders()
	t.finish(ResultError, fmt.Sprintf(format, args...))
}

// Skip marks the test case as skipped; it will not be exported.
func (t *TestCase) Skip(reason string) {
	t.fillPlaceholders()
	t.record.ExpectedResult = reason
	t.record.Skipped = true
	t.finish(ResultSkipped, reason)
}

func (t *TestCase) fillPlaceholders() {
	t.AddRequest(httpcall.EmptyRequest())
	t.AddResponse(httpcall.EmptyResponse())
}

func (t *TestCase) finish(result, details string) {
	t.record.Result = result
	t.record.ResultDetails = details
	t.ledger.stats.inc(result)

	level := slog.LevelInfo
	switch result {
	case ResultWarning:
		level = slog.LevelWarn
	case ResultError:
		level = slog.LevelError
	case ResultSkipped:
		level = slog.LevelDebug
	}
	t.logger.Log(t.ctx, level, details, "result", result, "path", t.record.Path)
}
