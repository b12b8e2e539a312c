package report

import (
	"context"
	"time"

	"github.com/y0f/apifuzz/internal/httpcall"
)

// Verdicts.
const (
	ResultSuccess = "success"
	ResultWarning = "warning"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Record is the report entry for one test case.
type Record struct {
	ID              int               `json:"id"`
	TestID          string            `json:"test_id"`
	Scenario        string            `json:"scenario"`
	ExpectedResult  string            `json:"expected_result"`
	Path            string            `json:"path"`
	FullRequestPath string            `json:"full_request_path"`
	Request         httpcall.Request  `json:"request"`
	Response        httpcall.Response `json:"response"`
	Fuzzer          string            `json:"fuzzer"`
	Result          string            `json:"result"`
	ResultDetails   string            `json:"result_details"`
	// BodyDiff is set when the body did not match any documented example.
	BodyDiff  string    `json:"body_diff,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Skipped   bool      `json:"-"`

	hasRequest  bool
	hasResponse bool
}

// Exporter receives finished records and the end-of-session summary.
type Exporter interface {
	WriteToFile(ctx context.Context, r *Record) error
	WriteSummary(ctx context.Context, records []*Record, total, success, warn, errors int) error
	WriteReportFiles(ctx context.Context) error
}

// Documented exposes what the contract says about an operation's responses.
type Documented interface {
	DocumentedCodes() []string
	// ResponseExamples returns the example bodies for code. An empty list
	// means the contract expects an empty body.
	ResponseExamples(code string) ([]string, bool)
}
