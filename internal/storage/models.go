package storage

import (
	"encoding/json"
	"time"
)

// Run is one fuzzing session against a service.
type Run struct {
	ID         string     `json:"id"`
	Contract   string     `json:"contract"`
	BaseURL    string     `json:"base_url"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Success    int        `json:"success"`
	Warnings   int        `json:"warnings"`
	Errors     int        `json:"errors"`
}

// TestCase is a persisted test case record.
type TestCase struct {
	ID              int64           `json:"id"`
	RunID           string          `json:"run_id"`
	TestID          string          `json:"test_id"`
	Fuzzer          string          `json:"fuzzer"`
	Scenario        string          `json:"scenario"`
	ExpectedResult  string          `json:"expected_result"`
	Path            string          `json:"path"`
	FullRequestPath string          `json:"full_request_path"`
	Method          string          `json:"method"`
	StatusCode      int             `json:"status_code"`
	Request         json.RawMessage `json:"request"`
	Response        json.RawMessage `json:"response"`
	Result          string          `json:"result"`
	ResultDetails   string          `json:"result_details"`
	BodyDiff        string          `json:"body_diff"`
	StartedAt       time.Time       `json:"started_at"`
}

// TestCaseFilter narrows ListTestCases. Zero values match everything.
type TestCaseFilter struct {
	Result string
	Fuzzer string
	Path   string
}

// Pagination contains parameters for list queries.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// PaginatedResult wraps a list response with metadata.
type PaginatedResult struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}
