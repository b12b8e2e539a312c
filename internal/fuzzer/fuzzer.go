// Package fuzzer holds the fuzzers that derive request variants from a
// scenario and report each one as a test case.
package fuzzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/y0f/apifuzz/internal/httpcall"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/synth"
)

// Fuzzer turns one scenario into any number of test cases.
type Fuzzer interface {
	Name() string
	Description() string
	// Fuzz runs all test cases for sc. Errors are export failures; verdicts
	// are never errors.
	Fuzz(ctx context.Context, sc *synth.Scenario) error
}

// Caller sends a request to the service under test.
type Caller interface {
	Call(ctx context.Context, req httpcall.Request) (httpcall.Response, error)
}

// Env carries what every fuzzer needs to execute a test case.
type Env struct {
	Caller  Caller
	Ledger  *report.Ledger
	BaseURL string
	Headers map[string]string
	// Expected overrides the family a fuzzer expects, keyed by fuzzer name.
	Expected map[string]report.CodeFamily
	// SkipFields lists "#"-separated request property paths field fuzzers
	// leave alone.
	SkipFields []string
}

func (e Env) skipField(path string) bool {
	for _, f := range e.SkipFields {
		if f == path {
			return true
		}
	}
	return false
}

// expect returns the family the named fuzzer expects: def unless the
// environment overrides it.
func (e Env) expect(name string, def report.CodeFamily) report.CodeFamily {
	for n, f := range e.Expected {
		if strings.EqualFold(n, name) {
			return f
		}
	}
	return def
}

// send builds the request for payload, records it and reports the outcome.
func (e Env) send(ctx context.Context, tc *report.TestCase, sc *synth.Scenario, payload string, expected report.CodeFamily) {
	req := httpcall.Build(e.BaseURL, sc, payload, e.Headers)
	tc.AddPath(sc.Path)
	tc.AddFullRequestPath(req.URL)
	tc.AddRequest(req)
	tc.Logger().Debug("sending request", "method", req.Method, "url", req.URL)

	resp, err := e.Caller.Call(ctx, req)
	if err != nil {
		tc.ReportError("Request could not be completed: %v", err)
		return
	}
	tc.Logger().Debug("response received", "code", resp.Code, "bytes", len(resp.Body))
	tc.ReportResult(sc, resp, expected)
}

// Registry holds fuzzers by name.
type Registry struct {
	mu      sync.RWMutex
	fuzzers map[string]Fuzzer
}

func NewRegistry() *Registry {
	return &Registry{fuzzers: make(map[string]Fuzzer)}
}

func (r *Registry) Register(f Fuzzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fuzzers[f.Name()] = f
}

func (r *Registry) Get(name string) (Fuzzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fuzzers[name]
	if !ok {
		return nil, fmt.Errorf("no fuzzer registered with name: %s", name)
	}
	return f, nil
}

// List returns the registered fuzzers sorted by name.
func (r *Registry) List() []Fuzzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fuzzer, 0, len(r.fuzzers))
	for _, f := range r.fuzzers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Select returns the registered fuzzers accepted by enabled, sorted by name.
func (r *Registry) Select(enabled func(name string) bool) []Fuzzer {
	var out []Fuzzer
	for _, f := range r.List() {
		if enabled(f.Name()) {
			out = append(out, f)
		}
	}
	return out
}

// DefaultRegistry registers every built-in fuzzer. charSets selects the
// invisible character sets used by the "only invisible characters" fuzzers.
func DefaultRegistry(env Env, charSets []string) *Registry {
	r := NewRegistry()
	for _, set := range charSets {
		if v, ok := OnlyInvisible(set); ok {
			r.Register(NewFieldFuzzer(v, env))
		}
	}
	r.Register(NewFieldFuzzer(LeadingSpaces(), env))
	r.Register(NewFieldFuzzer(TrailingSpaces(), env))
	r.Register(NewFieldFuzzer(ExtremePositiveIntegers(), env))
	r.Register(NewFieldFuzzer(ExtremeNegativeIntegers(), env))
	r.Register(NewFieldFuzzer(ExtremePositiveDecimals(), env))
	r.Register(NewFieldFuzzer(ExtremeNegativeDecimals(), env))
	r.Register(NewFieldFuzzer(DecimalsLeftBoundary(), env))
	r.Register(NewNewFieldsFuzzer(env))
	return r
}
