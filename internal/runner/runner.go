// Package runner drives a fuzzing session: it loads the contract,
// synthesizes scenarios, runs every enabled fuzzer on each of them and
// closes the session with a summary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gammazero/deque"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/contract"
	"github.com/y0f/apifuzz/internal/fuzzer"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/synth"
)

// Result summarizes a finished session.
type Result struct {
	Scenarios int
	Fuzzers   int
	// Failures counts jobs whose records could not be exported.
	Failures int
	Stats    report.Snapshot
}

type Runner struct {
	cfg      *config.Config
	caller   fuzzer.Caller
	exporter report.Exporter
	synth    *synth.Synthesizer
	logger   *slog.Logger
}

func New(cfg *config.Config, caller fuzzer.Caller, exporter report.Exporter, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		caller:   caller,
		exporter: exporter,
		synth:    synth.New(nil, logger),
		logger:   logger,
	}
}

// Fuzzers returns the enabled fuzzers for env, sorted by name.
func Fuzzers(cfg *config.Config, env fuzzer.Env) []fuzzer.Fuzzer {
	return fuzzer.DefaultRegistry(env, cfg.Run.InvisibleChars).Select(cfg.FuzzerEnabled)
}

// Run executes one session. Verdicts never make Run fail; it returns an
// error when the contract cannot be used, when the session summary cannot
// be written or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	doc, err := contract.Load(r.cfg.Contract.Path)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}

	stats := report.NewStats()
	ledger := report.NewLedger(r.exporter, stats, r.logger)
	env := fuzzer.Env{
		Caller:     r.caller,
		Ledger:     ledger,
		BaseURL:    r.cfg.ResolvedBaseURL(),
		Headers:    r.cfg.Target.Headers,
		Expected:   r.cfg.ExpectedFamilies(),
		SkipFields: r.cfg.Run.SkipFields,
	}
	fuzzers := Fuzzers(r.cfg, env)
	if len(fuzzers) == 0 {
		return nil, fmt.Errorf("no fuzzers enabled")
	}

	scenarios, err := r.synth.SynthesizeDocument(ctx, doc, r.cfg.Contract.Paths, r.cfg.Run.SynthesisJobs)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	stats.AddScenarios(len(scenarios))
	r.logger.Info("scenarios synthesized", "scenarios", len(scenarios), "fuzzers", len(fuzzers))

	res := &Result{Scenarios: len(scenarios), Fuzzers: len(fuzzers)}
	ledger.StartSession(ctx)

	jobs := queue(scenarios, fuzzers)
	if r.cfg.Run.Workers > 1 {
		r.runPool(ctx, jobs, res)
	} else {
		for jobs.Len() > 0 && ctx.Err() == nil {
			job := jobs.PopFront()
			r.handle(ctx, JobResult{Job: job, Err: job.Fuzzer.Fuzz(ctx, job.Scenario)}, res)
		}
	}

	// the summary is written even when the session was interrupted
	endErr := ledger.EndSession(context.WithoutCancel(ctx))
	res.Stats = stats.Snapshot()

	if path := r.cfg.Report.MetricsFile; path != "" {
		if err := stats.WriteMetrics(path); err != nil {
			r.logger.Error("write metrics failed", "path", path, "error", err)
		}
	}

	return res, errors.Join(ctx.Err(), endErr)
}

func (r *Runner) runPool(ctx context.Context, q *deque.Deque[Job], res *Result) {
	workers := r.cfg.Run.Workers
	jobs := make(chan Job, workers*2)
	results := make(chan JobResult, workers*2)

	go func() {
		defer close(jobs)
		for q.Len() > 0 {
			select {
			case jobs <- q.PopFront():
			case <-ctx.Done():
				return
			}
		}
	}()

	pool := NewPool(workers, jobs, results, r.logger)
	go func() {
		pool.Run(ctx)
		close(results)
	}()

	for jr := range results {
		r.handle(ctx, jr, res)
	}
}

func (r *Runner) handle(ctx context.Context, jr JobResult, res *Result) {
	if jr.Err == nil || ctx.Err() != nil {
		return
	}
	res.Failures++
	r.logger.Error("fuzzer failed",
		"fuzzer", jr.Job.Fuzzer.Name(),
		"method", jr.Job.Scenario.Method,
		"path", jr.Job.Scenario.Path,
		"error", jr.Err,
	)
}
