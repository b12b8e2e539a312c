package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"

	"github.com/y0f/apifuzz/internal/fuzzer"
	"github.com/y0f/apifuzz/internal/synth"
)

// Job is one fuzzer applied to one scenario.
type Job struct {
	Scenario *synth.Scenario
	Fuzzer   fuzzer.Fuzzer
}

// JobResult holds the outcome of a job. Err carries export failures and
// cancellation only; verdicts live in the ledger.
type JobResult struct {
	Job Job
	Err error
}

// queue orders jobs scenario by scenario, running every fuzzer on a
// scenario before moving on.
func queue(scenarios []*synth.Scenario, fuzzers []fuzzer.Fuzzer) *deque.Deque[Job] {
	q := deque.New[Job](len(scenarios) * len(fuzzers))
	for _, sc := range scenarios {
		for _, f := range fuzzers {
			q.PushBack(Job{Scenario: sc, Fuzzer: f})
		}
	}
	return q
}

// Pool manages a fixed set of worker goroutines.
type Pool struct {
	workers int
	jobs    <-chan Job
	results chan<- JobResult
	logger  *slog.Logger
}

func NewPool(workers int, jobs <-chan Job, results chan<- JobResult, logger *slog.Logger) *Pool {
	return &Pool{
		workers: workers,
		jobs:    jobs,
		results: results,
		logger:  logger,
	}
}

// Run blocks until the jobs channel is closed and drained or ctx is done.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.executeJob(ctx, id, job)
		}
	}
}

func (p *Pool) executeJob(ctx context.Context, id int, job Job) {
	p.logger.Debug("fuzzing",
		"worker", id,
		"fuzzer", job.Fuzzer.Name(),
		"method", job.Scenario.Method,
		"path", job.Scenario.Path,
	)
	err := job.Fuzzer.Fuzz(ctx, job.Scenario)
	p.results <- JobResult{Job: job, Err: err}
}
