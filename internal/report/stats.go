package report

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts verdicts for one run. The counters are mirrored into a
// private prometheus registry so they can be written out as a textfile.
type Stats struct {
	success atomic.Int64
	warn    atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64

	registry  *prometheus.Registry
	verdicts  *prometheus.CounterVec
	scenarios prometheus.Counter
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Success int
	Warn    int
	Errors  int
	Skipped int
}

// Total counts every reported test case, skipped ones excluded.
func (s Snapshot) Total() int {
	return s.Success + s.Warn + s.Errors
}

func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apifuzz_test_cases_total",
				Help: "Number of finished test cases by verdict.",
			},
			[]string{"result"},
		),
		scenarios: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apifuzz_scenarios_synthesized_total",
				Help: "Number of request scenarios synthesized from the contract.",
			},
		),
	}
	collectors := []prometheus.Collector{s.verdicts, s.scenarios}
	s.registry.MustRegister(collectors...)
	return s
}

func (s *Stats) inc(result string) {
	switch result {
	case ResultSuccess:
		s.success.Add(1)
	case ResultWarning:
		s.warn.Add(1)
	case ResultError:
		s.errors.Add(1)
	case ResultSkipped:
		s.skipped.Add(1)
	default:
		return
	}
	s.verdicts.WithLabelValues(result).Inc()
}

// AddScenarios records n synthesized scenarios.
func (s *Stats) AddScenarios(n int) {
	s.scenarios.Add(float64(n))
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Success: int(s.success.Load()),
		Warn:    int(s.warn.Load()),
		Errors:  int(s.errors.Load()),
		Skipped: int(s.skipped.Load()),
	}
}

func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// WriteMetrics writes the counters in the node exporter textfile format.
func (s *Stats) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
