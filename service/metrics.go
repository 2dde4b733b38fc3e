package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ludo-technologies/cblscan/domain"
)

const metricsNamespace = "cblscan"

// Metrics records per-run analysis counters in a private registry so that
// batch runs can dump them with WriteTextfile for the node_exporter
// textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	programs    prometheus.Counter
	failures    prometheus.Counter
	paragraphs  prometheus.Counter
	statements  prometheus.Counter
	unreachable prometheus.Counter
	copybooks   prometheus.Counter
	diagnostics *prometheus.CounterVec
	complexity  prometheus.Histogram
	duration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		programs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "programs_analyzed_total",
			Help:      "Number of COBOL programs structured.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "programs_failed_total",
			Help:      "Number of COBOL programs that could not be read or structured.",
		}),
		paragraphs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "paragraphs_total",
			Help:      "Number of paragraphs across all structured programs.",
		}),
		statements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "statements_total",
			Help:      "Number of statement nodes across all structured programs.",
		}),
		unreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unreachable_paragraphs_total",
			Help:      "Number of paragraphs not reachable from the entry paragraph.",
		}),
		copybooks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "copybooks_included_total",
			Help:      "Number of distinct copybooks included per program, summed.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted while structuring, by category.",
		}, []string{"category"}),
		complexity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "program_complexity",
			Help:      "Cyclomatic complexity per program.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 250},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "program_duration_seconds",
			Help:      "Time spent structuring a single program.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.programs,
		m.failures,
		m.paragraphs,
		m.statements,
		m.unreachable,
		m.copybooks,
		m.diagnostics,
		m.complexity,
		m.duration,
	)
	for _, category := range []string{
		domain.DiagnosticStructural,
		domain.DiagnosticReferential,
		domain.DiagnosticMalformed,
		domain.DiagnosticInclusion,
	} {
		m.diagnostics.WithLabelValues(category)
	}
	return m
}

// ObserveProgram records a structured program
func (m *Metrics) ObserveProgram(graph *domain.ProgramGraph, elapsed time.Duration) {
	if m == nil || graph == nil {
		return
	}
	m.programs.Inc()
	m.paragraphs.Add(float64(len(graph.Paragraphs)))
	statements := 0
	for _, p := range graph.Paragraphs {
		statements += domain.CountStatements(p.Statements)
	}
	m.statements.Add(float64(statements))
	m.unreachable.Add(float64(len(graph.Unreachable)))
	m.copybooks.Add(float64(len(graph.Copybooks)))
	for _, d := range graph.Diagnostics {
		m.diagnostics.WithLabelValues(d.Category).Inc()
	}
	m.complexity.Observe(float64(graph.Complexity))
	m.duration.Observe(elapsed.Seconds())
}

// ObserveFailure records a program that produced no graph
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return domain.NewOutputError("failed to write metrics textfile", err)
	}
	return nil
}
