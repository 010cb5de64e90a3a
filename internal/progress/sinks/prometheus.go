package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metabolink/hmdbscan/internal/progress"
)

// PrometheusSink exports scan progress metrics. It owns all collectors for
// runs and per-identifier fetch outcomes.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec

	fetchesTotal  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchAttempts prometheus.Histogram
	resumeSkips   prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hmdbscan_runs_started_total",
			Help: "Total scan runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hmdbscan_runs_completed_total",
			Help: "Total scan runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hmdbscan_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 60, 300, 1200, 3600, 14400},
		}, []string{"result"}),
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hmdbscan_fetches_total",
			Help: "Fetch completions partitioned by outcome (yes, no, error).",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hmdbscan_fetch_duration_seconds",
			Help:    "Fetch duration including retries and back-off.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		fetchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hmdbscan_fetch_attempts",
			Help:    "HTTP attempts consumed per fetch.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		resumeSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hmdbscan_resume_skips_total",
			Help: "Identifiers skipped because a previous run completed them.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.fetchesTotal,
		s.fetchDuration,
		s.fetchAttempts,
		s.resumeSkips,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. Safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	case progress.StageFetchDone:
		s.fetchesTotal.WithLabelValues(outcomeLabel(evt.Flag)).Inc()
		s.observeFetch(evt)
	case progress.StageFetchError:
		s.fetchesTotal.WithLabelValues("error").Inc()
		s.observeFetch(evt)
	case progress.StageResumeSkip:
		s.resumeSkips.Inc()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	if evt.Dur > 0 {
		s.fetchDuration.Observe(evt.Dur.Seconds())
	}
	if evt.Attempts > 0 {
		s.fetchAttempts.Observe(float64(evt.Attempts))
	}
}

func outcomeLabel(flag string) string {
	switch flag {
	case "Yes":
		return "yes"
	case "No":
		return "no"
	default:
		return "unknown"
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
