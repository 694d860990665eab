package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"firmscout/internal/progress"
)

// PrometheusSink exports pipeline progress metrics. It owns all collectors
// for runs, per-source fetches, and contact resolution.
type PrometheusSink struct {
	runsStarted    prometheus.Counter
	runRecords     *prometheus.HistogramVec
	postingsFound  *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	contactsTotal  *prometheus.CounterVec
	skipsTotal     *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_runs_started_total",
			Help: "Total pipeline runs that have started.",
		}),
		runRecords: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_run_records",
			Help:    "Deduplicated records produced per completed run.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}, []string{"result"}),
		postingsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_postings_found_total",
			Help: "Raw postings discovered, partitioned by source.",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_source_failures_total",
			Help: "Listing fetches that failed, partitioned by source.",
		}, []string{"source"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by stage and source.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage", "source"}),
		contactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_contacts_resolved_total",
			Help: "Contact resolutions partitioned by outcome.",
		}, []string{"outcome"}),
		skipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_skips_total",
			Help: "Cards or pages skipped, partitioned by source.",
		}, []string{"source"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runRecords,
		s.postingsFound,
		s.sourceFailures,
		s.fetchDuration,
		s.contactsTotal,
		s.skipsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
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
		result := "success"
		if evt.Note != "" {
			result = evt.Note
		}
		s.runRecords.WithLabelValues(result).Observe(float64(evt.Count))
	case progress.StageSourceFetch:
		if evt.Note != "" {
			s.sourceFailures.WithLabelValues(evt.Source).Inc()
		} else {
			s.postingsFound.WithLabelValues(evt.Source).Add(float64(evt.Count))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues("listing", evt.Source).Observe(evt.Dur.Seconds())
		}
	case progress.StageContactResolve:
		s.contactsTotal.WithLabelValues(contactOutcome(evt)).Inc()
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues("contact", evt.Source).Observe(evt.Dur.Seconds())
		}
	case progress.StageSkip:
		source := evt.Source
		if source == "" {
			source = "unknown"
		}
		s.skipsTotal.WithLabelValues(source).Inc()
	}
}

func contactOutcome(evt progress.Event) string {
	if evt.Note != "" {
		return evt.Note
	}
	return "none"
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
