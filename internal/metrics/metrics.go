package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty" // corpus or query vector had no usable terms
	OutcomePanic    = "panic"

	// OutcomeUnavailable is a query answered before the index was built.
	OutcomeUnavailable = "unavailable"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// Matching metrics
	MatchesTotal       *prometheus.CounterVec
	MatchScore         prometheus.Histogram
	MatchDuration      prometheus.Histogram
	ReplyFailuresTotal prometheus.Counter

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterUsers   *prometheus.GaugeVec

	// Corpus metrics
	CorpusEntries        prometheus.Gauge
	CorpusVocabulary     prometheus.Gauge
	CorpusLoadDuration   prometheus.Histogram
	CorpusSyncTotal      *prometheus.CounterVec
	CorpusSourceWarnings *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	f := promauto.With(registry)
	return &Metrics{
		WebhookDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faq_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"event_type"}, // event_type: message, follow, join
		),

		WebhookRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, ignored
		),

		MatchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_matches_total",
				Help: "Total number of FAQ queries by outcome",
			},
			[]string{"outcome"},
		),

		MatchScore: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faq_match_best_score",
				Help:    "Best cosine similarity per query",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10), // 0.1 .. 1.0
			},
		),

		MatchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faq_match_duration_seconds",
				Help:    "Time to tokenize, project and score a query",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),

		ReplyFailuresTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "faq_reply_failures_total",
				Help: "Total number of LINE reply API failures",
			},
		),

		RateLimiterDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, global
		),

		RateLimiterUsers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faq_rate_limiter_active_keys",
				Help: "Number of keys with a live bucket in a keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		CorpusEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "faq_corpus_entries",
				Help: "Number of FAQ entries in the built index",
			},
		),

		CorpusVocabulary: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "faq_corpus_vocabulary_terms",
				Help: "Number of distinct terms in the built index",
			},
		),

		CorpusLoadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faq_corpus_load_duration_seconds",
				Help:    "Time to sync, load and index the corpus",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		CorpusSyncTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_corpus_sync_total",
				Help: "Remote corpus object downloads by status",
			},
			[]string{"status"}, // status: success, not_found, error
		),

		CorpusSourceWarnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_corpus_source_warnings_total",
				Help: "Corpus sources that were missing or unreadable at load time",
			},
			[]string{"source"}, // source: corpus, stopwords
		),
	}
}

// RecordWebhook records a webhook event
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordMatch records one query outcome and its best score.
func (m *Metrics) RecordMatch(outcome string, score, duration float64) {
	m.MatchesTotal.WithLabelValues(outcome).Inc()
	m.MatchDuration.Observe(duration)
	// Only scored queries feed the score histogram.
	if outcome == OutcomeMatched || outcome == OutcomeFallback {
		m.MatchScore.Observe(score)
	}
}

// RecordReplyFailure records a failed reply API call
func (m *Metrics) RecordReplyFailure() {
	m.ReplyFailuresTotal.Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers sets the number of tracked keys of a keyed limiter
func (m *Metrics) SetRateLimiterUsers(limiterType string, count int) {
	m.RateLimiterUsers.WithLabelValues(limiterType).Set(float64(count))
}

// RecordCorpus records the size of a freshly built index and how long it took.
func (m *Metrics) RecordCorpus(entries, vocabulary int, duration float64) {
	m.CorpusEntries.Set(float64(entries))
	m.CorpusVocabulary.Set(float64(vocabulary))
	m.CorpusLoadDuration.Observe(duration)
}

// RecordCorpusSync records a remote corpus object download
func (m *Metrics) RecordCorpusSync(status string) {
	m.CorpusSyncTotal.WithLabelValues(status).Inc()
}

// RecordSourceWarning records a missing or unreadable corpus source
func (m *Metrics) RecordSourceWarning(source string) {
	m.CorpusSourceWarnings.WithLabelValues(source).Inc()
}
