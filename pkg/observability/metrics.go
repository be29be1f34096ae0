package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stackit"

// Metrics records board and HTTP counters in a Prometheus registry
type Metrics struct {
	registry *prometheus.Registry

	loads          *prometheus.CounterVec
	votes          prometheus.Counter
	voteFailures   prometheus.Counter
	submissions    *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	sessions       prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	rateLimited    prometheus.Counter
	streamsCurrent prometheus.Gauge
}

// NewMetrics creates the collectors in a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: outcome (ready, fallback, stale, cancelled)
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "loads_total",
			Help:      "Question loads by outcome",
		}, []string{"outcome"}),
		votes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "votes_total",
			Help:      "Votes applied locally",
		}),
		voteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "vote_confirm_failures_total",
			Help:      "Votes the authority did not confirm",
		}),
		// Labels: outcome (confirmed, rolled_back)
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "submissions_total",
			Help:      "Settled answer submissions by outcome",
		}, []string{"outcome"}),
		// Labels: outcome (merged, ignored, stale)
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "refreshes_total",
			Help:      "Board refreshes by outcome",
		}, []string{"outcome"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "sessions",
			Help:      "Live board sessions",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"route", "method"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		streamsCurrent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "event_streams",
			Help:      "Open websocket event streams",
		}),
	}
}

func (m *Metrics) LoadCompleted(outcome string)     { m.loads.WithLabelValues(outcome).Inc() }
func (m *Metrics) VoteCast()                        { m.votes.Inc() }
func (m *Metrics) VoteConfirmFailed()               { m.voteFailures.Inc() }
func (m *Metrics) SubmissionSettled(outcome string) { m.submissions.WithLabelValues(outcome).Inc() }
func (m *Metrics) RefreshCompleted(outcome string)  { m.refreshes.WithLabelValues(outcome).Inc() }

// SetSessions records the number of live sessions
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// StreamOpened and StreamClosed track websocket subscribers
func (m *Metrics) StreamOpened() { m.streamsCurrent.Inc() }
func (m *Metrics) StreamClosed() { m.streamsCurrent.Dec() }

// RateLimited counts a rejected request
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
