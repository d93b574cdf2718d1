// Package telemetry exposes prometheus metrics for the reconciliation
// engine and the reference backend. Collectors are registered on the
// default registry and served via promhttp.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webchat_events_dispatched_total",
		Help: "Session events routed through the dispatch path, by kind.",
	}, []string{"kind"})

	staleDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webchat_stale_events_total",
		Help: "Content events discarded because a newer record or deletion existed.",
	})

	malformedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webchat_malformed_events_total",
		Help: "Events dropped for an unknown kind or missing required fields.",
	})

	actionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webchat_action_failures_total",
		Help: "Authoring/moderation requests that failed or were rejected.",
	}, []string{"action"})

	backfillEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webchat_backfill_batch_events",
		Help:    "Size of the historical backfill batch replayed at startup.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	hubSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webchat_hub_subscribers",
		Help: "Live channel subscribers currently connected to the hub.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webchat_http_request_duration_seconds",
		Help:    "HTTP request latency on the session API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})
)

// IncEventDispatched counts a dispatched event by kind.
func IncEventDispatched(kind string) { eventsDispatched.WithLabelValues(kind).Inc() }

// IncStaleDrop counts a silently discarded stale content event.
func IncStaleDrop() { staleDrops.Inc() }

// IncMalformedDrop counts a dropped malformed/unrecognized event.
func IncMalformedDrop() { malformedDrops.Inc() }

// IncActionFailure counts a failed authoring or moderation request.
func IncActionFailure(action string) { actionFailures.WithLabelValues(action).Inc() }

// ObserveBackfill records the size of a replayed backfill batch.
func ObserveBackfill(events int) { backfillEvents.Observe(float64(events)) }

// HubSubscriberConnected tracks a new hub subscriber.
func HubSubscriberConnected() { hubSubscribers.Inc() }

// HubSubscriberGone tracks a departed hub subscriber.
func HubSubscriberGone() { hubSubscribers.Dec() }

// Middleware records request latency and status for the session API.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		httpDuration.WithLabelValues(r.URL.Path, strconv.Itoa(srw.status)).
			Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
