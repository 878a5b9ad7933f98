package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openhouse_leads_created_total",
			Help: "Leads captured, by score",
		},
		[]string{"score"},
	)

	messagesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openhouse_messages_scheduled_total",
			Help: "Follow-up messages queued, by channel",
		},
		[]string{"channel"},
	)

	messagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openhouse_messages_dispatched_total",
			Help: "Scheduled messages processed by the dispatcher",
		},
		[]string{"channel", "result"},
	)

	welcomeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openhouse_welcome_messages_total",
			Help: "Immediate welcome sends",
		},
		[]string{"channel", "result"},
	)

	backgroundTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openhouse_background_tasks_total",
			Help: "Background tasks run by the worker pool",
		},
		[]string{"task", "result"},
	)
)

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware labels requests by chi route pattern so path parameters do
// not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordLeadCreated(score string) {
	leadsCreated.WithLabelValues(score).Inc()
}

func RecordScheduled(channel string, n int) {
	messagesScheduled.WithLabelValues(channel).Add(float64(n))
}

func RecordDispatched(channel string, err error) {
	messagesDispatched.WithLabelValues(channel, result(err)).Inc()
}

func RecordWelcome(channel string, err error) {
	welcomeMessages.WithLabelValues(channel, result(err)).Inc()
}

func RecordBackgroundTask(task string, err error) {
	backgroundTasks.WithLabelValues(task, result(err)).Inc()
}
