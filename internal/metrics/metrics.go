// Package metrics exposes the game's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pick27"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "confirmations_total",
			Help:      "Confirmed pick sets by trigger.",
		},
		[]string{"trigger"},
	)

	recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "responses_total",
			Help:      "Assistant replies by outcome.",
		},
		[]string{"outcome"},
	)

	reasonerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "reasoner_duration_seconds",
			Help:      "Latency of remote reasoning calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	acceptances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "acceptances_total",
			Help:      "Accepted recommendations by outcome.",
		},
		[]string{"outcome"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tool_calls_total",
			Help:      "Analytics tool invocations requested by the model.",
		},
		[]string{"tool", "status"},
	)

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "revealed_total",
			Help:      "Revealed draws by jackpot outcome.",
		},
		[]string{"jackpot"},
	)

	players = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "players",
			Help:      "Players currently loaded in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		confirmations,
		recommendations,
		reasonerDuration,
		acceptances,
		toolCalls,
		draws,
		players,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency labelled by chi route
// pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordConfirmation counts a confirmed pick set.
func RecordConfirmation(auto bool) {
	trigger := "manual"
	if auto {
		trigger = "auto"
	}
	confirmations.WithLabelValues(trigger).Inc()
}

// RecordResponse counts an assistant reply: "recommendation", "message" or
// "fallback".
func RecordResponse(outcome string) {
	recommendations.WithLabelValues(outcome).Inc()
}

// ObserveReasoner records the latency of one reasoning call.
func ObserveReasoner(d time.Duration) {
	reasonerDuration.Observe(d.Seconds())
}

// RecordAcceptance counts an accepted recommendation: "applied", "queued" or
// "rejected_full".
func RecordAcceptance(outcome string) {
	acceptances.WithLabelValues(outcome).Inc()
}

// RecordToolCall counts a model tool invocation.
func RecordToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordDraw counts a revealed draw.
func RecordDraw(jackpot bool) {
	draws.WithLabelValues(strconv.FormatBool(jackpot)).Inc()
}

// SetPlayers reports how many players are loaded.
func SetPlayers(n int) {
	players.Set(float64(n))
}
