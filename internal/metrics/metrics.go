// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sinag_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sinag_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	checklistValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sinag_checklist_validations_total",
		Help: "MOV checklist validations by result (valid, invalid).",
	}, []string{"result"})

	calculationEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sinag_calculation_evaluations_total",
		Help: "Indicator status computations by resulting status.",
	}, []string{"status"})

	workflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sinag_workflow_transitions_total",
		Help: "Assessment workflow actions by action and outcome.",
	}, []string{"action", "outcome"})

	lockedAssessments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sinag_assessments_locked_total",
		Help: "Assessments locked by the deadline sweeper.",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sinag_rate_limited_requests_total",
		Help: "Requests rejected by the per-IP rate limiter.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTP records request counts and latency keyed by chi route pattern, so
// path parameters do not explode label cardinality.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func ChecklistValidated(valid bool) {
	if valid {
		checklistValidations.WithLabelValues("valid").Inc()
		return
	}
	checklistValidations.WithLabelValues("invalid").Inc()
}

func IndicatorScored(status string) {
	calculationEvaluations.WithLabelValues(status).Inc()
}

func WorkflowTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	workflowTransitions.WithLabelValues(action, outcome).Inc()
}

func AssessmentsLocked(n int) {
	lockedAssessments.Add(float64(n))
}

func RateLimited() {
	rateLimited.Inc()
}
