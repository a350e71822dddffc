package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is owned by one Server. Each Server gets its own registry so the
// accounts gauge always reads the store that Server serves.
type metrics struct {
	reg               *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	insufficientFunds prometheus.Counter
	replays           prometheus.Counter
}

func newMetrics(accounts func() float64) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	m := &metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finapi",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finapi",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finapi",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Statement entries appended, by kind",
			},
			[]string{"kind"},
		),
		insufficientFunds: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finapi",
				Subsystem: "ledger",
				Name:      "insufficient_funds_total",
				Help:      "Withdrawals rejected because the balance did not cover them",
			},
		),
		replays: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finapi",
				Name:      "idempotent_replays_total",
				Help:      "Responses served from the idempotency store",
			},
		),
	}
	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "finapi",
			Subsystem: "ledger",
			Name:      "accounts",
			Help:      "Registered accounts",
		},
		accounts,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		m.httpRequests.WithLabelValues(r.Method, status).Inc()
		m.httpDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}
