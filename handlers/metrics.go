package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	// Counter for the number of requests per handler
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests by handler and status",
		},
		[]string{"handler", "status"},
	)

	// Histogram for request duration
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Histogram of API request durations by handler",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "status"},
	)

	loginRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "login_requests_total",
		Help: "Total number of login requests",
	})

	loginRequestsbyStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_requests_by_status_total",
		Help: "Total number of login requests by status",
	},
		[]string{"status"})

	ordersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders accepted, by payment type",
	},
		[]string{"payment_type"})

	// orderSize goes through the OpenTelemetry meter provider installed by telem.InitMetrics.
	orderSize metric.Int64Histogram

	initOnce sync.Once
)

// Init registers the handler metrics with the default Prometheus registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(requestCount)
		prometheus.MustRegister(requestDuration)
		prometheus.MustRegister(loginRequests)
		prometheus.MustRegister(loginRequestsbyStatus)
		prometheus.MustRegister(ordersCreated)

		h, err := otel.Meter("order-service").Int64Histogram("order.items",
			metric.WithDescription("Number of items per accepted order"),
			metric.WithUnit("{item}"),
		)
		if err == nil {
			orderSize = h
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts and times every call of h under name.
func instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		status := strconv.Itoa(rec.status)
		requestCount.WithLabelValues(name, status).Inc()
		requestDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}
}
