package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveRooms tracks rooms currently held by the registry, including
	// empty rooms waiting on their cleanup timer.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rapidraw",
		Name:      "active_rooms",
		Help:      "Number of rooms currently held in memory",
	})

	// ConnectedClients tracks open websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rapidraw",
		Name:      "connected_clients",
		Help:      "Number of open websocket connections",
	})

	// EventsRelayed counts protocol events applied and fanned out, by type.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rapidraw",
		Name:      "events_relayed_total",
		Help:      "Total protocol events relayed to room members",
	}, []string{"type"})

	// RoomsReaped counts rooms destroyed by the delayed cleanup timer.
	RoomsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rapidraw",
		Name:      "rooms_reaped_total",
		Help:      "Total empty rooms destroyed after the cleanup delay",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rapidraw",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rapidraw",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rapidraw",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack must be forwarded or the websocket upgrade on /ws fails.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.Inc()
			defer httpInFlight.Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
