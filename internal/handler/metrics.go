package handler

import (
	"expvar"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpRequestsInFlight = expvar.NewInt("gauge_http_requests_in_flight")
var httpRequestDurationSeconds = NewRequestHistogram(
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 10, 30,
)

var promRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "polybot_http_request_duration_seconds",
	Help:    "Duration of http requests by route and status code.",
	Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 10, 30},
}, []string{"route", "code"})

func init() {
	expvar.Publish("http_request_duration_seconds", httpRequestDurationSeconds)
}

// Metrics is a handler that collects performance metrics
func Metrics(h http.Handler, routeMatcher RouteMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeMatcher.Match(r)

		httpRequestsInFlight.Add(1)
		defer httpRequestsInFlight.Add(-1)

		respMetrics := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
			h.ServeHTTP(ww, r)
		})

		httpRequestDurationSeconds.Add(route, respMetrics.Code, respMetrics.Duration)
		promRequestDuration.WithLabelValues(route, strconv.Itoa(respMetrics.Code)).Observe(respMetrics.Duration.Seconds())
	})
}

type requestKey struct {
	route string
	code  int
}

type bucket struct {
	counts        []uint64 // Cumulative, one per upper bound
	count         uint64
	totalDuration float64
}

// RequestHistogram is an expvar histogram of request durations, written in the prometheus text format
type RequestHistogram struct {
	mu      sync.Mutex
	bounds  []float64
	buckets map[requestKey]*bucket
}

// NewRequestHistogram creates a histogram with the given upper bounds in seconds
func NewRequestHistogram(bounds ...float64) *RequestHistogram {
	return &RequestHistogram{
		bounds:  bounds,
		buckets: make(map[requestKey]*bucket),
	}
}

// Add records a request duration
func (r *RequestHistogram) Add(route string, code int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestKey{route, code}
	b, exists := r.buckets[key]
	if !exists {
		b = &bucket{counts: make([]uint64, len(r.bounds))}
		r.buckets[key] = b
	}

	seconds := duration.Seconds()
	b.count++
	b.totalDuration += seconds

	for i, bound := range r.bounds {
		if seconds <= bound {
			b.counts[i]++
		}
	}
}

// WritePrometheus writes the histogram, sorted by route and code
func (r *RequestHistogram) WritePrometheus(w io.Writer, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]requestKey, 0, len(r.buckets))
	for key := range r.buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].code < keys[j].code
	})

	fmt.Fprintf(w, "# TYPE %s histogram\n", prefix)

	for _, key := range keys {
		b := r.buckets[key]
		for i, bound := range r.bounds {
			fmt.Fprintf(w, "%s_bucket{route=%q,code=\"%d\",le=\"%g\"} %d\n", prefix, key.route, key.code, bound, b.counts[i])
		}
		fmt.Fprintf(w, "%s_bucket{route=%q,code=\"%d\",le=\"+Inf\"} %d\n", prefix, key.route, key.code, b.count)
		fmt.Fprintf(w, "%s_count{route=%q,code=\"%d\"} %d\n", prefix, key.route, key.code, b.count)
		fmt.Fprintf(w, "%s_sum{route=%q,code=\"%d\"} %g\n", prefix, key.route, key.code, b.totalDuration)
	}
}

func (r *RequestHistogram) String() string {
	return "{}"
}
