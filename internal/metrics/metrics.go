// Package metrics exposes Prometheus collectors for the title relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Title sources.
const (
	SourceOverride = "override"
	SourceNetwork  = "network"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"method", "route"},
	)

	relayTitlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_titles_total",
			Help: "Total number of title lookups, labeled by source and response code.",
		},
		[]string{"source", "code"},
	)

	relayFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fetches_total",
			Help: "Total number of outbound fetches, labeled by upstream status class.",
		},
		[]string{"status"},
	)

	relayFetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_fetch_duration_seconds",
			Help:    "Histogram of outbound fetch latencies up to response headers.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		},
	)

	relayRedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_redirects_followed_total",
			Help: "Total number of redirect hops followed.",
		},
	)

	relayBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bytes_total",
			Help: "Total number of body bytes read from upstreams.",
		},
	)

	relayWatchdogTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_watchdog_timeouts_total",
			Help: "Total number of requests answered with 504 by the watchdog.",
		},
	)

	relayRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Total number of inbound requests rejected by the rate limiter.",
		},
	)
)

// StatusClass buckets an upstream status code into "1xx".."5xx". Zero means
// the request never got a response and maps to "error"; anything else outside
// 100-599 is "other". Target hosts are caller-controlled, so outbound metrics
// are labelled by this class only.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 100 && code < 600:
		return strconv.Itoa(code/100) + "xx"
	default:
		return "other"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTitle records how a title lookup was answered.
func ObserveTitle(source string, code int) {
	relayTitlesTotal.WithLabelValues(source, strconv.Itoa(code)).Inc()
}

// ObserveFetch records one outbound request. code is the upstream status, or
// zero for transport failures.
func ObserveFetch(code int, duration time.Duration) {
	relayFetchesTotal.WithLabelValues(StatusClass(code)).Inc()
	relayFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveBytes adds to the upstream body byte counter.
func ObserveBytes(n int) {
	if n <= 0 {
		return
	}
	relayBytesTotal.Add(float64(n))
}

// ObserveRedirect counts a followed redirect hop.
func ObserveRedirect() {
	relayRedirectsTotal.Inc()
}

// ObserveWatchdogTimeout counts a 504 issued by the watchdog.
func ObserveWatchdogTimeout() {
	relayWatchdogTimeoutsTotal.Inc()
}

// ObserveRateLimited counts an inbound request rejected by the limiter.
func ObserveRateLimited() {
	relayRateLimitedTotal.Inc()
}
