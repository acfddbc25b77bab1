package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// QR token metrics
	qrTokensGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qr_tokens_generated_total",
			Help: "Total number of QR access tokens minted",
		},
	)

	qrTokenRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qr_token_redemptions_total",
			Help: "Total number of QR token redemption attempts",
		},
		[]string{"status"},
	)

	qrTokensLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qr_tokens_live",
			Help: "Number of stored QR access tokens that are still redeemable",
		},
	)

	// Consent metrics
	consentEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_events_total",
			Help: "Total number of consent lifecycle events",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		qrTokensGeneratedTotal,
		qrTokenRedemptionsTotal,
		qrTokensLive,
		consentEventsTotal,
	)
}

// RecordHTTPRequest records metrics for a completed HTTP request
func RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordTokenGenerated records a minted QR access token
func RecordTokenGenerated() {
	qrTokensGeneratedTotal.Inc()
}

// RecordTokenRedemption records a redemption attempt outcome
func RecordTokenRedemption(status string) {
	qrTokenRedemptionsTotal.WithLabelValues(status).Inc()
}

// SetLiveTokens sets the live QR access token gauge
func SetLiveTokens(count int) {
	qrTokensLive.Set(float64(count))
}

// RecordConsentEvent records a consent lifecycle event
func RecordConsentEvent(action string) {
	consentEventsTotal.WithLabelValues(action).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
