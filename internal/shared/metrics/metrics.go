// Package metrics exposes Prometheus collectors for the CRM service and its sync tooling.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Image reconciliation metrics
	ReconcileFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_reconcile_fetches_total",
			Help: "Gallery fetches issued by the image reconciliation loop",
		},
		[]string{"outcome"},
	)

	ReconcileItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_reconcile_items_total",
			Help: "Line items settled by the image reconciliation loop",
		},
		[]string{"result"},
	)

	// Image storage metrics
	ImageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_image_uploads_total",
			Help: "Image uploads by storage driver and status",
		},
		[]string{"driver", "status"},
	)

	ImageUploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_image_upload_bytes_total",
			Help: "Bytes written to object storage",
		},
		[]string{"driver"},
	)

	// Cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_cache_lookups_total",
			Help: "KPI/dashboard cache lookups",
		},
		[]string{"result"},
	)
)

// RecordRequest records one handled HTTP request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload records an object storage write.
func RecordUpload(driver string, size int64, err error) {
	if err != nil {
		ImageUploadsTotal.WithLabelValues(driver, "error").Inc()
		return
	}
	ImageUploadsTotal.WithLabelValues(driver, "success").Inc()
	ImageUploadBytes.WithLabelValues(driver).Add(float64(size))
}
