package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DownloadsTotal tracks finished workflows by status and quality
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdl_downloads_total",
			Help: "Total number of download workflows by terminal status",
		},
		[]string{"status", "quality"},
	)

	// DownloadDuration tracks download duration in seconds by quality
	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackdl_download_duration_seconds",
			Help:    "Download duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"quality"},
	)

	// ActiveDownloads tracks number of running workflows
	ActiveDownloads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackdl_active_downloads",
			Help: "Number of active download workflows",
		},
	)

	// DownloadBytesTotal tracks total audio bytes written
	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackdl_download_bytes_total",
			Help: "Total audio bytes written",
		},
	)

	// EnrichmentFailuresTotal tracks non-fatal lyric/cover failures
	EnrichmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdl_enrichment_failures_total",
			Help: "Total number of failed sidecar enrichments",
		},
		[]string{"kind"},
	)

	// SourceRequestsTotal tracks source service requests by endpoint and status
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdl_source_requests_total",
			Help: "Total number of music source requests",
		},
		[]string{"endpoint", "status"},
	)

	// SourceRequestDuration tracks source request duration
	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackdl_source_request_duration_seconds",
			Help:    "Music source request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// ErrorsTotal tracks workflow aborts by error type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackdl_errors_total",
			Help: "Total number of workflow errors",
		},
		[]string{"type"},
	)
)

// RecordDownloadStart records the start of a workflow
func RecordDownloadStart() {
	ActiveDownloads.Inc()
}

// RecordDownloadComplete records a successful workflow
func RecordDownloadComplete(quality string, duration time.Duration, bytes int64) {
	DownloadsTotal.WithLabelValues("completed", quality).Inc()
	DownloadDuration.WithLabelValues(quality).Observe(duration.Seconds())
	DownloadBytesTotal.Add(float64(bytes))
	ActiveDownloads.Dec()
}

// RecordDownloadAborted records a workflow that ended before completion.
// A user cancellation is counted as "cancelled", everything else as "failed".
func RecordDownloadAborted(quality string, errorType string) {
	status := "failed"
	if errorType == "cancelled" {
		status = "cancelled"
	}
	DownloadsTotal.WithLabelValues(status, quality).Inc()
	ErrorsTotal.WithLabelValues(errorType).Inc()
	ActiveDownloads.Dec()
}

// RecordEnrichmentFailure records a lyric or cover failure
func RecordEnrichmentFailure(kind string) {
	EnrichmentFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordSourceRequest records a request to the music source
func RecordSourceRequest(endpoint string, status string, duration time.Duration) {
	SourceRequestsTotal.WithLabelValues(endpoint, status).Inc()
	SourceRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ServeMetrics exposes the default registry on addr until ctx is done
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
