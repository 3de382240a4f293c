package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	// Metrics
	reminderDigestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_digests_total",
			Help: "Total number of reminder digests produced",
		},
		[]string{"language"},
	)

	purgedGroupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purged_groups_total",
			Help: "Total number of graduated groups purged",
		},
	)

	ecampusPointsChangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecampus_points_changes_total",
			Help: "Total number of detected e-campus points changes",
		},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time spent running background jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	// Initialize logger
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	// Register metrics
	prometheus.MustRegister(reminderDigestsTotal)
	prometheus.MustRegister(purgedGroupsTotal)
	prometheus.MustRegister(ecampusPointsChangesTotal)
	prometheus.MustRegister(jobDuration)

	// Setup OpenTelemetry (simplified setup)
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// Start Prometheus metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordReminderDigest records one produced reminder digest.
func RecordReminderDigest(language string) {
	reminderDigestsTotal.WithLabelValues(language).Inc()
}

// RecordPurgedGroups records graduated groups removed by the purge job.
func RecordPurgedGroups(n int64) {
	purgedGroupsTotal.Add(float64(n))
}

// RecordPointsChange records one detected e-campus points change.
func RecordPointsChange() {
	ecampusPointsChangesTotal.Inc()
}

// StartJob returns a stop function recording the job run duration.
func StartJob(job string) func() {
	timer := prometheus.NewTimer(jobDuration.WithLabelValues(job))
	return func() { timer.ObserveDuration() }
}
