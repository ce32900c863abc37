package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the scheduling domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	assignments     *prometheus.CounterVec
	conflicts       prometheus.Counter
	cloneSlots      *prometheus.CounterVec
	exportJobs      *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_assignments_total",
		Help: "Total assignment mutations by operation",
	}, []string{"operation"})

	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_conflicts_total",
		Help: "Total assignment attempts rejected as teacher conflicts",
	})

	cloneSlots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_clone_slots_total",
		Help: "Per-slot outcomes of clone and template-apply operations",
	}, []string{"result"})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_export_jobs_total",
		Help: "Export job outcomes",
	}, []string{"result"})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, assignments, conflicts, cloneSlots, exportJobs)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		assignments:     assignments,
		conflicts:       conflicts,
		cloneSlots:      cloneSlots,
		exportJobs:      exportJobs,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records latency and count for a request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordCacheHit counts a grid cache lookup outcome.
func (s *MetricsService) RecordCacheHit(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

// RecordAssignment counts an assignment mutation.
func (s *MetricsService) RecordAssignment(operation string) {
	s.assignments.WithLabelValues(operation).Inc()
}

// RecordConflict counts a rejected teacher-conflict attempt.
func (s *MetricsService) RecordConflict() {
	s.conflicts.Inc()
}

// RecordCloneSlot counts one slot outcome of a bulk replication.
func (s *MetricsService) RecordCloneSlot(result string) {
	s.cloneSlots.WithLabelValues(result).Inc()
}

// RecordExportJob counts a queue outcome for grid export jobs.
func (s *MetricsService) RecordExportJob(result string) {
	s.exportJobs.WithLabelValues(result).Inc()
}
