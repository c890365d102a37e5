package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/dynalinks/dynalinks/internal/metrics"
)

// MetricsHandler renders in-memory counters in Prometheus text format.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshotter.Snapshot()

	var b strings.Builder

	writeCounter(&b, "dynalinks_resolve_cache_hits_total", "Short code resolutions served from cache.", snap.ResolveCacheHits)
	writeCounter(&b, "dynalinks_resolve_cache_misses_total", "Short code resolutions that went to the store.", snap.ResolveCacheMisses)
	writeCounter(&b, "dynalinks_resolve_duration_seconds_count", "Number of observed resolutions.", snap.ResolveDurationCount)

	fmt.Fprintf(&b, "# HELP dynalinks_resolve_duration_seconds_sum Total time spent resolving short codes.\n")
	fmt.Fprintf(&b, "# TYPE dynalinks_resolve_duration_seconds_sum counter\n")
	fmt.Fprintf(&b, "dynalinks_resolve_duration_seconds_sum %g\n", float64(snap.ResolveDurationTotalNs)/1e9)

	writeLabeledCounter(&b, "dynalinks_redirects_total", "Redirects issued by target type.", "type", snap.Redirects)

	writeCounter(&b, "dynalinks_links_created_total", "Links created.", snap.LinksCreated)
	writeCounter(&b, "dynalinks_links_updated_total", "Links updated.", snap.LinksUpdated)
	writeCounter(&b, "dynalinks_links_deactivated_total", "Links deactivated.", snap.LinksDeactivated)

	writeCounter(&b, "dynalinks_rate_limited_total", "Requests rejected by the rate limiter.", snap.RateLimited)

	writeCounter(&b, "dynalinks_analytics_events_published_total", "Click events published to the stream.", snap.AnalyticsEventsPublished)
	writeCounter(&b, "dynalinks_analytics_events_dropped_total", "Click events dropped at publish time.", snap.AnalyticsEventsDropped)
	writeLabeledCounter(&b, "dynalinks_analytics_events_processed_total", "Click events processed by the worker.", "status", snap.AnalyticsEventsProcessed)

	fmt.Fprintf(&b, "# HELP dynalinks_analytics_queue_depth Pending entries in the click event stream.\n")
	fmt.Fprintf(&b, "# TYPE dynalinks_analytics_queue_depth gauge\n")
	fmt.Fprintf(&b, "dynalinks_analytics_queue_depth %d\n", snap.AnalyticsQueueDepth)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func writeCounter(b *strings.Builder, name, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %d\n", name, value)
}

func writeLabeledCounter(b *strings.Builder, name, help, label string, values map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}
