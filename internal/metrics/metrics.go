// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Resolution metrics
	IncResolveCacheHit()
	IncResolveCacheMiss()
	ObserveResolveDuration(duration time.Duration)
	IncRedirect(redirectType string) // ios/android/desktop/fallback/inactive/expired

	// Link lifecycle metrics
	IncLinkCreated()
	IncLinkUpdated()
	IncLinkDeactivated()

	// Rate limiter metrics
	IncRateLimited()

	// Analytics pipeline metrics
	IncAnalyticsEventPublished(status string) // status: "success" or "dropped"
	IncAnalyticsEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAnalyticsBatchSize(size int)
	ObserveAnalyticsBatchDuration(duration time.Duration)
	SetAnalyticsQueueDepth(depth int64)
	ObserveAnalyticsIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Snapshot is a point-in-time view of the in-memory counters.
type Snapshot struct {
	ResolveCacheHits       int64
	ResolveCacheMisses     int64
	ResolveDurationCount   int64
	ResolveDurationTotalNs int64

	Redirects map[string]int64

	LinksCreated     int64
	LinksUpdated     int64
	LinksDeactivated int64

	RateLimited int64

	AnalyticsEventsPublished int64
	AnalyticsEventsDropped   int64
	AnalyticsEventsProcessed map[string]int64
	AnalyticsQueueDepth      int64
}
