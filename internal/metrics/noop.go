package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncResolveCacheHit is a no-op.
func (n *NoopRecorder) IncResolveCacheHit() {}

// IncResolveCacheMiss is a no-op.
func (n *NoopRecorder) IncResolveCacheMiss() {}

// ObserveResolveDuration is a no-op.
func (n *NoopRecorder) ObserveResolveDuration(duration time.Duration) {}

// IncRedirect is a no-op.
func (n *NoopRecorder) IncRedirect(redirectType string) {}

// IncLinkCreated is a no-op.
func (n *NoopRecorder) IncLinkCreated() {}

// IncLinkUpdated is a no-op.
func (n *NoopRecorder) IncLinkUpdated() {}

// IncLinkDeactivated is a no-op.
func (n *NoopRecorder) IncLinkDeactivated() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// IncAnalyticsEventPublished is a no-op.
func (n *NoopRecorder) IncAnalyticsEventPublished(status string) {}

// IncAnalyticsEventProcessed is a no-op.
func (n *NoopRecorder) IncAnalyticsEventProcessed(status string) {}

// ObserveAnalyticsBatchSize is a no-op.
func (n *NoopRecorder) ObserveAnalyticsBatchSize(size int) {}

// ObserveAnalyticsBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

// SetAnalyticsQueueDepth is a no-op.
func (n *NoopRecorder) SetAnalyticsQueueDepth(depth int64) {}

// ObserveAnalyticsIngestLag is a no-op.
func (n *NoopRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {}
