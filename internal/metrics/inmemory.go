package metrics

import (
	"sync"
	"time"
)

// InMemoryRecorder keeps counters in process memory behind a mutex.
// It backs the /metrics endpoint and is also handy in tests.
type InMemoryRecorder struct {
	mu sync.Mutex

	resolveCacheHits       int64
	resolveCacheMisses     int64
	resolveDurationCount   int64
	resolveDurationTotalNs int64

	redirects map[string]int64

	linksCreated     int64
	linksUpdated     int64
	linksDeactivated int64

	rateLimited int64

	analyticsPublished int64
	analyticsDropped   int64
	analyticsProcessed map[string]int64
	analyticsQueue     int64
}

// NewInMemory returns an empty in-memory recorder.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		redirects:          make(map[string]int64),
		analyticsProcessed: make(map[string]int64),
	}
}

func (r *InMemoryRecorder) IncResolveCacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveCacheHits++
}

func (r *InMemoryRecorder) IncResolveCacheMiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveCacheMisses++
}

func (r *InMemoryRecorder) ObserveResolveDuration(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveDurationCount++
	r.resolveDurationTotalNs += duration.Nanoseconds()
}

func (r *InMemoryRecorder) IncRedirect(redirectType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[redirectType]++
}

func (r *InMemoryRecorder) IncLinkCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linksCreated++
}

func (r *InMemoryRecorder) IncLinkUpdated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linksUpdated++
}

func (r *InMemoryRecorder) IncLinkDeactivated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linksDeactivated++
}

func (r *InMemoryRecorder) IncRateLimited() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimited++
}

func (r *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status == "success" {
		r.analyticsPublished++
	} else {
		r.analyticsDropped++
	}
}

func (r *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyticsProcessed[status]++
}

func (r *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {}

func (r *InMemoryRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

func (r *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyticsQueue = depth
}

func (r *InMemoryRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {}

// Snapshot returns a copy of the current counters.
func (r *InMemoryRecorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	redirects := make(map[string]int64, len(r.redirects))
	for k, v := range r.redirects {
		redirects[k] = v
	}
	processed := make(map[string]int64, len(r.analyticsProcessed))
	for k, v := range r.analyticsProcessed {
		processed[k] = v
	}

	return Snapshot{
		ResolveCacheHits:       r.resolveCacheHits,
		ResolveCacheMisses:     r.resolveCacheMisses,
		ResolveDurationCount:   r.resolveDurationCount,
		ResolveDurationTotalNs: r.resolveDurationTotalNs,
		Redirects:              redirects,
		LinksCreated:           r.linksCreated,
		LinksUpdated:           r.linksUpdated,
		LinksDeactivated:       r.linksDeactivated,
		RateLimited:            r.rateLimited,
		AnalyticsEventsPublished: r.analyticsPublished,
		AnalyticsEventsDropped:   r.analyticsDropped,
		AnalyticsEventsProcessed: processed,
		AnalyticsQueueDepth:      r.analyticsQueue,
	}
}
