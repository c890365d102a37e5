// Package analytics provides click event capture and processing.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynalinks/dynalinks/internal/metrics"
)

const (
	// StreamKey is the Redis stream for click events.
	StreamKey = "stream:click_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:click_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	// A slow stream must not slow down redirects.
	PublishTimeout = 100 * time.Millisecond

	// maxMetaLength truncates referrer and user agent values.
	maxMetaLength = 500
)

// ClickEventPayload is the compressed event format for the Redis stream.
type ClickEventPayload struct {
	ShortCode    string `json:"sc"`
	LinkID       string `json:"lid"`
	IPHash       string `json:"ih"`
	UserAgent    string `json:"ua,omitempty"`
	Referer      string `json:"r,omitempty"`
	Platform     string `json:"p"`
	DeviceType   string `json:"dt,omitempty"`
	Browser      string `json:"b,omitempty"`
	OS           string `json:"os,omitempty"`
	Country      string `json:"co,omitempty"`
	Region       string `json:"rg,omitempty"`
	City         string `json:"ci,omitempty"`
	RedirectedTo string `json:"ru"`
	RedirectType string `json:"rt"`
	ClickedAt    int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues click events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new analytics event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a click event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event ClickEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned; losing an event is acceptable,
// delaying a redirect is not.
func (p *Publisher) PublishAsync(event ClickEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish click event",
				"short_code", event.ShortCode,
				"error", err,
			)
			p.metrics.IncAnalyticsEventPublished("dropped")
			return
		}

		p.logger.Debug("click event published",
			"short_code", event.ShortCode,
			"stream_id", streamID,
		)
		p.metrics.IncAnalyticsEventPublished("success")
	}()
}

// SanitizeReferrer cleans and truncates the referrer URL.
// Strips query parameters and fragments for privacy.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	sanitized := parsed.String()
	if len(sanitized) > maxMetaLength {
		return sanitized[:maxMetaLength]
	}
	return sanitized
}

// TruncateUserAgent truncates a user agent to the stored maximum.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}
