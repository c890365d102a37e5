package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dynalinks/dynalinks/internal/model"
)

// topReferrerLimit caps the referrer breakdown in analytics queries.
const topReferrerLimit = 10

// ClickEventRepository provides database access for click events.
type ClickEventRepository struct {
	repo *Repository
}

// NewClickEventRepository creates a new ClickEventRepository.
func NewClickEventRepository(repo *Repository) *ClickEventRepository {
	return &ClickEventRepository{repo: repo}
}

// BulkInsert inserts a batch of click events. Replays are absorbed by
// ON CONFLICT DO NOTHING on event_id, so the analytics worker can
// safely re-deliver a batch after a partial failure.
func (r *ClickEventRepository) BulkInsert(ctx context.Context, events []*model.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO click_events (
			id, event_id, link_id, short_code,
			ip_hash, user_agent, referer,
			platform, device_type, browser, os,
			country, region, city,
			redirected_to, redirect_type,
			clicked_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
		ON CONFLICT (event_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.LinkID,
			event.ShortCode,
			event.IPHash,
			nullableString(event.UserAgent),
			nullableString(event.Referer),
			event.Platform,
			nullableString(event.DeviceType),
			nullableString(event.Browser),
			nullableString(event.OS),
			nullableString(event.Country),
			nullableString(event.Region),
			nullableString(event.City),
			event.RedirectedTo,
			string(event.RedirectType),
			event.ClickedAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// GetLinkAnalytics aggregates click events for a link over the last
// `days` days. Unique clicks are distinct hashed client addresses.
func (r *ClickEventRepository) GetLinkAnalytics(ctx context.Context, linkID string, days int) (*model.LinkAnalytics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	analytics := &model.LinkAnalytics{
		ClicksByPlatform: make(map[string]int64),
		ClicksByCountry:  make(map[string]int64),
		ClicksByDate:     make(map[string]int64),
		TopReferrers:     make(map[string]int64),
	}

	totalsQuery := `
		SELECT COUNT(*), COUNT(DISTINCT ip_hash)
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2
	`
	err := r.repo.pool.QueryRow(ctx, totalsQuery, linkID, since).
		Scan(&analytics.TotalClicks, &analytics.UniqueClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	if err := r.aggregateGroup(ctx, analytics.ClicksByPlatform, `
		SELECT platform, COUNT(*)
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2
		GROUP BY platform
	`, linkID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate platforms: %w", err)
	}

	if err := r.aggregateGroup(ctx, analytics.ClicksByCountry, `
		SELECT country, COUNT(*)
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2 AND country IS NOT NULL
		GROUP BY country
	`, linkID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate countries: %w", err)
	}

	if err := r.aggregateGroup(ctx, analytics.ClicksByDate, `
		SELECT to_char(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD'), COUNT(*)
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2
		GROUP BY 1
	`, linkID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate dates: %w", err)
	}

	referrersQuery := fmt.Sprintf(`
		SELECT referer, COUNT(*) AS clicks
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2 AND referer IS NOT NULL
		GROUP BY referer
		ORDER BY clicks DESC
		LIMIT %d
	`, topReferrerLimit)
	if err := r.aggregateGroup(ctx, analytics.TopReferrers, referrersQuery, linkID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate referrers: %w", err)
	}

	return analytics, nil
}

func (r *ClickEventRepository) aggregateGroup(ctx context.Context, dest map[string]int64, query string, args ...any) error {
	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
