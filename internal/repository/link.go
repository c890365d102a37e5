package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dynalinks/dynalinks/internal/model"
)

// Common errors for link repository operations.
var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
)

const linkColumns = `
	id, short_code, ios_url, android_url, desktop_url, fallback_url,
	title, description, image_url,
	social_title, social_description, social_image_url,
	custom_parameters, is_active, expires_at, created_at, updated_at
`

// InsertLink inserts a new dynamic link. The short_code unique index
// is the source of truth for code uniqueness; a violation surfaces as
// ErrCodeExists so callers can retry generation.
func (r *Repository) InsertLink(ctx context.Context, link *model.Link) error {
	query := `
		INSERT INTO dynamic_links (
			id, short_code, ios_url, android_url, desktop_url, fallback_url,
			title, description, image_url,
			social_title, social_description, social_image_url,
			custom_parameters, is_active, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.ShortCode,
		link.IOSURL,
		link.AndroidURL,
		link.DesktopURL,
		link.FallbackURL,
		link.Title,
		link.Description,
		link.ImageURL,
		link.SocialTitle,
		link.SocialDescription,
		link.SocialImageURL,
		link.CustomParams,
		link.IsActive,
		link.ExpiresAt,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}

	return nil
}

// GetLinkByCode retrieves a link by its short code.
// This is the hot path for redirect resolution.
func (r *Repository) GetLinkByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM dynamic_links WHERE short_code = $1`

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by code: %w", err)
	}

	return link, nil
}

// UpdateLink persists the full mutable state of a link and refreshes
// updated_at. The caller resolves field-level merge semantics; the
// repository writes whatever it is handed.
func (r *Repository) UpdateLink(ctx context.Context, link *model.Link) error {
	query := `
		UPDATE dynamic_links SET
			ios_url = $2, android_url = $3, desktop_url = $4, fallback_url = $5,
			title = $6, description = $7, image_url = $8,
			social_title = $9, social_description = $10, social_image_url = $11,
			custom_parameters = $12, is_active = $13, expires_at = $14,
			updated_at = now()
		WHERE short_code = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		link.ShortCode,
		link.IOSURL,
		link.AndroidURL,
		link.DesktopURL,
		link.FallbackURL,
		link.Title,
		link.Description,
		link.ImageURL,
		link.SocialTitle,
		link.SocialDescription,
		link.SocialImageURL,
		link.CustomParams,
		link.IsActive,
		link.ExpiresAt,
	).Scan(&link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to update link: %w", err)
	}

	return nil
}

// DeactivateLink marks a link inactive. Deactivating an already
// inactive link succeeds without changes.
func (r *Repository) DeactivateLink(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `
		UPDATE dynamic_links
		SET is_active = FALSE, updated_at = now()
		WHERE short_code = $1
		RETURNING ` + linkColumns

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to deactivate link: %w", err)
	}

	return link, nil
}

// ListLinks returns links ordered by creation time, newest first.
func (r *Repository) ListLinks(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM dynamic_links`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// CodeExists reports whether a short code is already in use.
func (r *Repository) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM dynamic_links WHERE short_code = $1)`
	if err := r.pool.QueryRow(ctx, query, shortCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check short code: %w", err)
	}
	return exists, nil
}

func scanLink(row pgx.Row) (*model.Link, error) {
	link := &model.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.IOSURL,
		&link.AndroidURL,
		&link.DesktopURL,
		&link.FallbackURL,
		&link.Title,
		&link.Description,
		&link.ImageURL,
		&link.SocialTitle,
		&link.SocialDescription,
		&link.SocialImageURL,
		&link.CustomParams,
		&link.IsActive,
		&link.ExpiresAt,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
