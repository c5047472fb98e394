package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grvbrk/toptube_server/internal/models"
)

type PostgresAdminStore struct {
	db *sql.DB
}

func NewPostgresAdminStore(db *sql.DB) *PostgresAdminStore {
	return &PostgresAdminStore{db: db}
}

type AdminStore interface {
	GetAdminStats(ctx context.Context) (*models.AdminStats, error)
	ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error)
	ListNewsletterSubscribers(ctx context.Context, limit int) ([]models.NewsletterSubscriber, error)
}

func (a *PostgresAdminStore) GetAdminStats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats
	var lastUpdate sql.NullTime

	query := `
		SELECT
			(SELECT COUNT(*) FROM countries) AS total_countries,
			(SELECT COUNT(*) FROM channels WHERE is_active = true) AS total_channels,
			(SELECT COUNT(*) FROM channel_stats) AS total_stats_records,
			(SELECT MAX(recorded_at) FROM channel_stats) AS last_update;
	`

	err := a.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalCountries,
		&stats.TotalChannels,
		&stats.TotalStatsRecords,
		&lastUpdate,
	)
	if err != nil {
		return nil, fmt.Errorf("error getting admin stats: %w", err)
	}

	if lastUpdate.Valid {
		stats.LastUpdate = &lastUpdate.Time
	}
	return &stats, nil
}

func (a *PostgresAdminStore) ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, email, subject, message, created_at
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ContactMessage{}
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (a *PostgresAdminStore) ListNewsletterSubscribers(ctx context.Context, limit int) ([]models.NewsletterSubscriber, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT email, created_at
		FROM newsletter_subscribers
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get newsletter subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := []models.NewsletterSubscriber{}
	for rows.Next() {
		var s models.NewsletterSubscriber
		if err := rows.Scan(&s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}
