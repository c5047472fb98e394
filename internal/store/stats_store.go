package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/rs/zerolog"
)

type PostgresStatsStore struct {
	db *sql.DB
}

func NewPostgresStatsStore(db *sql.DB) *PostgresStatsStore {
	if db == nil {
		panic("db cannot be nil for PostgresStatsStore")
	}
	return &PostgresStatsStore{db: db}
}

type StatsStore interface {
	InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error
	LatestSnapshot(ctx context.Context, channelID string) (*models.StatsSnapshot, error)
	SnapshotAtOrBefore(ctx context.Context, channelID string, t time.Time) (*models.StatsSnapshot, error)
	History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error)
	CountSnapshots(ctx context.Context) (int, error)
	LastSnapshotTime(ctx context.Context) (*time.Time, error)
}

func (pg *PostgresStatsStore) InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channel_stats (channel_id, subscriber_count, view_count, video_count, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, s.ChannelID, s.SubscriberCount, s.ViewCount, s.VideoCount, ts); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", s.ChannelID, err)
		}
	}

	return tx.Commit()
}

func (pg *PostgresStatsStore) scanOne(ctx context.Context, query string, args ...any) (*models.StatsSnapshot, error) {
	var s models.StatsSnapshot
	err := pg.db.QueryRowContext(ctx, query, args...).Scan(
		&s.ChannelID,
		&s.SubscriberCount,
		&s.ViewCount,
		&s.VideoCount,
		&s.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

func (pg *PostgresStatsStore) LatestSnapshot(ctx context.Context, channelID string) (*models.StatsSnapshot, error) {
	return pg.scanOne(ctx, `
		SELECT channel_id, subscriber_count, view_count, video_count, recorded_at
		FROM channel_stats
		WHERE channel_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, channelID)
}

func (pg *PostgresStatsStore) SnapshotAtOrBefore(ctx context.Context, channelID string, t time.Time) (*models.StatsSnapshot, error) {
	return pg.scanOne(ctx, `
		SELECT channel_id, subscriber_count, view_count, video_count, recorded_at
		FROM channel_stats
		WHERE channel_id = $1 AND recorded_at <= $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`, channelID, t)
}

func (pg *PostgresStatsStore) History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error) {
	rows, err := pg.db.QueryContext(ctx, `
		SELECT channel_id, subscriber_count, view_count, video_count, recorded_at
		FROM channel_stats
		WHERE channel_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
		LIMIT 1000
	`, channelID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats history: %w", err)
	}
	defer rows.Close()

	history := []models.StatsSnapshot{}
	for rows.Next() {
		var s models.StatsSnapshot
		if err := rows.Scan(&s.ChannelID, &s.SubscriberCount, &s.ViewCount, &s.VideoCount, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		history = append(history, s)
	}
	return history, rows.Err()
}

func (pg *PostgresStatsStore) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	if err := pg.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channel_stats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

func (pg *PostgresStatsStore) LastSnapshotTime(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := pg.db.QueryRowContext(ctx, `SELECT MAX(recorded_at) FROM channel_stats`).Scan(&t); err != nil {
		return nil, fmt.Errorf("failed to get last snapshot time: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// SnapshotMirror is a secondary sink for snapshots that can also serve
// history reads, such as the ClickHouse analytics store.
type SnapshotMirror interface {
	InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error
	History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error)
}

// MirroredStatsStore writes snapshots to the primary store and the mirror,
// and reads history from the mirror when it answers. Mirror failures are
// logged, never returned.
type MirroredStatsStore struct {
	StatsStore
	mirror SnapshotMirror
	logger zerolog.Logger
}

func NewMirroredStatsStore(primary StatsStore, mirror SnapshotMirror, logger zerolog.Logger) *MirroredStatsStore {
	return &MirroredStatsStore{
		StatsStore: primary,
		mirror:     mirror,
		logger:     logger.With().Str("component", "stats_mirror").Logger(),
	}
}

func (m *MirroredStatsStore) InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error {
	if err := m.StatsStore.InsertSnapshots(ctx, snapshots); err != nil {
		return err
	}
	if err := m.mirror.InsertSnapshots(ctx, snapshots); err != nil {
		m.logger.Warn().Err(err).Int("snapshots", len(snapshots)).Msg("mirror insert failed")
	}
	return nil
}

func (m *MirroredStatsStore) History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error) {
	history, err := m.mirror.History(ctx, channelID, since)
	if err == nil && len(history) > 0 {
		return history, nil
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("channel_id", channelID).Msg("mirror history failed, using primary")
	}
	return m.StatsStore.History(ctx, channelID, since)
}
