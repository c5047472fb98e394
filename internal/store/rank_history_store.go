package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
)

type PostgresRankHistoryStore struct {
	db *sql.DB
}

func NewPostgresRankHistoryStore(db *sql.DB) *PostgresRankHistoryStore {
	if db == nil {
		panic("db cannot be nil for PostgresRankHistoryStore")
	}
	return &PostgresRankHistoryStore{db: db}
}

type RankHistoryStore interface {
	InsertRankChanges(ctx context.Context, entries []models.RankHistoryEntry) error
	ChannelRankHistory(ctx context.Context, channelID string, since time.Time) ([]models.RankHistoryEntry, error)
	RecentChanges(ctx context.Context, countryCode string, limit int) ([]models.RankHistoryEntry, error)
}

func (pg *PostgresRankHistoryStore) InsertRankChanges(ctx context.Context, entries []models.RankHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rank history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rank_history (channel_id, country_code, old_rank, new_rank, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rank history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ChannelID, e.CountryCode, e.OldRank, e.NewRank, e.Timestamp); err != nil {
			return fmt.Errorf("failed to insert rank history for %s: %w", e.ChannelID, err)
		}
	}

	return tx.Commit()
}

func (pg *PostgresRankHistoryStore) query(ctx context.Context, query string, args ...any) ([]models.RankHistoryEntry, error) {
	rows, err := pg.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank history: %w", err)
	}
	defer rows.Close()

	entries := []models.RankHistoryEntry{}
	for rows.Next() {
		var e models.RankHistoryEntry
		if err := rows.Scan(
			&e.ChannelID,
			&e.ChannelName,
			&e.CountryCode,
			&e.OldRank,
			&e.NewRank,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rank history row: %w", err)
		}
		e.Change = e.OldRank - e.NewRank
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rank history rows: %w", err)
	}
	return entries, nil
}

func (pg *PostgresRankHistoryStore) ChannelRankHistory(ctx context.Context, channelID string, since time.Time) ([]models.RankHistoryEntry, error) {
	return pg.query(ctx, `
		SELECT rh.channel_id, COALESCE(c.title, ''), rh.country_code, rh.old_rank, rh.new_rank, rh.recorded_at
		FROM rank_history rh
		LEFT JOIN channels c ON c.channel_id = rh.channel_id
		WHERE rh.channel_id = $1 AND rh.recorded_at >= $2
		ORDER BY rh.recorded_at ASC
		LIMIT 1000
	`, channelID, since)
}

// RecentChanges lists the newest rank changes, newest first. An empty
// countryCode spans every country and the global ranking.
func (pg *PostgresRankHistoryStore) RecentChanges(ctx context.Context, countryCode string, limit int) ([]models.RankHistoryEntry, error) {
	if countryCode == "" {
		return pg.query(ctx, `
			SELECT rh.channel_id, COALESCE(c.title, ''), rh.country_code, rh.old_rank, rh.new_rank, rh.recorded_at
			FROM rank_history rh
			LEFT JOIN channels c ON c.channel_id = rh.channel_id
			ORDER BY rh.recorded_at DESC
			LIMIT $1
		`, limit)
	}

	return pg.query(ctx, `
		SELECT rh.channel_id, COALESCE(c.title, ''), rh.country_code, rh.old_rank, rh.new_rank, rh.recorded_at
		FROM rank_history rh
		LEFT JOIN channels c ON c.channel_id = rh.channel_id
		WHERE rh.country_code = $1
		ORDER BY rh.recorded_at DESC
		LIMIT $2
	`, countryCode, limit)
}
