package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type ChannelOrder string

const (
	OrderBySubscribers  ChannelOrder = "subscribers"
	OrderByDailyPercent ChannelOrder = "daily_percent"
	OrderByDailyGain    ChannelOrder = "daily_gain"
)

const uniqueViolationCode = "23505"

type ChannelFilter struct {
	CountryCode string
	OrderBy     ChannelOrder
	Limit       int
	Offset      int
}

// RankUpdate carries a freshly assigned rank and the rank it replaced.
type RankUpdate struct {
	ChannelID    string
	Rank         int
	PreviousRank int
}

type PostgresChannelStore struct {
	db *sql.DB
}

func NewPostgresChannelStore(db *sql.DB) *PostgresChannelStore {
	if db == nil {
		panic("db cannot be nil for PostgresChannelStore")
	}
	return &PostgresChannelStore{db: db}
}

type ChannelStore interface {
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	GetChannels(ctx context.Context, channelIDs []string) ([]models.Channel, error)
	CreateChannel(ctx context.Context, channel *models.Channel) error
	UpsertChannel(ctx context.Context, channel *models.Channel) (bool, error)
	UpdateChannelFromYouTube(ctx context.Context, yt models.YouTubeChannel) error
	UpdateGrowthMetrics(ctx context.Context, channelID string, metrics models.GrowthMetrics) error
	UpdateCountryRanks(ctx context.Context, updates []RankUpdate) error
	UpdateGlobalRanks(ctx context.Context, updates []RankUpdate) error
	DeleteChannel(ctx context.Context, channelID string) error
	RelatedChannels(ctx context.Context, countryCode, excludeID string, limit int) ([]models.Channel, error)
	ActiveChannelIDs(ctx context.Context) ([]string, error)
	CountChannels(ctx context.Context) (int, error)
}

const channelColumns = `
	c.channel_id,
	c.title,
	c.description,
	c.custom_url,
	c.country_code,
	COALESCE(co.name, ''),
	c.thumbnail_url,
	c.published_at,
	c.subscriber_count,
	c.view_count,
	c.video_count,
	c.current_rank,
	c.previous_rank,
	c.global_rank,
	c.previous_global_rank,
	c.daily_subscriber_gain,
	c.daily_growth_percent,
	c.weekly_subscriber_gain,
	c.weekly_growth_percent,
	c.monthly_subscriber_gain,
	c.monthly_growth_percent,
	c.viral_label,
	c.viral_score,
	c.is_active,
	c.metrics_updated_at,
	c.created_at,
	c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*models.Channel, error) {
	var c models.Channel
	var currentRank, previousRank, globalRank, previousGlobalRank sql.NullInt64
	var metricsUpdatedAt sql.NullTime
	var label string

	err := row.Scan(
		&c.ChannelID,
		&c.Title,
		&c.Description,
		&c.CustomURL,
		&c.CountryCode,
		&c.CountryName,
		&c.ThumbnailURL,
		&c.PublishedAt,
		&c.SubscriberCount,
		&c.ViewCount,
		&c.VideoCount,
		&currentRank,
		&previousRank,
		&globalRank,
		&previousGlobalRank,
		&c.DailySubscriberGain,
		&c.DailyGrowthPercent,
		&c.WeeklySubscriberGain,
		&c.WeeklyGrowthPercent,
		&c.MonthlySubscriberGain,
		&c.MonthlyGrowthPercent,
		&label,
		&c.ViralScore,
		&c.IsActive,
		&metricsUpdatedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CurrentRank = nullIntPtr(currentRank)
	c.PreviousRank = nullIntPtr(previousRank)
	c.GlobalRank = nullIntPtr(globalRank)
	c.PreviousGlobalRank = nullIntPtr(previousGlobalRank)
	c.ViralLabel = models.ParseViralLabel(label)
	if metricsUpdatedAt.Valid {
		t := metricsUpdatedAt.Time
		c.MetricsUpdatedAt = &t
	}

	return &c, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (pg *PostgresChannelStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	whereClauses := []string{"c.is_active = true"}
	args := []any{}

	if filter.CountryCode != "" {
		args = append(args, strings.ToUpper(filter.CountryCode))
		whereClauses = append(whereClauses, fmt.Sprintf("c.country_code = $%d", len(args)))
	}

	orderClause := "ORDER BY c.subscriber_count DESC, c.channel_id"
	switch filter.OrderBy {
	case OrderByDailyPercent:
		orderClause = "ORDER BY c.daily_growth_percent DESC, c.subscriber_count DESC"
	case OrderByDailyGain:
		orderClause = "ORDER BY c.daily_subscriber_gain DESC, c.subscriber_count DESC"
	}

	where := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM channels c WHERE %s`, where)
	if err := pg.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count channels: %w", err)
	}

	limitClause := ""
	if filter.Limit > 0 {
		limitClause = fmt.Sprintf("LIMIT %d OFFSET %d", filter.Limit, max(filter.Offset, 0))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM channels c
		LEFT JOIN countries co ON co.code = c.country_code
		WHERE %s
		%s
		%s
	`, channelColumns, where, orderClause, limitClause)

	channels, err := pg.queryChannels(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return channels, total, nil
}

func (pg *PostgresChannelStore) queryChannels(ctx context.Context, query string, args ...any) ([]models.Channel, error) {
	rows, err := pg.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over channel rows: %w", err)
	}

	return channels, nil
}

func (pg *PostgresChannelStore) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM channels c
		LEFT JOIN countries co ON co.code = c.country_code
		WHERE c.channel_id = $1
	`, channelColumns)

	c, err := scanChannel(pg.db.QueryRowContext(ctx, query, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

func (pg *PostgresChannelStore) GetChannels(ctx context.Context, channelIDs []string) ([]models.Channel, error) {
	if len(channelIDs) == 0 {
		return []models.Channel{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM channels c
		LEFT JOIN countries co ON co.code = c.country_code
		WHERE c.channel_id = ANY($1)
	`, channelColumns)

	found, err := pg.queryChannels(ctx, query, channelIDs)
	if err != nil {
		return nil, err
	}

	// keep the caller's order
	byID := make(map[string]models.Channel, len(found))
	for _, c := range found {
		byID[c.ChannelID] = c
	}
	ordered := make([]models.Channel, 0, len(found))
	for _, id := range channelIDs {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func (pg *PostgresChannelStore) CreateChannel(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (
			channel_id, title, description, custom_url, country_code, thumbnail_url,
			published_at, subscriber_count, view_count, video_count, viral_label, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
		RETURNING created_at, updated_at
	`

	if channel.ViralLabel == "" {
		channel.ViralLabel = models.ViralStable
	}

	err := pg.db.QueryRowContext(ctx, query,
		channel.ChannelID,
		channel.Title,
		channel.Description,
		channel.CustomURL,
		strings.ToUpper(channel.CountryCode),
		channel.ThumbnailURL,
		channel.PublishedAt,
		channel.SubscriberCount,
		channel.ViewCount,
		channel.VideoCount,
		string(channel.ViralLabel),
	).Scan(&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert channel: %w", err)
	}

	channel.IsActive = true
	return nil
}

// UpsertChannel inserts the channel or refreshes its catalogue fields.
// It reports whether a new row was created.
func (pg *PostgresChannelStore) UpsertChannel(ctx context.Context, channel *models.Channel) (bool, error) {
	query := `
		INSERT INTO channels (
			channel_id, title, description, custom_url, country_code, thumbnail_url,
			published_at, subscriber_count, view_count, video_count, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		ON CONFLICT (channel_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			custom_url = EXCLUDED.custom_url,
			country_code = EXCLUDED.country_code,
			thumbnail_url = EXCLUDED.thumbnail_url,
			subscriber_count = EXCLUDED.subscriber_count,
			view_count = EXCLUDED.view_count,
			video_count = EXCLUDED.video_count,
			is_active = true,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`

	var inserted bool
	err := pg.db.QueryRowContext(ctx, query,
		channel.ChannelID,
		channel.Title,
		channel.Description,
		channel.CustomURL,
		strings.ToUpper(channel.CountryCode),
		channel.ThumbnailURL,
		channel.PublishedAt,
		channel.SubscriberCount,
		channel.ViewCount,
		channel.VideoCount,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert channel: %w", err)
	}

	return inserted, nil
}

func (pg *PostgresChannelStore) UpdateChannelFromYouTube(ctx context.Context, yt models.YouTubeChannel) error {
	query := `
		UPDATE channels
		SET title = $2,
			description = $3,
			thumbnail_url = $4,
			subscriber_count = $5,
			view_count = $6,
			video_count = $7,
			updated_at = NOW()
		WHERE channel_id = $1
	`

	res, err := pg.db.ExecContext(ctx, query,
		yt.ChannelID,
		yt.Title,
		yt.Description,
		yt.ThumbnailURL,
		yt.SubscriberCount,
		yt.ViewCount,
		yt.VideoCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update channel stats: %w", err)
	}
	return expectRow(res)
}

func (pg *PostgresChannelStore) UpdateGrowthMetrics(ctx context.Context, channelID string, m models.GrowthMetrics) error {
	query := `
		UPDATE channels
		SET daily_subscriber_gain = $2,
			daily_growth_percent = $3,
			weekly_subscriber_gain = $4,
			weekly_growth_percent = $5,
			monthly_subscriber_gain = $6,
			monthly_growth_percent = $7,
			viral_score = $8,
			viral_label = $9,
			metrics_updated_at = $10
		WHERE channel_id = $1
	`

	res, err := pg.db.ExecContext(ctx, query,
		channelID,
		m.DailyGain,
		m.DailyPercent,
		m.WeeklyGain,
		m.WeeklyPercent,
		m.MonthlyGain,
		m.MonthlyPercent,
		m.ViralScore,
		string(m.ViralLabel),
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update growth metrics: %w", err)
	}
	return expectRow(res)
}

func (pg *PostgresChannelStore) UpdateCountryRanks(ctx context.Context, updates []RankUpdate) error {
	return pg.updateRanks(ctx, updates, `
		UPDATE channels SET current_rank = $2, previous_rank = $3 WHERE channel_id = $1
	`)
}

func (pg *PostgresChannelStore) UpdateGlobalRanks(ctx context.Context, updates []RankUpdate) error {
	return pg.updateRanks(ctx, updates, `
		UPDATE channels SET global_rank = $2, previous_global_rank = $3 WHERE channel_id = $1
	`)
}

func (pg *PostgresChannelStore) updateRanks(ctx context.Context, updates []RankUpdate, query string) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rank transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare rank update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.ChannelID, u.Rank, u.PreviousRank); err != nil {
			return fmt.Errorf("failed to update rank for %s: %w", u.ChannelID, err)
		}
	}

	return tx.Commit()
}

// DeleteChannel removes the channel; stats and rank history cascade.
func (pg *PostgresChannelStore) DeleteChannel(ctx context.Context, channelID string) error {
	res, err := pg.db.ExecContext(ctx, `DELETE FROM channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return expectRow(res)
}

func (pg *PostgresChannelStore) RelatedChannels(ctx context.Context, countryCode, excludeID string, limit int) ([]models.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM channels c
		LEFT JOIN countries co ON co.code = c.country_code
		WHERE c.is_active = true AND c.country_code = $1 AND c.channel_id <> $2
		ORDER BY c.subscriber_count DESC
		LIMIT $3
	`, channelColumns)

	return pg.queryChannels(ctx, query, strings.ToUpper(countryCode), excludeID, limit)
}

func (pg *PostgresChannelStore) ActiveChannelIDs(ctx context.Context) ([]string, error) {
	rows, err := pg.db.QueryContext(ctx, `SELECT channel_id FROM channels WHERE is_active = true ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (pg *PostgresChannelStore) CountChannels(ctx context.Context) (int, error) {
	var n int
	if err := pg.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE is_active = true`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count channels: %w", err)
	}
	return n, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
