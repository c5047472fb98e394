package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
)

// Job names double as keys in the scheduler_status table.
const (
	JobRefreshChannels = "refresh_channels"
	JobUpdateRankings  = "update_rankings"
	JobCalculateGrowth = "calculate_growth"
	JobRecordStats     = "record_stats"
	JobDailyBlogPost   = "daily_blog_post"
)

type PostgresStatusStore struct {
	db *sql.DB
}

func NewPostgresStatusStore(db *sql.DB) *PostgresStatusStore {
	return &PostgresStatusStore{db: db}
}

type StatusStore interface {
	GetStatus(ctx context.Context) (*models.SchedulerStatus, error)
	MarkJobRun(ctx context.Context, job string, at time.Time, detail int) error
}

func (pg *PostgresStatusStore) GetStatus(ctx context.Context) (*models.SchedulerStatus, error) {
	rows, err := pg.db.QueryContext(ctx, `SELECT job, last_run, detail FROM scheduler_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduler status: %w", err)
	}
	defer rows.Close()

	status := &models.SchedulerStatus{}
	for rows.Next() {
		var job string
		var lastRun time.Time
		var detail int
		if err := rows.Scan(&job, &lastRun, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan scheduler status: %w", err)
		}
		applyJobRun(status, job, lastRun, detail)
	}
	return status, rows.Err()
}

func (pg *PostgresStatusStore) MarkJobRun(ctx context.Context, job string, at time.Time, detail int) error {
	query := `
		INSERT INTO scheduler_status (job, last_run, detail)
		VALUES ($1, $2, $3)
		ON CONFLICT (job) DO UPDATE SET last_run = EXCLUDED.last_run, detail = EXCLUDED.detail
	`
	if _, err := pg.db.ExecContext(ctx, query, job, at, detail); err != nil {
		return fmt.Errorf("failed to record %s run: %w", job, err)
	}
	return nil
}

func applyJobRun(status *models.SchedulerStatus, job string, at time.Time, detail int) {
	switch job {
	case JobRefreshChannels:
		status.LastChannelRefresh = &at
		status.ChannelsRefreshed = detail
	case JobUpdateRankings:
		status.LastRankingUpdate = &at
	case JobCalculateGrowth:
		status.LastGrowthUpdate = &at
	case JobRecordStats:
		status.LastStatsSnapshot = &at
	case JobDailyBlogPost:
		status.LastBlogPost = &at
	}
}
