package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/grvbrk/toptube_server/internal/models"
)

type ClickhouseStatsStore struct {
	conn driver.Conn
}

func NewClickhouseStatsStore(conn driver.Conn) *ClickhouseStatsStore {
	return &ClickhouseStatsStore{conn: conn}
}

type DailyPoint struct {
	Day             time.Time `json:"day" ch:"day"`
	SubscriberCount int64     `json:"subscriber_count" ch:"subscriber_count"`
	ViewCount       int64     `json:"view_count" ch:"view_count"`
}

type AnalyticsStatsStore interface {
	InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error
	History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error)
	DailySeries(ctx context.Context, channelID string, days int) ([]DailyPoint, error)
}

func (c *ClickhouseStatsStore) InsertSnapshots(ctx context.Context, snapshots []models.StatsSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `INSERT INTO channel_stats`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}

	for _, s := range snapshots {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if err := batch.Append(s.ChannelID, s.SubscriberCount, s.ViewCount, s.VideoCount, ts); err != nil {
			return fmt.Errorf("failed to append snapshot: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send snapshot batch: %w", err)
	}
	return nil
}

func (c *ClickhouseStatsStore) History(ctx context.Context, channelID string, since time.Time) ([]models.StatsSnapshot, error) {
	query := `
		SELECT channel_id, subscriber_count, view_count, video_count, recorded_at
		FROM channel_stats
		WHERE channel_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC
		LIMIT 1000
	`

	var history []models.StatsSnapshot
	if err := c.conn.Select(ctx, &history, query, channelID, since); err != nil {
		return nil, fmt.Errorf("failed to get channel history: %w", err)
	}
	return history, nil
}

// DailySeries collapses snapshots into one closing value per UTC day.
func (c *ClickhouseStatsStore) DailySeries(ctx context.Context, channelID string, days int) ([]DailyPoint, error) {
	query := `
		SELECT
			toDate(recorded_at) AS day,
			argMax(subscriber_count, recorded_at) AS subscriber_count,
			argMax(view_count, recorded_at) AS view_count
		FROM channel_stats
		WHERE channel_id = ? AND recorded_at >= now() - toIntervalDay(?)
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := c.conn.Query(ctx, query, channelID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily series: %w", err)
	}
	defer rows.Close()

	var points []DailyPoint
	for rows.Next() {
		var p DailyPoint
		if err := rows.Scan(&p.Day, &p.SubscriberCount, &p.ViewCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily point: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}
