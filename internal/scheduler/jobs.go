package scheduler

import (
	"context"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/ranking"
	"github.com/grvbrk/toptube_server/internal/store"
)

type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
	RecordSnapshots(ctx context.Context) (int, error)
}

type Ranker interface {
	UpdateAll(ctx context.Context) (ranking.UpdateSummary, error)
}

type GrowthUpdater interface {
	UpdateAll(ctx context.Context) (int, error)
}

type DailyPoster interface {
	GenerateDaily(ctx context.Context) (*models.BlogPost, error)
}

type Deps struct {
	Channels Refresher
	Rankings Ranker
	Growth   GrowthUpdater
	Blog     DailyPoster
}

const (
	RefreshInterval  = 6 * time.Hour
	RankingInterval  = 10 * time.Minute
	GrowthInterval   = time.Hour
	SnapshotInterval = 4 * time.Hour
	DailyPostHour    = 9
)

// RegisterJobs adds the standard job set.
func RegisterJobs(s *Scheduler, d Deps) {
	s.Every(store.JobRefreshChannels, "Refresh all channel data from YouTube", RefreshInterval, true, d.Channels.RefreshAll)

	s.Every(store.JobUpdateRankings, "Update channel rankings", RankingInterval, true, func(ctx context.Context) (int, error) {
		summary, err := d.Rankings.UpdateAll(ctx)
		return summary.ChannelsUpdated, err
	})

	s.Every(store.JobCalculateGrowth, "Calculate growth metrics for all channels", GrowthInterval, true, d.Growth.UpdateAll)

	s.Every(store.JobRecordStats, "Record stats snapshot for growth tracking", SnapshotInterval, false, d.Channels.RecordSnapshots)

	s.DailyAt(store.JobDailyBlogPost, "Generate daily ranking blog post", DailyPostHour, 0, func(ctx context.Context) (int, error) {
		if _, err := d.Blog.GenerateDaily(ctx); err != nil {
			return 0, err
		}
		return 1, nil
	})
}
