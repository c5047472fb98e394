package growth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

type ChannelSource interface {
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	ActiveChannelIDs(ctx context.Context) ([]string, error)
	UpdateGrowthMetrics(ctx context.Context, channelID string, metrics models.GrowthMetrics) error
}

type Analyzer struct {
	stats    store.StatsStore
	channels ChannelSource
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAnalyzer(stats store.StatsStore, channels ChannelSource, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		stats:    stats,
		channels: channels,
		logger:   logger.With().Str("component", "growth").Logger(),
		now:      time.Now,
	}
}

// window measures growth from the latest snapshot back to the newest
// snapshot taken at or before now-d.
func (a *Analyzer) window(ctx context.Context, channelID string, latest *models.StatsSnapshot, d time.Duration) (Window, error) {
	old, err := a.stats.SnapshotAtOrBefore(ctx, channelID, a.now().UTC().Add(-d))
	if errors.Is(err, store.ErrNotFound) {
		return WindowGrowth(latest.SubscriberCount, 0, false), nil
	}
	if err != nil {
		return Window{}, err
	}
	return WindowGrowth(latest.SubscriberCount, old.SubscriberCount, true), nil
}

// Metrics computes all windows and the viral data for one channel without
// persisting them. A channel with no snapshots gets zero growth and Stable.
func (a *Analyzer) Metrics(ctx context.Context, channelID string) (models.GrowthMetrics, error) {
	m := models.GrowthMetrics{ViralLabel: models.ViralStable, UpdatedAt: a.now().UTC()}

	latest, err := a.stats.LatestSnapshot(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("latest snapshot: %w", err)
	}

	daily, err := a.window(ctx, channelID, latest, Daily)
	if err != nil {
		return m, fmt.Errorf("daily window: %w", err)
	}
	weekly, err := a.window(ctx, channelID, latest, Weekly)
	if err != nil {
		return m, fmt.Errorf("weekly window: %w", err)
	}
	monthly, err := a.window(ctx, channelID, latest, Monthly)
	if err != nil {
		return m, fmt.Errorf("monthly window: %w", err)
	}

	viral := Viral(latest.SubscriberCount, daily.Percent, weekly.Percent)

	m.DailyGain, m.DailyPercent = daily.Gain, daily.Percent
	m.WeeklyGain, m.WeeklyPercent = weekly.Gain, weekly.Percent
	m.MonthlyGain, m.MonthlyPercent = monthly.Gain, monthly.Percent
	m.ViralScore = viral.ViralScore
	m.ViralLabel = viral.Label
	return m, nil
}

func (a *Analyzer) UpdateChannel(ctx context.Context, channelID string) (models.GrowthMetrics, error) {
	m, err := a.Metrics(ctx, channelID)
	if err != nil {
		return m, err
	}
	if err := a.channels.UpdateGrowthMetrics(ctx, channelID, m); err != nil {
		return m, fmt.Errorf("save growth metrics: %w", err)
	}
	return m, nil
}

// UpdateAll refreshes metrics for every active channel. Per-channel
// failures are logged and skipped.
func (a *Analyzer) UpdateAll(ctx context.Context) (int, error) {
	ids, err := a.channels.ActiveChannelIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list channels: %w", err)
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := a.UpdateChannel(ctx, id); err != nil {
			a.logger.Warn().Err(err).Str("channel_id", id).Msg("growth update failed")
			continue
		}
		updated++
	}

	a.logger.Info().Int("channels", updated).Msg("growth metrics updated")
	return updated, nil
}

func (a *Analyzer) History(ctx context.Context, channelID string, days int) ([]models.StatsSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	return a.stats.History(ctx, channelID, a.now().UTC().Add(-time.Duration(days)*Daily))
}

// ViralPrediction reports the current viral data for a channel. With no
// snapshots the prediction is a zero score labelled Stable.
func (a *Analyzer) ViralPrediction(ctx context.Context, channelID string) (models.ViralPrediction, error) {
	latest, err := a.stats.LatestSnapshot(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return models.ViralPrediction{Label: models.ViralStable, Color: LabelColor(models.ViralStable)}, nil
	}
	if err != nil {
		return models.ViralPrediction{}, fmt.Errorf("latest snapshot: %w", err)
	}

	daily, err := a.window(ctx, channelID, latest, Daily)
	if err != nil {
		return models.ViralPrediction{}, err
	}
	weekly, err := a.window(ctx, channelID, latest, Weekly)
	if err != nil {
		return models.ViralPrediction{}, err
	}
	return Viral(latest.SubscriberCount, daily.Percent, weekly.Percent), nil
}

// PredictOvertake loads both channels and predicts when channelID passes
// targetID. Unknown channels return store.ErrNotFound.
func (a *Analyzer) PredictOvertake(ctx context.Context, channelID, targetID string) (models.OvertakePrediction, error) {
	channel, err := a.channels.GetChannel(ctx, channelID)
	if err != nil {
		return models.OvertakePrediction{}, err
	}
	target, err := a.channels.GetChannel(ctx, targetID)
	if err != nil {
		return models.OvertakePrediction{}, err
	}
	return PredictOvertake(*channel, *target, a.now()), nil
}
