package growth

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowGrowth(t *testing.T) {
	assert.Equal(t, Window{Gain: 1000, Percent: 1}, WindowGrowth(101_000, 100_000, true))
	assert.Equal(t, Window{Gain: -500, Percent: -0.5}, WindowGrowth(99_500, 100_000, true))
	assert.Equal(t, Window{}, WindowGrowth(100_000, 0, false))
	assert.Equal(t, Window{Gain: 10}, WindowGrowth(10, 0, true))
	assert.Equal(t, 0.3333, WindowGrowth(3_010, 3_000, true).Percent)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		daily, weekly float64
		want          models.ViralLabel
	}{
		{1.5, 0, models.ViralExploding},
		{0.6, 6, models.ViralExploding},
		{0.6, 4, models.ViralRising},
		{0.1, 3.5, models.ViralRising},
		{0.31, 0, models.ViralRising},
		{0.1, 1, models.ViralStable},
		{0, 0, models.ViralStable},
		{-0.1, 2, models.ViralSlowing},
		{0.1, -0.5, models.ViralSlowing},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.daily, tt.weekly), "daily=%v weekly=%v", tt.daily, tt.weekly)
	}
}

func TestViral(t *testing.T) {
	v := Viral(2_000_000, 2, 14)
	assert.Equal(t, 2.0, v.Acceleration)
	assert.Equal(t, 2.0, v.ViralScore) // 2 * 2 / 2
	assert.Equal(t, models.ViralExploding, v.Label)
	assert.Equal(t, "red", v.Color)

	assert.Equal(t, 100.0, Viral(1_000, 5, 70).ViralScore, "score is clamped")
	assert.Equal(t, 0.0, Viral(1_000_000, -1, 7).ViralScore, "negative scores clamp to zero")
	assert.Equal(t, 0.0, Viral(0, 1, 7).ViralScore)
}

func TestPredictOvertake(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("already ahead", func(t *testing.T) {
		p := PredictOvertake(models.Channel{SubscriberCount: 10}, models.Channel{SubscriberCount: 10}, now)
		assert.True(t, p.AlreadyAhead)
	})

	t.Run("not closing the gap", func(t *testing.T) {
		p := PredictOvertake(
			models.Channel{SubscriberCount: 100, DailySubscriberGain: 5},
			models.Channel{SubscriberCount: 200, DailySubscriberGain: 5},
			now,
		)
		assert.False(t, p.WillOvertake)
		assert.Equal(t, "Not growing faster than target", p.Reason)
	})

	t.Run("overtakes", func(t *testing.T) {
		p := PredictOvertake(
			models.Channel{SubscriberCount: 1_000, DailySubscriberGain: 30},
			models.Channel{SubscriberCount: 1_200, DailySubscriberGain: 10},
			now,
		)
		assert.True(t, p.WillOvertake)
		assert.Equal(t, int64(10), p.DaysToOvertake)
		assert.Equal(t, "2024-01-11", p.PredictedDate)
		assert.Equal(t, int64(200), p.CurrentGap)
		assert.Equal(t, int64(20), p.DailyGapClosure)
	})
}

type fakeStats struct {
	store.StatsStore
	snaps map[string][]models.StatsSnapshot
}

func (f *fakeStats) LatestSnapshot(_ context.Context, id string) (*models.StatsSnapshot, error) {
	s := f.snaps[id]
	if len(s) == 0 {
		return nil, store.ErrNotFound
	}
	latest := s[len(s)-1]
	return &latest, nil
}

func (f *fakeStats) SnapshotAtOrBefore(_ context.Context, id string, t time.Time) (*models.StatsSnapshot, error) {
	s := f.snaps[id]
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].Timestamp.After(t) {
			found := s[i]
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStats) History(_ context.Context, id string, since time.Time) ([]models.StatsSnapshot, error) {
	out := []models.StatsSnapshot{}
	for _, s := range f.snaps[id] {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeChannels struct {
	channels map[string]models.Channel
	saved    map[string]models.GrowthMetrics
}

func (f *fakeChannels) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	c, ok := f.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeChannels) ActiveChannelIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.channels))
	for id := range f.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeChannels) UpdateGrowthMetrics(_ context.Context, id string, m models.GrowthMetrics) error {
	if f.saved == nil {
		f.saved = map[string]models.GrowthMetrics{}
	}
	f.saved[id] = m
	return nil
}

func newTestAnalyzer(now time.Time) (*Analyzer, *fakeStats, *fakeChannels) {
	day := func(n int) time.Time { return now.Add(-time.Duration(n) * Daily) }
	stats := &fakeStats{snaps: map[string][]models.StatsSnapshot{
		"grow": {
			{ChannelID: "grow", SubscriberCount: 900_000, Timestamp: day(31)},
			{ChannelID: "grow", SubscriberCount: 950_000, Timestamp: day(8)},
			{ChannelID: "grow", SubscriberCount: 990_000, Timestamp: day(2)},
			{ChannelID: "grow", SubscriberCount: 1_000_000, Timestamp: now},
		},
		"young": {
			{ChannelID: "young", SubscriberCount: 5_000, Timestamp: now.Add(-time.Hour)},
		},
	}}
	channels := &fakeChannels{channels: map[string]models.Channel{
		"grow":  {ChannelID: "grow", SubscriberCount: 1_000_000, DailySubscriberGain: 10_000},
		"young": {ChannelID: "young", SubscriberCount: 5_000},
		"empty": {ChannelID: "empty"},
	}}

	a := NewAnalyzer(stats, channels, zerolog.Nop())
	a.now = func() time.Time { return now }
	return a, stats, channels
}

func TestAnalyzer_Metrics(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a, _, _ := newTestAnalyzer(now)

	m, err := a.Metrics(context.Background(), "grow")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), m.DailyGain)
	assert.Equal(t, 1.0101, m.DailyPercent)
	assert.Equal(t, int64(50_000), m.WeeklyGain)
	assert.Equal(t, 5.2632, m.WeeklyPercent)
	assert.Equal(t, int64(100_000), m.MonthlyGain)
	assert.Equal(t, models.ViralExploding, m.ViralLabel)

	m, err = a.Metrics(context.Background(), "young")
	require.NoError(t, err)
	assert.Zero(t, m.DailyGain)
	assert.Equal(t, models.ViralStable, m.ViralLabel)

	m, err = a.Metrics(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, models.ViralStable, m.ViralLabel)
}

func TestAnalyzer_UpdateAll(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a, _, channels := newTestAnalyzer(now)

	n, err := a.UpdateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, models.ViralExploding, channels.saved["grow"].ViralLabel)
	assert.Equal(t, now, channels.saved["grow"].UpdatedAt)
}

func TestAnalyzer_History(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a, _, _ := newTestAnalyzer(now)

	h, err := a.History(context.Background(), "grow", 7)
	require.NoError(t, err)
	assert.Len(t, h, 2)
}

func TestAnalyzer_PredictOvertake(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a, _, _ := newTestAnalyzer(now)

	p, err := a.PredictOvertake(context.Background(), "young", "grow")
	require.NoError(t, err)
	assert.False(t, p.WillOvertake)

	_, err = a.PredictOvertake(context.Background(), "young", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzer_ViralPredictionWithoutStats(t *testing.T) {
	a, _, _ := newTestAnalyzer(time.Now())
	v, err := a.ViralPrediction(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, models.ViralStable, v.Label)
	assert.Zero(t, v.ViralScore)
}
