// Package ingest pulls channel data from YouTube into the store and keeps
// the stats history growing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

var ErrUnknownCountry = errors.New("country not found")

// Fetcher is the slice of the YouTube client ingestion needs.
type Fetcher interface {
	ChannelStats(ctx context.Context, channelID string) (models.YouTubeChannel, error)
	BatchStats(ctx context.Context, channelIDs []string) ([]models.YouTubeChannel, error)
}

type Ingester struct {
	channels  store.ChannelStore
	countries store.CountryStore
	stats     store.StatsStore
	yt        Fetcher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewIngester(channels store.ChannelStore, countries store.CountryStore, stats store.StatsStore, yt Fetcher, logger zerolog.Logger) *Ingester {
	return &Ingester{
		channels:  channels,
		countries: countries,
		stats:     stats,
		yt:        yt,
		logger:    logger.With().Str("component", "ingest").Logger(),
		now:       time.Now,
	}
}

func snapshotOf(channelID string, subs, views, videos int64, at time.Time) models.StatsSnapshot {
	return models.StatsSnapshot{
		ChannelID:       channelID,
		SubscriberCount: subs,
		ViewCount:       views,
		VideoCount:      videos,
		Timestamp:       at,
	}
}

func channelFromYouTube(yt models.YouTubeChannel, country *models.Country) *models.Channel {
	return &models.Channel{
		ChannelID:       yt.ChannelID,
		Title:           yt.Title,
		Description:     yt.Description,
		CustomURL:       yt.CustomURL,
		CountryCode:     country.Code,
		CountryName:     country.Name,
		ThumbnailURL:    yt.ThumbnailURL,
		PublishedAt:     yt.PublishedAt,
		SubscriberCount: yt.SubscriberCount,
		ViewCount:       yt.ViewCount,
		VideoCount:      yt.VideoCount,
		ViralLabel:      models.ViralStable,
		IsActive:        true,
	}
}

// AddChannel starts tracking a YouTube channel under a country and stores
// its first snapshot.
func (i *Ingester) AddChannel(ctx context.Context, channelID, countryCode string) (*models.Channel, error) {
	if _, err := i.channels.GetChannel(ctx, channelID); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	country, err := i.countries.GetCountry(ctx, strings.ToUpper(countryCode))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownCountry
	}
	if err != nil {
		return nil, err
	}

	yt, err := i.yt.ChannelStats(ctx, channelID)
	if err != nil {
		return nil, err
	}

	channel := channelFromYouTube(yt, country)
	if err := i.channels.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}

	snap := snapshotOf(channel.ChannelID, yt.SubscriberCount, yt.ViewCount, yt.VideoCount, i.now().UTC())
	if err := i.stats.InsertSnapshots(ctx, []models.StatsSnapshot{snap}); err != nil {
		return nil, fmt.Errorf("store initial snapshot: %w", err)
	}

	i.logger.Info().Str("channel_id", channel.ChannelID).Str("title", channel.Title).Msg("channel added")
	return channel, nil
}

// RefreshChannel re-reads one tracked channel from YouTube.
func (i *Ingester) RefreshChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	if _, err := i.channels.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}

	yt, err := i.yt.ChannelStats(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := i.channels.UpdateChannelFromYouTube(ctx, yt); err != nil {
		return nil, err
	}

	snap := snapshotOf(channelID, yt.SubscriberCount, yt.ViewCount, yt.VideoCount, i.now().UTC())
	if err := i.stats.InsertSnapshots(ctx, []models.StatsSnapshot{snap}); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	return i.channels.GetChannel(ctx, channelID)
}

// RefreshAll batch-fetches every active channel and records a snapshot
// for each one YouTube returned.
func (i *Ingester) RefreshAll(ctx context.Context) (int, error) {
	ids, err := i.channels.ActiveChannelIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list channels: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	results, err := i.yt.BatchStats(ctx, ids)
	if err != nil && len(results) == 0 {
		return 0, err
	}
	if err != nil {
		i.logger.Warn().Err(err).Int("fetched", len(results)).Msg("partial batch refresh")
	}

	now := i.now().UTC()
	snaps := make([]models.StatsSnapshot, 0, len(results))
	for _, yt := range results {
		if err := i.channels.UpdateChannelFromYouTube(ctx, yt); err != nil {
			i.logger.Warn().Err(err).Str("channel_id", yt.ChannelID).Msg("channel update failed")
			continue
		}
		snaps = append(snaps, snapshotOf(yt.ChannelID, yt.SubscriberCount, yt.ViewCount, yt.VideoCount, now))
	}

	if err := i.stats.InsertSnapshots(ctx, snaps); err != nil {
		return 0, fmt.Errorf("store snapshots: %w", err)
	}

	i.logger.Info().Int("requested", len(ids)).Int("refreshed", len(snaps)).Msg("channels refreshed")
	return len(snaps), nil
}

// RecordSnapshots stores the current counts of every active channel as
// they are in the database, without calling YouTube.
func (i *Ingester) RecordSnapshots(ctx context.Context) (int, error) {
	channels, _, err := i.channels.ListChannels(ctx, store.ChannelFilter{})
	if err != nil {
		return 0, fmt.Errorf("list channels: %w", err)
	}

	now := i.now().UTC()
	snaps := make([]models.StatsSnapshot, 0, len(channels))
	for _, c := range channels {
		snaps = append(snaps, snapshotOf(c.ChannelID, c.SubscriberCount, c.ViewCount, c.VideoCount, now))
	}
	if err := i.stats.InsertSnapshots(ctx, snaps); err != nil {
		return 0, fmt.Errorf("store snapshots: %w", err)
	}
	return len(snaps), nil
}
