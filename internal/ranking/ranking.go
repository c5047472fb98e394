// Package ranking assigns country and global ranks by subscriber count and
// records every rank movement.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

// Entry is a channel as seen by the ranker: its size and the rank it held.
type Entry struct {
	ChannelID       string
	Title           string
	SubscriberCount int64
	StoredRank      *int
}

type Result struct {
	Updates []store.RankUpdate
	Changes []models.RankHistoryEntry
}

// AssignRanks sorts entries by subscribers (descending, stable) and gives
// each its position as new rank. The old rank is the stored rank, or the
// new rank when none is stored. Every differing pair becomes a change.
func AssignRanks(entries []Entry, countryCode string, now time.Time) Result {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return cmp.Compare(b.SubscriberCount, a.SubscriberCount)
	})

	res := Result{Updates: make([]store.RankUpdate, 0, len(sorted))}
	for i, e := range sorted {
		newRank := i + 1
		oldRank := newRank
		if e.StoredRank != nil {
			oldRank = *e.StoredRank
		}

		res.Updates = append(res.Updates, store.RankUpdate{
			ChannelID:    e.ChannelID,
			Rank:         newRank,
			PreviousRank: oldRank,
		})

		if oldRank != newRank {
			res.Changes = append(res.Changes, models.RankHistoryEntry{
				ChannelID:   e.ChannelID,
				ChannelName: e.Title,
				CountryCode: countryCode,
				OldRank:     oldRank,
				NewRank:     newRank,
				Change:      oldRank - newRank,
				Timestamp:   now,
			})
		}
	}
	return res
}

func countryEntries(channels []models.Channel) []Entry {
	entries := make([]Entry, 0, len(channels))
	for _, c := range channels {
		entries = append(entries, Entry{ChannelID: c.ChannelID, Title: c.Title, SubscriberCount: c.SubscriberCount, StoredRank: c.CurrentRank})
	}
	return entries
}

func globalEntries(channels []models.Channel) []Entry {
	entries := make([]Entry, 0, len(channels))
	for _, c := range channels {
		entries = append(entries, Entry{ChannelID: c.ChannelID, Title: c.Title, SubscriberCount: c.SubscriberCount, StoredRank: c.GlobalRank})
	}
	return entries
}

type Service struct {
	channels  store.ChannelStore
	countries store.CountryStore
	history   store.RankHistoryStore
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(channels store.ChannelStore, countries store.CountryStore, history store.RankHistoryStore, logger zerolog.Logger) *Service {
	return &Service{
		channels:  channels,
		countries: countries,
		history:   history,
		logger:    logger.With().Str("component", "ranking").Logger(),
		now:       time.Now,
	}
}

type UpdateSummary struct {
	Countries       int `json:"countries"`
	ChannelsUpdated int `json:"channels_updated"`
	Changes         int `json:"changes"`
}

func (s *Service) apply(ctx context.Context, res Result, global bool) error {
	var err error
	if global {
		err = s.channels.UpdateGlobalRanks(ctx, res.Updates)
	} else {
		err = s.channels.UpdateCountryRanks(ctx, res.Updates)
	}
	if err != nil {
		return err
	}
	return s.history.InsertRankChanges(ctx, res.Changes)
}

// UpdateCountry re-ranks the active channels of one country.
func (s *Service) UpdateCountry(ctx context.Context, countryCode string) (Result, error) {
	code := strings.ToUpper(countryCode)
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{CountryCode: code})
	if err != nil {
		return Result{}, fmt.Errorf("list %s channels: %w", code, err)
	}
	if len(channels) == 0 {
		return Result{}, nil
	}

	res := AssignRanks(countryEntries(channels), code, s.now().UTC())
	if err := s.apply(ctx, res, false); err != nil {
		return Result{}, fmt.Errorf("apply %s ranks: %w", code, err)
	}
	return res, nil
}

// UpdateGlobal ranks every active channel worldwide. Changes are recorded
// with an empty country code.
func (s *Service) UpdateGlobal(ctx context.Context) (Result, error) {
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("list channels: %w", err)
	}

	res := AssignRanks(globalEntries(channels), "", s.now().UTC())
	if err := s.apply(ctx, res, true); err != nil {
		return Result{}, fmt.Errorf("apply global ranks: %w", err)
	}
	return res, nil
}

func (s *Service) UpdateAll(ctx context.Context) (UpdateSummary, error) {
	codes, err := s.countries.CountryCodes(ctx)
	if err != nil {
		return UpdateSummary{}, fmt.Errorf("list countries: %w", err)
	}

	var summary UpdateSummary
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.UpdateCountry(ctx, code)
		if err != nil {
			s.logger.Warn().Err(err).Str("country", code).Msg("country ranking failed")
			continue
		}
		summary.Countries++
		summary.ChannelsUpdated += len(res.Updates)
		summary.Changes += len(res.Changes)
	}

	global, err := s.UpdateGlobal(ctx)
	if err != nil {
		return summary, err
	}
	summary.Changes += len(global.Changes)

	s.logger.Info().
		Int("countries", summary.Countries).
		Int("channels", summary.ChannelsUpdated).
		Int("changes", summary.Changes).
		Msg("rankings updated")
	return summary, nil
}

// Ranked numbers a list by its position, starting at offset+1.
func Ranked(channels []models.Channel, offset int) []models.RankedChannel {
	out := make([]models.RankedChannel, 0, len(channels))
	for i, c := range channels {
		out = append(out, models.RankedChannel{Channel: c, Rank: offset + i + 1})
	}
	return out
}

func (s *Service) CountryLeaderboard(ctx context.Context, countryCode string, limit int) ([]models.RankedChannel, error) {
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{CountryCode: countryCode, Limit: limit})
	if err != nil {
		return nil, err
	}
	return Ranked(channels, 0), nil
}

func (s *Service) GlobalLeaderboard(ctx context.Context, limit int) ([]models.RankedChannel, error) {
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	return Ranked(channels, 0), nil
}

func (s *Service) FastestGrowing(ctx context.Context, limit int) ([]models.Channel, error) {
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{OrderBy: store.OrderByDailyPercent, Limit: limit})
	return channels, err
}

func (s *Service) BiggestGainers(ctx context.Context, limit int) ([]models.Channel, error) {
	channels, _, err := s.channels.ListChannels(ctx, store.ChannelFilter{OrderBy: store.OrderByDailyGain, Limit: limit})
	return channels, err
}

func (s *Service) RankHistory(ctx context.Context, channelID string, days int) ([]models.RankHistoryEntry, error) {
	if days <= 0 {
		days = 30
	}
	return s.history.ChannelRankHistory(ctx, channelID, s.now().UTC().AddDate(0, 0, -days))
}

func (s *Service) RecentChanges(ctx context.Context, countryCode string, limit int) ([]models.RankHistoryEntry, error) {
	return s.history.RecentChanges(ctx, strings.ToUpper(countryCode), limit)
}
