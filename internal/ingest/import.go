package ingest

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
)

// importChunk matches the Data API's ids-per-request limit.
const importChunk = 50

type ImportItem struct {
	ChannelID   string `json:"channel_id" validate:"required"`
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
}

type ImportFailure struct {
	ChannelID string `json:"channel_id"`
	Reason    string `json:"reason"`
}

type ImportResult struct {
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Failed   []ImportFailure `json:"failed"`
}

// Import upserts a list of channels in bulk. Items with an unknown country
// or that YouTube does not return are reported in Failed. When a fetch
// fails partway, the ids it never reached carry that error as the reason.
func (i *Ingester) Import(ctx context.Context, items []ImportItem) (ImportResult, error) {
	res := ImportResult{Failed: []ImportFailure{}}

	countries := map[string]*models.Country{}
	wanted := map[string]*models.Country{}
	ids := make([]string, 0, len(items))

	for _, item := range items {
		code := strings.ToUpper(item.CountryCode)
		country, seen := countries[code]
		if !seen {
			c, err := i.countries.GetCountry(ctx, code)
			switch {
			case errors.Is(err, store.ErrNotFound):
				c = nil
			case err != nil:
				return res, err
			}
			countries[code] = c
			country = c
		}
		if country == nil {
			res.Failed = append(res.Failed, ImportFailure{ChannelID: item.ChannelID, Reason: ErrUnknownCountry.Error()})
			continue
		}
		if _, dup := wanted[item.ChannelID]; dup {
			continue
		}
		wanted[item.ChannelID] = country
		ids = append(ids, item.ChannelID)
	}

	if len(ids) == 0 {
		return res, nil
	}

	var fetched []models.YouTubeChannel
	var fetchErr error
	unfetched := map[string]bool{}
	for chunk := range slices.Chunk(ids, importChunk) {
		if fetchErr == nil {
			got, err := i.yt.BatchStats(ctx, chunk)
			fetched = append(fetched, got...)
			fetchErr = err
		}
		if fetchErr != nil {
			for _, id := range chunk {
				unfetched[id] = true
			}
		}
	}
	if fetchErr != nil {
		if len(fetched) == 0 {
			return res, fetchErr
		}
		i.logger.Warn().Err(fetchErr).Int("unfetched", len(unfetched)).Msg("import fetch stopped early")
	}

	now := i.now().UTC()
	snaps := make([]models.StatsSnapshot, 0, len(fetched))
	for _, yt := range fetched {
		country, ok := wanted[yt.ChannelID]
		if !ok {
			continue
		}
		delete(wanted, yt.ChannelID)

		inserted, err := i.channels.UpsertChannel(ctx, channelFromYouTube(yt, country))
		if err != nil {
			i.logger.Warn().Err(err).Str("channel_id", yt.ChannelID).Msg("import upsert failed")
			res.Failed = append(res.Failed, ImportFailure{ChannelID: yt.ChannelID, Reason: "could not be saved"})
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
		snaps = append(snaps, snapshotOf(yt.ChannelID, yt.SubscriberCount, yt.ViewCount, yt.VideoCount, now))
	}

	for _, id := range ids {
		if _, missing := wanted[id]; !missing {
			continue
		}
		reason := "not found on YouTube"
		if unfetched[id] {
			reason = "not fetched: " + fetchErr.Error()
		}
		res.Failed = append(res.Failed, ImportFailure{ChannelID: id, Reason: reason})
	}

	if err := i.stats.InsertSnapshots(ctx, snaps); err != nil {
		return res, err
	}

	i.logger.Info().Int("inserted", res.Inserted).Int("updated", res.Updated).Int("failed", len(res.Failed)).Msg("channels imported")
	return res, nil
}
