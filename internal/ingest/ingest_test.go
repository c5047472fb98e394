package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannels struct {
	store.ChannelStore
	channels map[string]models.Channel
	updated  []string
}

func (f *fakeChannels) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	c, ok := f.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeChannels) CreateChannel(_ context.Context, c *models.Channel) error {
	f.channels[c.ChannelID] = *c
	return nil
}

func (f *fakeChannels) UpsertChannel(_ context.Context, c *models.Channel) (bool, error) {
	_, existed := f.channels[c.ChannelID]
	f.channels[c.ChannelID] = *c
	return !existed, nil
}

func (f *fakeChannels) UpdateChannelFromYouTube(_ context.Context, yt models.YouTubeChannel) error {
	c, ok := f.channels[yt.ChannelID]
	if !ok {
		return store.ErrNotFound
	}
	c.SubscriberCount = yt.SubscriberCount
	f.channels[yt.ChannelID] = c
	f.updated = append(f.updated, yt.ChannelID)
	return nil
}

func (f *fakeChannels) ActiveChannelIDs(context.Context) ([]string, error) {
	ids := []string{}
	for id := range f.channels {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeChannels) ListChannels(context.Context, store.ChannelFilter) ([]models.Channel, int, error) {
	out := []models.Channel{}
	for _, c := range f.channels {
		out = append(out, c)
	}
	return out, len(out), nil
}

type fakeCountries struct {
	store.CountryStore
	countries map[string]models.Country
}

func (f *fakeCountries) GetCountry(_ context.Context, code string) (*models.Country, error) {
	c, ok := f.countries[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

type fakeStats struct {
	store.StatsStore
	snaps []models.StatsSnapshot
}

func (f *fakeStats) InsertSnapshots(_ context.Context, s []models.StatsSnapshot) error {
	f.snaps = append(f.snaps, s...)
	return nil
}

type fakeYouTube struct {
	channels map[string]models.YouTubeChannel
	// failFrom makes the nth BatchStats call (1-based) and later ones fail.
	failFrom int
	calls    int
}

func (f *fakeYouTube) ChannelStats(_ context.Context, id string) (models.YouTubeChannel, error) {
	c, ok := f.channels[id]
	if !ok {
		return models.YouTubeChannel{}, youtube.ErrChannelNotFound
	}
	return c, nil
}

func (f *fakeYouTube) BatchStats(_ context.Context, ids []string) ([]models.YouTubeChannel, error) {
	f.calls++
	if f.failFrom > 0 && f.calls >= f.failFrom {
		return nil, youtube.ErrQuotaExceeded
	}
	out := []models.YouTubeChannel{}
	for _, id := range ids {
		if c, ok := f.channels[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fixture struct {
	ing      *Ingester
	channels *fakeChannels
	stats    *fakeStats
	yt       *fakeYouTube
}

func newFixture() fixture {
	channels := &fakeChannels{channels: map[string]models.Channel{
		"UCold": {ChannelID: "UCold", CountryCode: "US", SubscriberCount: 10},
	}}
	countries := &fakeCountries{countries: map[string]models.Country{
		"US": {Code: "US", Name: "United States"},
		"IN": {Code: "IN", Name: "India"},
	}}
	yt := &fakeYouTube{channels: map[string]models.YouTubeChannel{
		"UCold": {ChannelID: "UCold", Title: "Old", SubscriberCount: 20},
		"UCnew": {ChannelID: "UCnew", Title: "New", SubscriberCount: 500, ViewCount: 9},
	}}
	stats := &fakeStats{}

	ing := NewIngester(channels, countries, stats, yt, zerolog.Nop())
	ing.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return fixture{ing: ing, channels: channels, stats: stats, yt: yt}
}

func TestAddChannel(t *testing.T) {
	f := newFixture()

	ch, err := f.ing.AddChannel(context.Background(), "UCnew", "in")
	require.NoError(t, err)
	assert.Equal(t, "IN", ch.CountryCode)
	assert.Equal(t, "India", ch.CountryName)
	assert.Equal(t, models.ViralStable, ch.ViralLabel)
	require.Len(t, f.stats.snaps, 1)
	assert.Equal(t, int64(500), f.stats.snaps[0].SubscriberCount)

	_, err = f.ing.AddChannel(context.Background(), "UCold", "US")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = f.ing.AddChannel(context.Background(), "UCmissing", "ZZ")
	assert.ErrorIs(t, err, ErrUnknownCountry)

	_, err = f.ing.AddChannel(context.Background(), "UCmissing", "US")
	assert.ErrorIs(t, err, youtube.ErrChannelNotFound)
}

func TestRefreshChannel(t *testing.T) {
	f := newFixture()

	ch, err := f.ing.RefreshChannel(context.Background(), "UCold")
	require.NoError(t, err)
	assert.Equal(t, int64(20), ch.SubscriberCount)
	assert.Len(t, f.stats.snaps, 1)

	_, err = f.ing.RefreshChannel(context.Background(), "UCnew")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshAll(t *testing.T) {
	f := newFixture()
	n, err := f.ing.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"UCold"}, f.channels.updated)
}

func TestRecordSnapshots(t *testing.T) {
	f := newFixture()
	n, err := f.ing.RecordSnapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(10), f.stats.snaps[0].SubscriberCount, "uses stored counts")
}

func TestImport(t *testing.T) {
	f := newFixture()

	res, err := f.ing.Import(context.Background(), []ImportItem{
		{ChannelID: "UCnew", CountryCode: "us"},
		{ChannelID: "UCold", CountryCode: "US"},
		{ChannelID: "UCnew", CountryCode: "US"},
		{ChannelID: "UCghost", CountryCode: "US"},
		{ChannelID: "UCx", CountryCode: "ZZ"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.ElementsMatch(t, []ImportFailure{
		{ChannelID: "UCx", Reason: ErrUnknownCountry.Error()},
		{ChannelID: "UCghost", Reason: "not found on YouTube"},
	}, res.Failed)
	assert.Len(t, f.stats.snaps, 2)
}

func TestImport_PartialFetchKeepsError(t *testing.T) {
	f := newFixture()
	f.yt.failFrom = 2

	items := []ImportItem{{ChannelID: "UCnew", CountryCode: "US"}, {ChannelID: "UCghost", CountryCode: "US"}}
	for n := range importChunk {
		items = append(items, ImportItem{ChannelID: fmt.Sprintf("UCfill%02d", n), CountryCode: "IN"})
	}

	res, err := f.ing.Import(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, f.yt.calls)

	reasons := map[string]string{}
	for _, fail := range res.Failed {
		reasons[fail.ChannelID] = fail.Reason
	}
	assert.Len(t, reasons, importChunk+1)
	assert.Equal(t, "not found on YouTube", reasons["UCghost"])
	assert.Contains(t, reasons["UCfill48"], "not fetched")
	assert.Contains(t, reasons["UCfill49"], youtube.ErrQuotaExceeded.Error())
}

func TestImport_FirstFetchFails(t *testing.T) {
	f := newFixture()
	f.yt.failFrom = 1

	_, err := f.ing.Import(context.Background(), []ImportItem{{ChannelID: "UCnew", CountryCode: "US"}})
	assert.ErrorIs(t, err, youtube.ErrQuotaExceeded)
}
