// Package youtube wraps the YouTube Data API v3 calls the service needs:
// channel statistics, top videos and channel search.
package youtube

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	batchSize      = 50
	cacheTTL       = 5 * time.Minute
	descriptionMax = 200

	kindChannelStats = "channel_stats"
	kindTopVideos    = "top_videos"
)

// CallRecorder is told about every finished API call.
type CallRecorder interface {
	YouTubeCall(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) YouTubeCall(string, error) {}

type Client struct {
	svc        *youtube.Service
	limiter    *rate.Limiter
	cache      *ttlCache
	logger     zerolog.Logger
	recorder   CallRecorder
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// NewClient builds a client authenticated with an API key. An empty key
// yields a client whose calls fail with ErrNotConfigured.
func NewClient(ctx context.Context, apiKey string, logger zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		logger.Warn().Msg("youtube: YOUTUBE_API_KEY not set, API calls disabled")
		return New(nil, logger), nil
	}

	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return New(svc, logger), nil
}

// New wraps an existing service.
func New(svc *youtube.Service, logger zerolog.Logger) *Client {
	return &Client{
		svc:      svc,
		limiter:  rate.NewLimiter(rate.Limit(10), 5),
		cache:    newTTLCache(cacheTTL),
		logger:   logger.With().Str("component", "youtube").Logger(),
		recorder: nopRecorder{},
		maxTries: 3,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

func (c *Client) SetRecorder(r CallRecorder) {
	if r != nil {
		c.recorder = r
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.svc != nil
}

// call runs fn under the rate limiter and retries transient failures.
// Quota, key and not-found failures stop immediately.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !c.Enabled() {
		return zero, ErrNotConfigured
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		mapped, retry := classify(err)
		if !retry {
			return zero, backoff.Permanent(mapped)
		}
		c.logger.Debug().Err(err).Str("op", op).Msg("youtube call failed, retrying")
		return zero, mapped
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))

	c.recorder.YouTubeCall(op, err)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("youtube call failed")
	}
	return res, err
}

func channelFromAPI(item *youtube.Channel) models.YouTubeChannel {
	ch := models.YouTubeChannel{ChannelID: item.Id}
	if s := item.Snippet; s != nil {
		ch.Title = s.Title
		ch.Description = s.Description
		ch.CustomURL = s.CustomUrl
		ch.Country = s.Country
		ch.PublishedAt = s.PublishedAt
		ch.ThumbnailURL = thumbnailURL(s.Thumbnails, "high")
	}
	if st := item.Statistics; st != nil {
		ch.SubscriberCount = int64(st.SubscriberCount)
		ch.ViewCount = int64(st.ViewCount)
		ch.VideoCount = int64(st.VideoCount)
		ch.HiddenSubscriberCount = st.HiddenSubscriberCount
	}
	return ch
}

func thumbnailURL(t *youtube.ThumbnailDetails, size string) string {
	if t == nil {
		return ""
	}
	var th *youtube.Thumbnail
	switch size {
	case "high":
		th = cmp.Or(t.High, t.Medium, t.Default)
	case "medium":
		th = cmp.Or(t.Medium, t.Default)
	default:
		th = t.Default
	}
	if th == nil {
		return ""
	}
	return th.Url
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ChannelStats fetches one channel's snippet and statistics.
func (c *Client) ChannelStats(ctx context.Context, channelID string) (models.YouTubeChannel, error) {
	key := cacheKey(kindChannelStats, channelID)
	if v, ok := c.cache.get(key); ok {
		return v.(models.YouTubeChannel), nil
	}

	resp, err := call(ctx, c, "channels.list", func(ctx context.Context) (*youtube.ChannelListResponse, error) {
		return c.svc.Channels.List([]string{"snippet", "statistics", "contentDetails", "brandingSettings"}).
			Id(channelID).Context(ctx).Do()
	})
	if err != nil {
		return models.YouTubeChannel{}, err
	}
	if len(resp.Items) == 0 {
		return models.YouTubeChannel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	ch := channelFromAPI(resp.Items[0])
	c.cache.set(key, ch)
	return ch, nil
}

// BatchStats fetches statistics for many channels, 50 ids per request.
// Cached channels are served without a request. Unknown ids are absent
// from the result.
func (c *Client) BatchStats(ctx context.Context, channelIDs []string) ([]models.YouTubeChannel, error) {
	out := make([]models.YouTubeChannel, 0, len(channelIDs))

	for chunk := range slices.Chunk(channelIDs, batchSize) {
		var uncached []string
		for _, id := range chunk {
			if v, ok := c.cache.get(cacheKey(kindChannelStats, id)); ok {
				out = append(out, v.(models.YouTubeChannel))
				continue
			}
			uncached = append(uncached, id)
		}
		if len(uncached) == 0 {
			continue
		}

		resp, err := call(ctx, c, "channels.list", func(ctx context.Context) (*youtube.ChannelListResponse, error) {
			return c.svc.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
				Id(uncached...).MaxResults(batchSize).Context(ctx).Do()
		})
		if err != nil {
			return out, fmt.Errorf("batch stats: %w", err)
		}

		for _, item := range resp.Items {
			ch := channelFromAPI(item)
			c.cache.set(cacheKey(kindChannelStats, ch.ChannelID), ch)
			out = append(out, ch)
		}
	}

	return out, nil
}

// TopVideos returns the channel's most viewed videos among its latest 50
// uploads.
func (c *Client) TopVideos(ctx context.Context, channelID string, limit int) ([]models.YouTubeVideo, error) {
	if limit <= 0 {
		limit = 5
	}

	key := cacheKey(kindTopVideos, channelID)
	if v, ok := c.cache.get(key); ok {
		return headVideos(v.([]models.YouTubeVideo), limit), nil
	}

	chResp, err := call(ctx, c, "channels.list", func(ctx context.Context) (*youtube.ChannelListResponse, error) {
		return c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	if len(chResp.Items) == 0 || chResp.Items[0].ContentDetails == nil || chResp.Items[0].ContentDetails.RelatedPlaylists == nil {
		return []models.YouTubeVideo{}, nil
	}
	uploads := chResp.Items[0].ContentDetails.RelatedPlaylists.Uploads

	plResp, err := call(ctx, c, "playlistItems.list", func(ctx context.Context) (*youtube.PlaylistItemListResponse, error) {
		return c.svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(uploads).MaxResults(batchSize).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(plResp.Items))
	for _, item := range plResp.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			ids = append(ids, item.ContentDetails.VideoId)
		}
	}
	if len(ids) == 0 {
		return []models.YouTubeVideo{}, nil
	}

	vResp, err := call(ctx, c, "videos.list", func(ctx context.Context) (*youtube.VideoListResponse, error) {
		return c.svc.Videos.List([]string{"snippet", "statistics"}).Id(ids...).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	videos := make([]models.YouTubeVideo, 0, len(vResp.Items))
	for _, item := range vResp.Items {
		v := models.YouTubeVideo{VideoID: item.Id}
		if s := item.Snippet; s != nil {
			v.Title = s.Title
			v.Description = truncate(s.Description, descriptionMax)
			v.ThumbnailURL = thumbnailURL(s.Thumbnails, "medium")
			v.PublishedAt = s.PublishedAt
		}
		if st := item.Statistics; st != nil {
			v.ViewCount = int64(st.ViewCount)
			v.LikeCount = int64(st.LikeCount)
			v.CommentCount = int64(st.CommentCount)
		}
		videos = append(videos, v)
	}
	sortByViews(videos)

	c.cache.set(key, videos)
	return headVideos(videos, limit), nil
}

func sortByViews(videos []models.YouTubeVideo) {
	slices.SortStableFunc(videos, func(a, b models.YouTubeVideo) int {
		return cmp.Compare(b.ViewCount, a.ViewCount)
	})
}

func headVideos(videos []models.YouTubeVideo, n int) []models.YouTubeVideo {
	if n >= len(videos) {
		return slices.Clone(videos)
	}
	return slices.Clone(videos[:n])
}

// SearchChannels runs a channel search, optionally restricted to a region.
func (c *Client) SearchChannels(ctx context.Context, query, regionCode string, maxResults int64) ([]models.YouTubeSearchResult, error) {
	if maxResults <= 0 || maxResults > batchSize {
		maxResults = 10
	}

	resp, err := call(ctx, c, "search.list", func(ctx context.Context) (*youtube.SearchListResponse, error) {
		req := c.svc.Search.List([]string{"snippet"}).Q(query).Type("channel").MaxResults(maxResults)
		if regionCode != "" {
			req = req.RegionCode(regionCode)
		}
		return req.Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	results := make([]models.YouTubeSearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		r := models.YouTubeSearchResult{}
		if item.Id != nil {
			r.ChannelID = item.Id.ChannelId
		}
		if s := item.Snippet; s != nil {
			if r.ChannelID == "" {
				r.ChannelID = s.ChannelId
			}
			r.Title = s.Title
			r.Description = s.Description
			r.ThumbnailURL = thumbnailURL(s.Thumbnails, "high")
		}
		results = append(results, r)
	}
	return results, nil
}
