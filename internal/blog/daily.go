// Package blog writes the auto-generated posts: the daily rankings update
// and the per-country "Top YouTubers" pages.
package blog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grvbrk/toptube_server/internal/leaderboard"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

const (
	DailyCategory = "Daily Rankings"
	DailyAuthor   = "TopTube Editorial"

	topChannels  = 10
	topGainers   = 5
	topCountries = 5
)

var intros = []string{
	"Welcome to your daily YouTube rankings update for %s! Here's everything you need to know about the top YouTube channels right now.",
	"Good day, YouTube enthusiasts! It's %s and we've got fresh data on the most subscribed channels worldwide.",
	"The YouTube landscape is always changing. Here's your %s snapshot of the top creators and fastest risers.",
	"Another day, another update! Let's dive into the YouTube rankings for %s.",
}

var closings = []string{
	"Stay tuned for tomorrow's update to see how the rankings shift!",
	"Check back tomorrow for the latest changes in the YouTube rankings.",
	"The race for subscribers never stops. See you in the next update!",
	"That's all for today! Keep creating and keep watching.",
}

type Generator struct {
	channels  store.ChannelStore
	countries store.CountryStore
	posts     store.BlogStore
	logger    zerolog.Logger
	now       func() time.Time
}

func NewGenerator(channels store.ChannelStore, countries store.CountryStore, posts store.BlogStore, logger zerolog.Logger) *Generator {
	return &Generator{
		channels:  channels,
		countries: countries,
		posts:     posts,
		logger:    logger.With().Str("component", "blog").Logger(),
		now:       time.Now,
	}
}

func DailySlug(day time.Time) string {
	return "daily-youtube-rankings-" + day.Format(time.DateOnly)
}

func DailyTitle(day time.Time) string {
	return "YouTube Rankings Update - " + day.Format("January 02, 2006")
}

type CountryCount struct {
	Name  string
	Count int
}

// DailyInput is everything the daily post is written from.
type DailyInput struct {
	Day           time.Time
	Top           []models.Channel
	Gainers       []models.Channel
	TotalChannels int
	TotalSubs     int64
	CountryCounts []CountryCount
}

// Summarize derives the daily post input from the full list of active
// channels, which must be sorted by subscribers descending.
func Summarize(day time.Time, channels []models.Channel) DailyInput {
	in := DailyInput{Day: day, TotalChannels: len(channels)}
	in.Top = channels[:min(topChannels, len(channels))]

	gainers := slices.DeleteFunc(slices.Clone(channels), func(c models.Channel) bool {
		return c.DailySubscriberGain <= 0
	})
	slices.SortStableFunc(gainers, func(a, b models.Channel) int {
		return cmp.Compare(b.DailySubscriberGain, a.DailySubscriberGain)
	})
	in.Gainers = gainers[:min(topGainers, len(gainers))]

	counts := map[string]int{}
	for _, c := range channels {
		in.TotalSubs += c.SubscriberCount
		counts[cmp.Or(c.CountryName, c.CountryCode)]++
	}
	for name, n := range counts {
		in.CountryCounts = append(in.CountryCounts, CountryCount{Name: name, Count: n})
	}
	slices.SortFunc(in.CountryCounts, func(a, b CountryCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Name, b.Name))
	})
	in.CountryCounts = in.CountryCounts[:min(topCountries, len(in.CountryCounts))]
	return in
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// DailyContent renders the markdown body of the daily post. Intro and
// closing lines rotate by day of year.
func DailyContent(in DailyInput) string {
	date := in.Day.Format("January 02, 2006")
	pick := in.Day.YearDay()

	var b strings.Builder
	fmt.Fprintf(&b, intros[pick%len(intros)]+"\n\n", date)

	b.WriteString("## Global Top 10 Most Subscribed Channels\n\n")
	b.WriteString("The battle for YouTube supremacy continues! Here are today's top 10 most subscribed channels:\n\n")
	b.WriteString("| Rank | Channel | Country | Subscribers |\n|------|---------|---------|-------------|\n")
	var topSum int64
	for i, c := range in.Top {
		topSum += c.SubscriberCount
		fmt.Fprintf(&b, "| #%d | **%s** | %s | %s |\n", i+1, c.Title, orNA(c.CountryName), leaderboard.FormatNumber(c.SubscriberCount))
	}

	if len(in.Top) > 0 {
		b.WriteString("\n### Key Highlights\n\n")
		fmt.Fprintf(&b, "- **%s** continues to lead with %s subscribers\n", in.Top[0].Title, leaderboard.FormatNumber(in.Top[0].SubscriberCount))
		fmt.Fprintf(&b, "- The top %d channels combined have over %s subscribers\n", len(in.Top), leaderboard.FormatNumber(topSum))
		fmt.Fprintf(&b, "- We're tracking **%d** channels across the globe\n", in.TotalChannels)
	}

	if len(in.Gainers) > 0 {
		b.WriteString("\n## Fastest Growing Channels Today\n\n")
		b.WriteString("These channels are on fire! Here are the top gainers:\n\n")
		b.WriteString("| Channel | Country | Daily Gain | Total Subs |\n|---------|---------|------------|------------|\n")
		for _, c := range in.Gainers {
			fmt.Fprintf(&b, "| **%s** | %s | +%s | %s |\n", c.Title, orNA(c.CountryName), leaderboard.FormatNumber(c.DailySubscriberGain), leaderboard.FormatNumber(c.SubscriberCount))
		}
	}

	if len(in.CountryCounts) > 0 {
		b.WriteString("\n## Top Countries by Channel Count\n\n")
		b.WriteString("Which countries dominate YouTube? Here's the breakdown:\n\n")
		for _, cc := range in.CountryCounts {
			fmt.Fprintf(&b, "- **%s**: %d channels\n", cc.Name, cc.Count)
		}
	}

	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "As of %s, we're tracking **%d** YouTube channels with a combined **%s** subscribers. ", date, in.TotalChannels, leaderboard.FormatNumber(in.TotalSubs))
	b.WriteString("The YouTube creator economy continues to grow, with new milestones being reached every day.\n\n")
	b.WriteString(closings[pick%len(closings)] + "\n\n---\n\n")
	b.WriteString("*This post was automatically generated by TopTube's ranking system. Data is updated multiple times daily.*")

	return b.String()
}

// DailyPost builds the post for day without saving it.
func DailyPost(in DailyInput) *models.BlogPost {
	day := in.Day.UTC()
	date := day.Format("January 02, 2006")
	return &models.BlogPost{
		ID:              uuid.New(),
		Title:           DailyTitle(day),
		Slug:            DailySlug(day),
		Content:         DailyContent(in),
		Excerpt:         fmt.Sprintf("Daily update on the most subscribed YouTube channels. See who's leading the global rankings and which channels are growing fastest on %s.", date),
		Category:        DailyCategory,
		Author:          DailyAuthor,
		Status:          models.PostStatusPublished,
		Tags:            []string{"rankings", "daily update", "youtube stats", strings.ToLower(day.Format("January 2006"))},
		IsAutoGenerated: true,
		PublishedAt:     &day,
	}
}

// GenerateDaily writes today's rankings post, replacing an earlier
// version from the same day.
func (g *Generator) GenerateDaily(ctx context.Context) (*models.BlogPost, error) {
	channels, _, err := g.channels.ListChannels(ctx, store.ChannelFilter{})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	post := DailyPost(Summarize(g.now().UTC(), channels))
	if err := g.posts.UpsertPostBySlug(ctx, post); err != nil {
		return nil, fmt.Errorf("save daily post: %w", err)
	}

	g.logger.Info().Str("slug", post.Slug).Int("channels", len(channels)).Msg("daily post published")
	return post, nil
}
