package blog

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/grvbrk/toptube_server/internal/leaderboard"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	CountryCategory = "Country Rankings"
	countryTop      = 10
	wordsPerMinute  = 200
)

type CountryListing struct {
	CountryCode  string `json:"country_code"`
	CountryName  string `json:"country_name"`
	FlagEmoji    string `json:"flag_emoji"`
	Region       string `json:"region"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	URL          string `json:"url"`
	ChannelCount int    `json:"channel_count"`
}

type CountryPost struct {
	Title           string                  `json:"title"`
	Slug            string                  `json:"slug"`
	CountryCode     string                  `json:"country_code"`
	CountryName     string                  `json:"country_name"`
	FlagEmoji       string                  `json:"flag_emoji"`
	Region          string                  `json:"region"`
	Excerpt         string                  `json:"excerpt"`
	Content         string                  `json:"content"`
	Category        string                  `json:"category"`
	Channels        []models.ChannelSummary `json:"channels"`
	TotalChannels   int                     `json:"total_channels"`
	ReadTime        string                  `json:"read_time"`
	GeneratedAt     time.Time               `json:"generated_at"`
	IsAutoGenerated bool                    `json:"is_auto_generated"`
}

func CountryTitle(name string, day time.Time) string {
	return fmt.Sprintf("Top YouTubers in %s (%s)", name, day.Format("January 2006"))
}

// Slugify lower-cases s, drops accents and joins the remaining
// alphanumeric runs with dashes.
func Slugify(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}
	fields := strings.FieldsFunc(strings.ToLower(plain), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}

func CountrySlug(name string) string {
	return "top-youtubers-in-" + Slugify(name)
}

func CountryURL(code string) string {
	return "/blog/country/" + strings.ToUpper(code)
}

// ReadTime estimates reading time at 200 words a minute, at least one.
func ReadTime(content string) string {
	minutes := max(1, (len(strings.Fields(content))+wordsPerMinute-1)/wordsPerMinute)
	return fmt.Sprintf("%d min read", minutes)
}

// CountryPosts lists a country page for every tracked country.
func (g *Generator) CountryPosts(ctx context.Context) ([]CountryListing, error) {
	countries, err := g.countries.ListCountries(ctx)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	out := make([]CountryListing, 0, len(countries))
	for _, c := range countries {
		out = append(out, CountryListing{
			CountryCode:  c.Code,
			CountryName:  c.Name,
			FlagEmoji:    c.FlagEmoji,
			Region:       c.Region,
			Title:        CountryTitle(c.Name, now),
			Slug:         CountrySlug(c.Name),
			URL:          CountryURL(c.Code),
			ChannelCount: c.ChannelCount,
		})
	}
	return out, nil
}

// CountryPost builds the "Top YouTubers" page for one country. The code is
// case-insensitive; unknown codes return store.ErrNotFound.
func (g *Generator) CountryPost(ctx context.Context, code string) (*CountryPost, error) {
	country, err := g.countries.GetCountry(ctx, strings.ToUpper(code))
	if err != nil {
		return nil, err
	}

	channels, total, err := g.channels.ListChannels(ctx, store.ChannelFilter{CountryCode: country.Code, Limit: countryTop})
	if err != nil {
		return nil, fmt.Errorf("list %s channels: %w", country.Code, err)
	}

	now := g.now().UTC()
	content := CountryContent(*country, channels, total, now)

	summaries := make([]models.ChannelSummary, 0, len(channels))
	for _, c := range channels {
		summaries = append(summaries, c.Summary())
	}

	return &CountryPost{
		Title:           CountryTitle(country.Name, now),
		Slug:            CountrySlug(country.Name),
		CountryCode:     country.Code,
		CountryName:     country.Name,
		FlagEmoji:       country.FlagEmoji,
		Region:          country.Region,
		Excerpt:         fmt.Sprintf("Discover the most subscribed YouTube channels in %s, ranked by subscribers and updated daily.", country.Name),
		Content:         content,
		Category:        CountryCategory,
		Channels:        summaries,
		TotalChannels:   total,
		ReadTime:        ReadTime(content),
		GeneratedAt:     now,
		IsAutoGenerated: true,
	}, nil
}

func CountryContent(country models.Country, channels []models.Channel, total int, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## The Biggest YouTube Channels in %s %s\n\n", country.Name, country.FlagEmoji)
	fmt.Fprintf(&b, "We track **%d** YouTube channels from %s. Here are the most subscribed creators as of %s. ",
		total, country.Name, now.Format("January 02, 2006"))
	fmt.Fprintf(&b, "See the full live leaderboard on the [%s country page](/country/%s).\n\n", country.Name, country.Code)

	if len(channels) == 0 {
		fmt.Fprintf(&b, "No channels from %s are being tracked yet. Check back soon!\n\n", country.Name)
	}

	for i, c := range channels {
		fmt.Fprintf(&b, "### #%d %s\n\n", i+1, c.Title)
		fmt.Fprintf(&b, "- **Subscribers:** %s\n", leaderboard.FormatNumber(c.SubscriberCount))
		fmt.Fprintf(&b, "- **Total views:** %s\n", leaderboard.FormatNumber(c.ViewCount))
		fmt.Fprintf(&b, "- **Videos:** %d\n", c.VideoCount)
		if c.DailySubscriberGain > 0 {
			fmt.Fprintf(&b, "- **Daily gain:** +%s\n", leaderboard.FormatNumber(c.DailySubscriberGain))
		}
		fmt.Fprintf(&b, "- **Trend:** %s\n\n", c.ViralLabel)
		fmt.Fprintf(&b, "[View %s's full stats](/channel/%s)\n\n", c.Title, c.ChannelID)
	}

	b.WriteString("## Conclusion\n\n")
	fmt.Fprintf(&b, "The YouTube scene in %s keeps evolving. Rankings are refreshed several times a day, ", country.Name)
	fmt.Fprintf(&b, "so follow the [%s leaderboard](/country/%s) to catch every change.", country.Name, country.Code)

	return b.String()
}
