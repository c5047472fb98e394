package models

import (
	"strings"
	"time"
)

type ViralLabel string

const (
	ViralExploding ViralLabel = "Exploding"
	ViralRising    ViralLabel = "Rising"
	ViralStable    ViralLabel = "Stable"
	ViralSlowing   ViralLabel = "Slowing"
)

// LookupViralLabel maps a canonical label, or the older "Rising Fast"
// tag, to its canonical form. Matching ignores case and surrounding space.
func LookupViralLabel(s string) (ViralLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exploding":
		return ViralExploding, true
	case "rising", "rising fast":
		return ViralRising, true
	case "stable":
		return ViralStable, true
	case "slowing":
		return ViralSlowing, true
	default:
		return "", false
	}
}

// ParseViralLabel normalises stored labels; anything unknown maps to Stable.
func ParseViralLabel(s string) ViralLabel {
	if l, ok := LookupViralLabel(s); ok {
		return l
	}
	return ViralStable
}

type Channel struct {
	ChannelID             string     `json:"channel_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	CustomURL             string     `json:"custom_url"`
	CountryCode           string     `json:"country_code"`
	CountryName           string     `json:"country_name"`
	ThumbnailURL          string     `json:"thumbnail_url"`
	PublishedAt           string     `json:"published_at"`
	SubscriberCount       int64      `json:"subscriber_count"`
	ViewCount             int64      `json:"view_count"`
	VideoCount            int64      `json:"video_count"`
	CurrentRank           *int       `json:"current_rank,omitempty"`
	PreviousRank          *int       `json:"previous_rank,omitempty"`
	GlobalRank            *int       `json:"global_rank,omitempty"`
	PreviousGlobalRank    *int       `json:"previous_global_rank,omitempty"`
	DailySubscriberGain   int64      `json:"daily_subscriber_gain"`
	DailyGrowthPercent    float64    `json:"daily_growth_percent"`
	WeeklySubscriberGain  int64      `json:"weekly_subscriber_gain"`
	WeeklyGrowthPercent   float64    `json:"weekly_growth_percent"`
	MonthlySubscriberGain int64      `json:"monthly_subscriber_gain"`
	MonthlyGrowthPercent  float64    `json:"monthly_growth_percent"`
	ViralLabel            ViralLabel `json:"viral_label"`
	ViralScore            float64    `json:"viral_score"`
	IsActive              bool       `json:"is_active"`
	MetricsUpdatedAt      *time.Time `json:"metrics_updated_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// RankedChannel is a channel with its position in the list it was served in.
type RankedChannel struct {
	Channel
	Rank int `json:"rank"`
}

// ChannelSummary is the compact shape embedded in country and map payloads.
type ChannelSummary struct {
	ChannelID       string     `json:"channel_id"`
	Title           string     `json:"title"`
	ThumbnailURL    string     `json:"thumbnail_url"`
	SubscriberCount int64      `json:"subscriber_count"`
	CountryCode     string     `json:"country_code,omitempty"`
	ViralLabel      ViralLabel `json:"viral_label"`
}

func (c Channel) Summary() ChannelSummary {
	return ChannelSummary{
		ChannelID:       c.ChannelID,
		Title:           c.Title,
		ThumbnailURL:    c.ThumbnailURL,
		SubscriberCount: c.SubscriberCount,
		CountryCode:     c.CountryCode,
		ViralLabel:      c.ViralLabel,
	}
}

// YouTubeChannel is the slice of Data API output the service keeps.
type YouTubeChannel struct {
	ChannelID             string `json:"channel_id"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	CustomURL             string `json:"custom_url"`
	Country               string `json:"country"`
	PublishedAt           string `json:"published_at"`
	ThumbnailURL          string `json:"thumbnail_url"`
	SubscriberCount       int64  `json:"subscriber_count"`
	ViewCount             int64  `json:"view_count"`
	VideoCount            int64  `json:"video_count"`
	HiddenSubscriberCount bool   `json:"hidden_subscriber_count"`
}

type YouTubeVideo struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	PublishedAt  string `json:"published_at"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
}

type YouTubeSearchResult struct {
	ChannelID    string `json:"channel_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
}
