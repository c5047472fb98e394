package models

import "time"

type StatsSnapshot struct {
	ChannelID       string    `json:"channel_id" ch:"channel_id"`
	SubscriberCount int64     `json:"subscriber_count" ch:"subscriber_count"`
	ViewCount       int64     `json:"view_count" ch:"view_count"`
	VideoCount      int64     `json:"video_count" ch:"video_count"`
	Timestamp       time.Time `json:"timestamp" ch:"recorded_at"`
}

type RankHistoryEntry struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	OldRank     int       `json:"old_rank"`
	NewRank     int       `json:"new_rank"`
	Change      int       `json:"change"`
	Timestamp   time.Time `json:"timestamp"`
}

type SchedulerStatus struct {
	LastChannelRefresh *time.Time `json:"last_channel_refresh"`
	LastRankingUpdate  *time.Time `json:"last_ranking_update"`
	LastGrowthUpdate   *time.Time `json:"last_growth_update"`
	LastStatsSnapshot  *time.Time `json:"last_stats_snapshot"`
	LastBlogPost       *time.Time `json:"last_blog_post"`
	ChannelsRefreshed  int        `json:"channels_refreshed"`
}

type AdminStats struct {
	TotalCountries    int        `json:"total_countries"`
	TotalChannels     int        `json:"total_channels"`
	TotalStatsRecords int        `json:"total_stats_records"`
	LastUpdate        *time.Time `json:"last_update"`
}

type MapEntry struct {
	CountryCode string         `json:"country_code"`
	CountryName string         `json:"country_name"`
	FlagEmoji   string         `json:"flag_emoji"`
	TopChannel  ChannelSummary `json:"top_channel"`
}

type GrowthMetrics struct {
	DailyGain      int64      `json:"daily_subscriber_gain"`
	DailyPercent   float64    `json:"daily_growth_percent"`
	WeeklyGain     int64      `json:"weekly_subscriber_gain"`
	WeeklyPercent  float64    `json:"weekly_growth_percent"`
	MonthlyGain    int64      `json:"monthly_subscriber_gain"`
	MonthlyPercent float64    `json:"monthly_growth_percent"`
	ViralScore     float64    `json:"viral_score"`
	ViralLabel     ViralLabel `json:"viral_label"`
	UpdatedAt      time.Time  `json:"metrics_updated_at"`
}

type ViralPrediction struct {
	ViralScore       float64    `json:"viral_score"`
	Label            ViralLabel `json:"label"`
	Color            string     `json:"color"`
	DailyGrowthRate  float64    `json:"daily_growth_rate"`
	WeeklyGrowthRate float64    `json:"weekly_growth_rate"`
	Acceleration     float64    `json:"acceleration"`
}

type OvertakePrediction struct {
	AlreadyAhead    bool   `json:"already_ahead,omitempty"`
	WillOvertake    bool   `json:"will_overtake"`
	Reason          string `json:"reason,omitempty"`
	DaysToOvertake  int64  `json:"days_to_overtake,omitempty"`
	PredictedDate   string `json:"predicted_date,omitempty"`
	CurrentGap      int64  `json:"current_gap,omitempty"`
	DailyGapClosure int64  `json:"daily_gap_closure,omitempty"`
}
