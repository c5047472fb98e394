package models

import "time"

type Country struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	FlagEmoji string    `json:"flag_emoji"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at"`
}

type CountryWithTop struct {
	Country
	ChannelCount int             `json:"channel_count"`
	TopChannel   *ChannelSummary `json:"top_channel"`
}
