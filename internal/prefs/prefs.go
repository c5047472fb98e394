// Package prefs stores per-visitor preferences (favorite channels and the
// UI theme) and pushes every change to subscribers.
package prefs

import (
	"context"
	"slices"

	"github.com/grvbrk/toptube_server/internal/models"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), true
	}
	return "", false
}

// Favorite is the channel data kept with a favorite so lists render
// without a lookup.
type Favorite struct {
	ChannelID       string `json:"channel_id" validate:"required"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnail_url"`
	SubscriberCount int64  `json:"subscriber_count"`
	CountryCode     string `json:"country_code"`
}

func FavoriteFrom(c models.Channel) Favorite {
	return Favorite{
		ChannelID:       c.ChannelID,
		Title:           c.Title,
		ThumbnailURL:    c.ThumbnailURL,
		SubscriberCount: c.SubscriberCount,
		CountryCode:     c.CountryCode,
	}
}

type Preferences struct {
	Favorites []Favorite `json:"favorites"`
	Theme     Theme      `json:"theme"`
}

func Default() Preferences {
	return Preferences{Favorites: []Favorite{}, Theme: ThemeDark}
}

// normalize fills the zero values a stored document may lack.
func normalize(p Preferences) Preferences {
	if p.Favorites == nil {
		p.Favorites = []Favorite{}
	}
	if _, ok := ParseTheme(string(p.Theme)); !ok {
		p.Theme = ThemeDark
	}
	return p
}

// Store persists preferences by visitor id. Subscribe delivers every
// later Set for the visitor until cancel is called or ctx ends.
type Store interface {
	Get(ctx context.Context, visitor string) (Preferences, error)
	Set(ctx context.Context, visitor string, p Preferences) error
	Subscribe(ctx context.Context, visitor string) (<-chan Preferences, func(), error)
}

// Update applies fn to the visitor's current preferences and saves the
// result.
func Update(ctx context.Context, s Store, visitor string, fn func(Preferences) Preferences) (Preferences, error) {
	p, err := s.Get(ctx, visitor)
	if err != nil {
		return Preferences{}, err
	}
	p = normalize(fn(p))
	if err := s.Set(ctx, visitor, p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

func IsFavorite(favs []Favorite, channelID string) bool {
	return slices.ContainsFunc(favs, func(f Favorite) bool { return f.ChannelID == channelID })
}

// AddFavorite appends f unless a favorite with the same channel id exists.
func AddFavorite(favs []Favorite, f Favorite) []Favorite {
	if IsFavorite(favs, f.ChannelID) {
		return favs
	}
	return append(slices.Clone(favs), f)
}

func RemoveFavorite(favs []Favorite, channelID string) []Favorite {
	return slices.DeleteFunc(slices.Clone(favs), func(f Favorite) bool { return f.ChannelID == channelID })
}

// ToggleFavorite removes f when present and adds it otherwise. The bool
// reports whether f is a favorite afterwards.
func ToggleFavorite(favs []Favorite, f Favorite) ([]Favorite, bool) {
	if IsFavorite(favs, f.ChannelID) {
		return RemoveFavorite(favs, f.ChannelID), false
	}
	return AddFavorite(favs, f), true
}

func ToggleTheme(t Theme) Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}
