// Package leaderboard derives display views from a fetched channel list:
// filtering, sorting, rank deltas and compact number formatting.
package leaderboard

import (
	"cmp"
	"slices"
	"strings"

	"github.com/grvbrk/toptube_server/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortBySubscribers SortKey = "subscribers"
	SortByGrowth      SortKey = "growth"
	SortByGains       SortKey = "gains"
	SortByName        SortKey = "name"
)

// All is the sentinel that disables the country and status filters.
const All = "all"

type Params struct {
	Search  string  `json:"search"`
	Country string  `json:"country"`
	Status  string  `json:"status"`
	Sort    SortKey `json:"sort"`
}

func ValidateSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortBySubscribers, SortByGrowth, SortByGains, SortByName:
		return SortKey(s)
	default:
		return ""
	}
}

// FilterSort returns a new slice holding the channels that match every
// active filter in p, ordered by p.Sort. The input is never modified. An
// empty or unknown sort key keeps the filtered input order.
func FilterSort(list []models.Channel, p Params) []models.Channel {
	search := strings.ToLower(strings.TrimSpace(p.Search))
	status := NormalizeStatus(p.Status)

	out := make([]models.Channel, 0, len(list))
	for _, c := range list {
		if search != "" && !matchesSearch(c, search) {
			continue
		}
		if active(p.Country) && c.CountryCode != p.Country {
			continue
		}
		if active(status) && string(c.ViralLabel) != status {
			continue
		}
		out = append(out, c)
	}

	switch p.Sort {
	case SortBySubscribers:
		slices.SortStableFunc(out, func(a, b models.Channel) int {
			return cmp.Compare(b.SubscriberCount, a.SubscriberCount)
		})
	case SortByGrowth:
		slices.SortStableFunc(out, func(a, b models.Channel) int {
			return cmp.Compare(b.DailyGrowthPercent, a.DailyGrowthPercent)
		})
	case SortByGains:
		slices.SortStableFunc(out, func(a, b models.Channel) int {
			return cmp.Compare(b.DailySubscriberGain, a.DailySubscriberGain)
		})
	case SortByName:
		// collate.Collator is not safe for concurrent use. Default strength
		// orders lowercase before uppercase when the letters tie.
		col := collate.New(language.Und)
		slices.SortStableFunc(out, func(a, b models.Channel) int {
			return col.CompareString(a.Title, b.Title)
		})
	}

	return out
}

// NormalizeStatus maps known viral label spellings, including the legacy
// "Rising Fast", to the canonical label. Other values are returned as is
// and so match no channel.
func NormalizeStatus(status string) string {
	if !active(status) {
		return status
	}
	if l, ok := models.LookupViralLabel(status); ok {
		return string(l)
	}
	return status
}

func matchesSearch(c models.Channel, search string) bool {
	if c.Title != "" && strings.Contains(strings.ToLower(c.Title), search) {
		return true
	}
	return c.CountryName != "" && strings.Contains(strings.ToLower(c.CountryName), search)
}

func active(filter string) bool {
	return filter != "" && filter != All
}
