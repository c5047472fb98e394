// Package growth computes subscriber growth windows, the viral
// classification and overtake predictions.
package growth

import (
	"math"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
)

const (
	Daily   = 24 * time.Hour
	Weekly  = 7 * Daily
	Monthly = 30 * Daily
)

type Window struct {
	Gain    int64   `json:"gain"`
	Percent float64 `json:"percent"`
}

// WindowGrowth compares the current subscriber count with a baseline taken
// one window earlier. Without a usable baseline both values are zero.
func WindowGrowth(current, baseline int64, hasBaseline bool) Window {
	if !hasBaseline {
		return Window{}
	}

	gain := current - baseline
	if baseline <= 0 {
		return Window{Gain: gain}
	}

	return Window{
		Gain:    gain,
		Percent: round(float64(gain)/float64(baseline)*100, 4),
	}
}

// Viral scores a channel from its daily and weekly growth percentages.
// The score is clamped to [0, 100].
func Viral(subscribers int64, dailyPercent, weeklyPercent float64) models.ViralPrediction {
	acceleration := weeklyPercent / 7

	var score float64
	if subscribers > 0 {
		score = dailyPercent * acceleration / (float64(subscribers) / 1e6)
	}
	score = math.Min(math.Max(score, 0), 100)

	label := Label(dailyPercent, weeklyPercent)
	return models.ViralPrediction{
		ViralScore:       round(score, 2),
		Label:            label,
		Color:            LabelColor(label),
		DailyGrowthRate:  dailyPercent,
		WeeklyGrowthRate: weeklyPercent,
		Acceleration:     round(acceleration, 4),
	}
}

func Label(dailyPercent, weeklyPercent float64) models.ViralLabel {
	switch {
	case dailyPercent > 1 || (dailyPercent > 0.5 && weeklyPercent > 5):
		return models.ViralExploding
	case dailyPercent > 0.3 || weeklyPercent > 3:
		return models.ViralRising
	case dailyPercent >= 0 && weeklyPercent >= 0:
		return models.ViralStable
	default:
		return models.ViralSlowing
	}
}

func LabelColor(label models.ViralLabel) string {
	switch label {
	case models.ViralExploding:
		return "red"
	case models.ViralRising:
		return "green"
	case models.ViralSlowing:
		return "yellow"
	default:
		return "blue"
	}
}

const reasonNotFaster = "Not growing faster than target"

// PredictOvertake estimates when channel passes target at current daily gains.
func PredictOvertake(channel, target models.Channel, now time.Time) models.OvertakePrediction {
	if channel.SubscriberCount >= target.SubscriberCount {
		return models.OvertakePrediction{AlreadyAhead: true}
	}

	closure := channel.DailySubscriberGain - target.DailySubscriberGain
	if closure <= 0 {
		return models.OvertakePrediction{WillOvertake: false, Reason: reasonNotFaster}
	}

	gap := target.SubscriberCount - channel.SubscriberCount
	days := float64(gap) / float64(closure)
	whole, frac := math.Modf(days)
	date := now.UTC().AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(Daily)))

	return models.OvertakePrediction{
		WillOvertake:    true,
		DaysToOvertake:  int64(math.RoundToEven(days)),
		PredictedDate:   date.Format(time.DateOnly),
		CurrentGap:      gap,
		DailyGapClosure: closure,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
