package leaderboard

type Direction string

const (
	Improved  Direction = "improved"
	Declined  Direction = "declined"
	Unchanged Direction = "unchanged"
)

type Change struct {
	Direction Direction `json:"direction"`
	Magnitude int       `json:"magnitude"`
}

// RankChange compares a channel's current rank against its previous one.
// A lower rank number is better, so moving from 8 to 5 is an improvement of 3.
func RankChange(current int, previous *int) Change {
	if previous == nil {
		return Change{Direction: Unchanged}
	}

	delta := *previous - current
	switch {
	case delta > 0:
		return Change{Direction: Improved, Magnitude: delta}
	case delta < 0:
		return Change{Direction: Declined, Magnitude: -delta}
	default:
		return Change{Direction: Unchanged}
	}
}
