package leaderboard

import (
	"fmt"
	"strconv"
)

// FormatNumber renders a count in the compact form used across the site:
// 3.20B, 2.50M, 1.5K, or the plain integer below one thousand.
func FormatNumber(n int64) string {
	f := float64(n)
	switch {
	case n <= 0:
		if n == 0 {
			return "0"
		}
		return strconv.FormatInt(n, 10)
	case f >= 1e9:
		return fmt.Sprintf("%.2fB", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("%.2fM", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%.1fK", f/1e3)
	default:
		return strconv.FormatInt(n, 10)
	}
}
