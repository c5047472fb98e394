package youtube

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	ErrChannelNotFound = errors.New("youtube: channel not found")
	ErrQuotaExceeded   = errors.New("youtube: API quota exceeded")
	ErrInvalidAPIKey   = errors.New("youtube: invalid API key")
	ErrNotConfigured   = errors.New("youtube: no API key configured")
)

// classify maps a Data API failure onto a package sentinel. The bool is
// true when the call is worth retrying.
func classify(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err, true
	}

	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return ErrQuotaExceeded, false
		case "keyInvalid", "keyExpired":
			return ErrInvalidAPIKey, false
		case "channelNotFound", "playlistNotFound":
			return ErrChannelNotFound, false
		case "rateLimitExceeded", "userRateLimitExceeded":
			return err, true
		}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return err, true
	case apiErr.Code >= http.StatusInternalServerError:
		return err, true
	case apiErr.Code == http.StatusNotFound:
		return ErrChannelNotFound, false
	}
	return err, false
}
