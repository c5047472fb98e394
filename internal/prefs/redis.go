package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix     = "toptube:prefs:"
	channelPrefix = "prefs:"
	prefsTTL      = 180 * 24 * time.Hour
)

// RedisStore keeps each visitor's preferences as a JSON value and
// publishes changes on the "prefs:<visitor>" channel.
type RedisStore struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewRedisStore(rdb *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger.With().Str("component", "prefs").Logger()}
}

func (s *RedisStore) Get(ctx context.Context, visitor string) (Preferences, error) {
	b, err := s.rdb.Get(ctx, keyPrefix+visitor).Bytes()
	if errors.Is(err, redis.Nil) {
		return Default(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal(b, &p); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable preferences")
		return Default(), nil
	}
	return normalize(p), nil
}

func (s *RedisStore) Set(ctx context.Context, visitor string, p Preferences) error {
	b, err := json.Marshal(normalize(p))
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+visitor, b, prefsTTL)
		pipe.Publish(ctx, channelPrefix+visitor, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, visitor string) (<-chan Preferences, func(), error) {
	ps := s.rdb.Subscribe(ctx, channelPrefix+visitor)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to preferences: %w", err)
	}

	out := make(chan Preferences, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var p Preferences
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					s.logger.Warn().Err(err).Msg("dropping unreadable preferences event")
					continue
				}
				select {
				case out <- normalize(p):
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
