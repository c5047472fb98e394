// Package seed holds the built-in country catalogue and loads it, with a
// few well known channels per country, into an empty database.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

//go:embed catalogue.json
var catalogueJSON []byte

type Entry struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	FlagEmoji string   `json:"flag_emoji"`
	Region    string   `json:"region"`
	Channels  []string `json:"channels"`
}

func (e Entry) Country() models.Country {
	return models.Country{Code: e.Code, Name: e.Name, FlagEmoji: e.FlagEmoji, Region: e.Region}
}

var loadCatalogue = sync.OnceValues(func() ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(catalogueJSON, &entries); err != nil {
		return nil, fmt.Errorf("decode country catalogue: %w", err)
	}
	return entries, nil
})

// Catalogue returns every known country in catalogue order.
func Catalogue() ([]Entry, error) {
	entries, err := loadCatalogue()
	if err != nil {
		return nil, err
	}
	return slices.Clone(entries), nil
}

// Lookup finds a catalogue country by code, case-insensitively.
func Lookup(code string) (Entry, bool) {
	entries, err := Catalogue()
	if err != nil {
		return Entry{}, false
	}
	code = strings.ToUpper(code)
	for _, e := range entries {
		if e.Code == code {
			return e, true
		}
	}
	return Entry{}, false
}

type ChannelAdder interface {
	AddChannel(ctx context.Context, channelID, countryCode string) (*models.Channel, error)
}

type Result struct {
	Message        string `json:"message"`
	AlreadySeeded  bool   `json:"already_seeded"`
	Countries      int    `json:"countries"`
	CountriesAdded int    `json:"countries_added"`
	ChannelsAdded  int    `json:"channels_added"`
}

type Seeder struct {
	countries store.CountryStore
	channels  ChannelAdder
	logger    zerolog.Logger
}

func NewSeeder(countries store.CountryStore, channels ChannelAdder, logger zerolog.Logger) *Seeder {
	return &Seeder{
		countries: countries,
		channels:  channels,
		logger:    logger.With().Str("component", "seed").Logger(),
	}
}

// Run loads the catalogue unless any country already exists. Channels
// that fail to load are logged and skipped.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	existing, err := s.countries.CountCountries(ctx)
	if err != nil {
		return Result{}, err
	}
	if existing > 0 {
		return Result{Message: "Database already seeded", AlreadySeeded: true, Countries: existing}, nil
	}

	entries, err := Catalogue()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range entries {
		c := e.Country()
		if err := s.countries.CreateCountry(ctx, &c); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return res, fmt.Errorf("create country %s: %w", e.Code, err)
		}
		res.CountriesAdded++
	}

	for _, e := range entries {
		for _, id := range e.Channels {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			_, err := s.channels.AddChannel(ctx, id, e.Code)
			switch {
			case err == nil:
				res.ChannelsAdded++
			case errors.Is(err, store.ErrAlreadyExists):
			default:
				s.logger.Warn().Err(err).Str("channel_id", id).Str("country", e.Code).Msg("seed channel skipped")
			}
		}
	}

	res.Countries = res.CountriesAdded
	res.Message = "Database seeded successfully"
	s.logger.Info().Int("countries", res.CountriesAdded).Int("channels", res.ChannelsAdded).Msg("database seeded")
	return res, nil
}
