package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresCountryStore struct {
	db *sql.DB
}

func NewPostgresCountryStore(db *sql.DB) *PostgresCountryStore {
	if db == nil {
		panic("db cannot be nil for PostgresCountryStore")
	}
	return &PostgresCountryStore{db: db}
}

type CountryStore interface {
	ListCountries(ctx context.Context) ([]models.CountryWithTop, error)
	GetCountry(ctx context.Context, code string) (*models.Country, error)
	CreateCountry(ctx context.Context, country *models.Country) error
	CountCountries(ctx context.Context) (int, error)
	CountryCodes(ctx context.Context) ([]string, error)
	Neighbors(ctx context.Context, region, excludeCode string, limit int) ([]models.CountryWithTop, error)
}

// countryWithTopQuery joins each country to its channel count and its most
// subscribed active channel.
const countryWithTopQuery = `
	SELECT
		co.code,
		co.name,
		co.flag_emoji,
		co.region,
		co.created_at,
		COALESCE(cnt.channel_count, 0),
		top.channel_id,
		top.title,
		top.thumbnail_url,
		top.subscriber_count,
		top.viral_label
	FROM countries co
	LEFT JOIN (
		SELECT country_code, COUNT(*) AS channel_count
		FROM channels
		WHERE is_active = true
		GROUP BY country_code
	) cnt ON cnt.country_code = co.code
	LEFT JOIN LATERAL (
		SELECT channel_id, title, thumbnail_url, subscriber_count, viral_label
		FROM channels
		WHERE country_code = co.code AND is_active = true
		ORDER BY subscriber_count DESC
		LIMIT 1
	) top ON true
`

func (pg *PostgresCountryStore) queryCountries(ctx context.Context, query string, args ...any) ([]models.CountryWithTop, error) {
	rows, err := pg.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get countries: %w", err)
	}
	defer rows.Close()

	countries := []models.CountryWithTop{}
	for rows.Next() {
		var c models.CountryWithTop
		var topID, topTitle, topThumb, topLabel sql.NullString
		var topSubs sql.NullInt64

		if err := rows.Scan(
			&c.Code,
			&c.Name,
			&c.FlagEmoji,
			&c.Region,
			&c.CreatedAt,
			&c.ChannelCount,
			&topID,
			&topTitle,
			&topThumb,
			&topSubs,
			&topLabel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan country row: %w", err)
		}

		if topID.Valid {
			c.TopChannel = &models.ChannelSummary{
				ChannelID:       topID.String,
				Title:           topTitle.String,
				ThumbnailURL:    topThumb.String,
				SubscriberCount: topSubs.Int64,
				CountryCode:     c.Code,
				ViralLabel:      models.ParseViralLabel(topLabel.String),
			}
		}
		countries = append(countries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over country rows: %w", err)
	}

	return countries, nil
}

func (pg *PostgresCountryStore) ListCountries(ctx context.Context) ([]models.CountryWithTop, error) {
	return pg.queryCountries(ctx, countryWithTopQuery+` ORDER BY co.name`)
}

func (pg *PostgresCountryStore) Neighbors(ctx context.Context, region, excludeCode string, limit int) ([]models.CountryWithTop, error) {
	query := countryWithTopQuery + `
		WHERE co.region = $1 AND co.code <> $2
		ORDER BY COALESCE(top.subscriber_count, 0) DESC
		LIMIT $3
	`
	return pg.queryCountries(ctx, query, region, strings.ToUpper(excludeCode), limit)
}

func (pg *PostgresCountryStore) GetCountry(ctx context.Context, code string) (*models.Country, error) {
	query := `
		SELECT code, name, flag_emoji, region, created_at
		FROM countries
		WHERE code = $1
	`

	var c models.Country
	err := pg.db.QueryRowContext(ctx, query, strings.ToUpper(code)).Scan(
		&c.Code,
		&c.Name,
		&c.FlagEmoji,
		&c.Region,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country: %w", err)
	}
	return &c, nil
}

func (pg *PostgresCountryStore) CreateCountry(ctx context.Context, country *models.Country) error {
	query := `
		INSERT INTO countries (code, name, flag_emoji, region)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	country.Code = strings.ToUpper(country.Code)
	err := pg.db.QueryRowContext(ctx, query,
		country.Code,
		country.Name,
		country.FlagEmoji,
		country.Region,
	).Scan(&country.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert country: %w", err)
	}
	return nil
}

func (pg *PostgresCountryStore) CountCountries(ctx context.Context) (int, error) {
	var n int
	if err := pg.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM countries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count countries: %w", err)
	}
	return n, nil
}

func (pg *PostgresCountryStore) CountryCodes(ctx context.Context) ([]string, error) {
	rows, err := pg.db.QueryContext(ctx, `SELECT code FROM countries ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list country codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan country code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
