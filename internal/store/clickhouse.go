package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

type ClickhouseConfig struct {
	URL           string
	Database      string
	Username      string
	Password      string
	MigrationsDir string
}

func ConnectClickhouse(cfg ClickhouseConfig, logger zerolog.Logger) (driver.Conn, error) {
	ctx := context.Background()
	var conn driver.Conn
	var err error

	for i := 1; i <= 10; i++ {
		conn, err = clickhouse.Open(&clickhouse.Options{
			Addr: []string{cfg.URL},
			Auth: clickhouse.Auth{
				Database: cfg.Database,
				Username: cfg.Username,
				Password: cfg.Password,
			},
			ClientInfo: clickhouse.ClientInfo{
				Products: []struct {
					Name    string
					Version string
				}{
					{Name: "toptube-api-server", Version: "1.0"},
				},
			},
			Debugf: func(format string, v ...any) {
				logger.Debug().Msgf(format, v...)
			},
		})

		if err == nil {
			err = conn.Ping(ctx)
			if err == nil {
				logger.Info().Msg("connected to ClickHouse")
				return conn, nil
			}
		}

		logger.Warn().Err(err).Int("attempt", i).Msg("ClickHouse not ready")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("could not connect to ClickHouse after multiple attempts: %w", err)
}

func MigrateClickhouse(cfg ClickhouseConfig) error {
	migrationURL := "file://" + cfg.MigrationsDir

	dbURL := fmt.Sprintf("clickhouse://%s:%s@%s/%s?x-multi-statement=true",
		cfg.Username, cfg.Password, cfg.URL, cfg.Database)

	m, err := migrate.New(migrationURL, dbURL)
	if err != nil {
		return fmt.Errorf("migration init error: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
