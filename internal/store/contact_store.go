package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresContactStore struct {
	db *sql.DB
}

func NewPostgresContactStore(db *sql.DB) *PostgresContactStore {
	return &PostgresContactStore{db: db}
}

type ContactStore interface {
	SaveContactMessage(ctx context.Context, msg *models.ContactMessage) error
	SubscribeNewsletter(ctx context.Context, email string) error
}

func (p *PostgresContactStore) SaveContactMessage(ctx context.Context, msg *models.ContactMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query := `
		INSERT INTO contact_messages (id, name, email, subject, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := p.db.QueryRowContext(ctx, query, msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact message: %w", err)
	}
	return nil
}

func (p *PostgresContactStore) SubscribeNewsletter(ctx context.Context, email string) error {
	query := `
		INSERT INTO newsletter_subscribers (email)
		VALUES ($1)
	`
	_, err := p.db.ExecContext(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadySubscribed
		}
		return fmt.Errorf("failed to insert newsletter subscriber: %w", err)
	}
	return nil
}
