package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type PostFilter struct {
	Status   string
	Category string
	Page     int
	Limit    int
}

type PostsResponse struct {
	Posts   []models.BlogPost `json:"posts"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Total   int               `json:"total"`
	HasMore bool              `json:"has_more"`
}

type PostgresBlogStore struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

func NewPostgresBlogStore(db *sql.DB) *PostgresBlogStore {
	if db == nil {
		panic("db cannot be nil for PostgresBlogStore")
	}
	return &PostgresBlogStore{db: db, typeMap: pgtype.NewMap()}
}

type BlogStore interface {
	ListPosts(ctx context.Context, filter PostFilter) (*PostsResponse, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	CreatePost(ctx context.Context, post *models.BlogPost) error
	UpdatePost(ctx context.Context, slug string, post *models.BlogPost) error
	DeletePost(ctx context.Context, slug string) error
	UpsertPostBySlug(ctx context.Context, post *models.BlogPost) error
}

const postColumns = `
	id, title, slug, content, excerpt, category, author, status, tags,
	views, is_auto_generated, published_at, created_at, updated_at`

func (pg *PostgresBlogStore) scanPost(row rowScanner) (*models.BlogPost, error) {
	var p models.BlogPost
	var publishedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Content,
		&p.Excerpt,
		&p.Category,
		&p.Author,
		&p.Status,
		pg.typeMap.SQLScanner(&p.Tags),
		&p.Views,
		&p.IsAutoGenerated,
		&publishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func (pg *PostgresBlogStore) ListPosts(ctx context.Context, filter PostFilter) (*PostsResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	offset := (filter.Page - 1) * filter.Limit

	whereClauses := []string{"1 = 1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", len(args)))
	}
	where := strings.Join(whereClauses, " AND ")

	var total int
	if err := pg.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM blog_posts WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count blog posts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM blog_posts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, postColumns, where, filter.Limit, offset)

	rows, err := pg.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get blog posts: %w", err)
	}
	defer rows.Close()

	posts := []models.BlogPost{}
	for rows.Next() {
		p, err := pg.scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over blog rows: %w", err)
	}

	return &PostsResponse{
		Posts:   posts,
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		HasMore: offset+len(posts) < total,
	}, nil
}

// GetPostBySlug returns the post and counts the read.
func (pg *PostgresBlogStore) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	query := fmt.Sprintf(`
		UPDATE blog_posts SET views = views + 1
		WHERE slug = $1
		RETURNING %s
	`, postColumns)

	p, err := pg.scanPost(pg.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog post: %w", err)
	}
	return p, nil
}

func (pg *PostgresBlogStore) CreatePost(ctx context.Context, post *models.BlogPost) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	publishedAtFor(post)

	query := `
		INSERT INTO blog_posts (
			id, title, slug, content, excerpt, category, author, status, tags,
			is_auto_generated, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := pg.db.QueryRowContext(ctx, query,
		post.ID,
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.Category,
		post.Author,
		post.Status,
		post.Tags,
		post.IsAutoGenerated,
		post.PublishedAt,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert blog post: %w", err)
	}
	return nil
}

func (pg *PostgresBlogStore) UpdatePost(ctx context.Context, slug string, post *models.BlogPost) error {
	if post.Tags == nil {
		post.Tags = []string{}
	}
	publishedAtFor(post)

	query := `
		UPDATE blog_posts
		SET title = $2,
			content = $3,
			excerpt = $4,
			category = $5,
			author = $6,
			status = $7,
			tags = $8,
			published_at = COALESCE(published_at, $9),
			updated_at = NOW()
		WHERE slug = $1
		RETURNING id, slug, views, created_at, updated_at
	`

	err := pg.db.QueryRowContext(ctx, query,
		slug,
		post.Title,
		post.Content,
		post.Excerpt,
		post.Category,
		post.Author,
		post.Status,
		post.Tags,
		post.PublishedAt,
	).Scan(&post.ID, &post.Slug, &post.Views, &post.CreatedAt, &post.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update blog post: %w", err)
	}
	return nil
}

func (pg *PostgresBlogStore) DeletePost(ctx context.Context, slug string) error {
	res, err := pg.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}
	return expectRow(res)
}

// UpsertPostBySlug replaces the post stored under post.Slug, keeping its
// id, views and creation time.
func (pg *PostgresBlogStore) UpsertPostBySlug(ctx context.Context, post *models.BlogPost) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	publishedAtFor(post)

	query := `
		INSERT INTO blog_posts (
			id, title, slug, content, excerpt, category, author, status, tags,
			is_auto_generated, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			excerpt = EXCLUDED.excerpt,
			category = EXCLUDED.category,
			author = EXCLUDED.author,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			is_auto_generated = EXCLUDED.is_auto_generated,
			updated_at = NOW()
		RETURNING id, views, created_at, updated_at
	`

	err := pg.db.QueryRowContext(ctx, query,
		post.ID,
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.Category,
		post.Author,
		post.Status,
		post.Tags,
		post.IsAutoGenerated,
		post.PublishedAt,
	).Scan(&post.ID, &post.Views, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert blog post: %w", err)
	}
	return nil
}

func publishedAtFor(post *models.BlogPost) {
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	if post.Status == models.PostStatusPublished && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
}
