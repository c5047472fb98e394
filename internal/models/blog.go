package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

type BlogPost struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt"`
	Category        string     `json:"category"`
	Author          string     `json:"author"`
	Status          string     `json:"status"`
	Tags            []string   `json:"tags"`
	Views           int        `json:"views"`
	IsAutoGenerated bool       `json:"is_auto_generated"`
	PublishedAt     *time.Time `json:"published_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ContactMessage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type NewsletterSubscriber struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
