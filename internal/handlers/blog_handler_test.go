package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grvbrk/toptube_server/internal/blog"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlogStore struct {
	posts      map[string]*models.BlogPost
	lastFilter store.PostFilter
}

func newFakeBlogStore(posts ...*models.BlogPost) *fakeBlogStore {
	f := &fakeBlogStore{posts: map[string]*models.BlogPost{}}
	for _, p := range posts {
		f.posts[p.Slug] = p
	}
	return f
}

func (f *fakeBlogStore) ListPosts(_ context.Context, filter store.PostFilter) (*store.PostsResponse, error) {
	f.lastFilter = filter
	out := []models.BlogPost{}
	for _, p := range f.posts {
		if filter.Status == "" || p.Status == filter.Status {
			out = append(out, *p)
		}
	}
	return &store.PostsResponse{Posts: out, Page: filter.Page, Limit: filter.Limit, Total: len(out)}, nil
}

func (f *fakeBlogStore) GetPostBySlug(_ context.Context, slug string) (*models.BlogPost, error) {
	p, ok := f.posts[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Views++
	return p, nil
}

func (f *fakeBlogStore) CreatePost(_ context.Context, p *models.BlogPost) error {
	if _, ok := f.posts[p.Slug]; ok {
		return store.ErrAlreadyExists
	}
	p.ID = uuid.New()
	f.posts[p.Slug] = p
	return nil
}

func (f *fakeBlogStore) UpdatePost(_ context.Context, slug string, p *models.BlogPost) error {
	old, ok := f.posts[slug]
	if !ok {
		return store.ErrNotFound
	}
	p.ID, p.Slug = old.ID, slug
	f.posts[slug] = p
	return nil
}

func (f *fakeBlogStore) DeletePost(_ context.Context, slug string) error {
	if _, ok := f.posts[slug]; !ok {
		return store.ErrNotFound
	}
	delete(f.posts, slug)
	return nil
}

func (f *fakeBlogStore) UpsertPostBySlug(_ context.Context, p *models.BlogPost) error {
	f.posts[p.Slug] = p
	return nil
}

type fakeGenerator struct{}

func (fakeGenerator) GenerateDaily(context.Context) (*models.BlogPost, error) {
	day := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	return &models.BlogPost{Title: blog.DailyTitle(day), Slug: blog.DailySlug(day), Status: models.PostStatusPublished}, nil
}

func (fakeGenerator) CountryPosts(context.Context) ([]blog.CountryListing, error) {
	return []blog.CountryListing{{CountryCode: "US", Slug: blog.CountrySlug("United States")}}, nil
}

func (fakeGenerator) CountryPost(_ context.Context, code string) (*blog.CountryPost, error) {
	if !strings.EqualFold(code, "us") {
		return nil, store.ErrNotFound
	}
	return &blog.CountryPost{CountryCode: "US", Slug: blog.CountrySlug("United States")}, nil
}

func newBlogFixture() (*BlogHandler, *fakeBlogStore) {
	posts := newFakeBlogStore(
		&models.BlogPost{Title: "Live", Slug: "live", Status: models.PostStatusPublished},
		&models.BlogPost{Title: "Hidden", Slug: "hidden", Status: models.PostStatusDraft},
	)
	return NewBlogHandler(posts, fakeGenerator{}, zerolog.Nop()), posts
}

func TestHandlerGetPosts_PublishedOnly(t *testing.T) {
	h, posts := newBlogFixture()

	rec := serve(t, http.MethodGet, "/blog/posts", h.HandlerGetPosts, "/blog/posts?category=News&page=2&limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["posts"], 1)
	assert.Equal(t, false, body["has_more"])
	assert.Equal(t, store.PostFilter{Status: models.PostStatusPublished, Category: "News", Page: 2, Limit: 50}, posts.lastFilter)
}

func TestHandlerGetPostBySlug(t *testing.T) {
	h, _ := newBlogFixture()

	rec := serve(t, http.MethodGet, "/blog/posts/{slug}", h.HandlerGetPostBySlug, "/blog/posts/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["post"].(map[string]any)["views"])

	rec = serve(t, http.MethodGet, "/blog/posts/{slug}", h.HandlerGetPostBySlug, "/blog/posts/hidden", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, http.MethodGet, "/blog/posts/{slug}", h.HandlerGetPostBySlug, "/blog/posts/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCountryPosts(t *testing.T) {
	h, _ := newBlogFixture()

	rec := serve(t, http.MethodGet, "/blog/countries", h.HandlerGetCountryPosts, "/blog/countries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = serve(t, http.MethodGet, "/blog/country/{code}", h.HandlerGetCountryPost, "/blog/country/us", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "top-youtubers-in-united-states", decode(t, rec)["post"].(map[string]any)["slug"])

	rec = serve(t, http.MethodGet, "/blog/country/{code}", h.HandlerGetCountryPost, "/blog/country/zz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerPostCRUD(t *testing.T) {
	h, posts := newBlogFixture()

	rec := serve(t, http.MethodPost, "/admin/blog/posts", h.HandlerCreatePost, "/admin/blog/posts",
		map[string]any{"title": "Top 10 Gaming Channels!", "content": "body", "status": "published", "tags": []string{"gaming"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created, ok := posts.posts["top-10-gaming-channels"]
	require.True(t, ok)
	assert.Equal(t, blog.DailyAuthor, created.Author)

	rec = serve(t, http.MethodPost, "/admin/blog/posts", h.HandlerCreatePost, "/admin/blog/posts",
		map[string]any{"title": "Top 10 gaming channels", "content": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, http.MethodPost, "/admin/blog/posts", h.HandlerCreatePost, "/admin/blog/posts",
		map[string]any{"title": "x", "content": "y", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPut, "/admin/blog/posts/{slug}", h.HandlerUpdatePost, "/admin/blog/posts/live",
		map[string]any{"title": "Live v2", "content": "new", "status": "draft"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Live v2", posts.posts["live"].Title)

	rec = serve(t, http.MethodPut, "/admin/blog/posts/{slug}", h.HandlerUpdatePost, "/admin/blog/posts/nope",
		map[string]any{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, http.MethodDelete, "/admin/blog/posts/{slug}", h.HandlerDeletePost, "/admin/blog/posts/hidden", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, posts.posts, "hidden")

	rec = serve(t, http.MethodDelete, "/admin/blog/posts/{slug}", h.HandlerDeletePost, "/admin/blog/posts/hidden", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGenerateDaily(t *testing.T) {
	h, _ := newBlogFixture()

	rec := serve(t, http.MethodPost, "/admin/blog/generate-daily", h.HandlerGenerateDaily, "/admin/blog/generate-daily", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "daily-youtube-rankings-2026-03-04", decode(t, rec)["post"].(map[string]any)["slug"])
}
