package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/blog"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

// PostGenerator builds the auto-generated posts.
type PostGenerator interface {
	GenerateDaily(ctx context.Context) (*models.BlogPost, error)
	CountryPosts(ctx context.Context) ([]blog.CountryListing, error)
	CountryPost(ctx context.Context, code string) (*blog.CountryPost, error)
}

type BlogHandler struct {
	BlogStore store.BlogStore
	Generator PostGenerator
	Logger    zerolog.Logger
}

func NewBlogHandler(blogStore store.BlogStore, generator PostGenerator, logger zerolog.Logger) *BlogHandler {
	return &BlogHandler{
		BlogStore: blogStore,
		Generator: generator,
		Logger:    logger.With().Str("component", "blog").Logger(),
	}
}

// HandlerGetPosts lists published posts, newest first.
func (bh *BlogHandler) HandlerGetPosts(w http.ResponseWriter, r *http.Request) {
	filter := store.PostFilter{
		Status:   models.PostStatusPublished,
		Category: r.URL.Query().Get("category"),
		Page:     utils.QueryInt(r, "page", 1, 1, 10_000),
		Limit:    utils.QueryInt(r, "limit", 10, 1, 50),
	}

	resp, err := bh.BlogStore.ListPosts(r.Context(), filter)
	if err != nil {
		writeError(w, bh.Logger, err, "Posts not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"posts":    resp.Posts,
		"page":     resp.Page,
		"limit":    resp.Limit,
		"total":    resp.Total,
		"has_more": resp.HasMore,
	})
}

func (bh *BlogHandler) HandlerGetPostBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := bh.BlogStore.GetPostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, bh.Logger, err, "Post not found")
		return
	}
	if post.Status != models.PostStatusPublished {
		utils.WriteError(w, http.StatusNotFound, "Post not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"post": post})
}

func (bh *BlogHandler) HandlerGetCountryPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := bh.Generator.CountryPosts(r.Context())
	if err != nil {
		writeError(w, bh.Logger, err, "Posts not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"posts": posts, "total": len(posts)})
}

func (bh *BlogHandler) HandlerGetCountryPost(w http.ResponseWriter, r *http.Request) {
	post, err := bh.Generator.CountryPost(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, bh.Logger, err, "Country not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"post": post})
}

type postRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Slug     string   `json:"slug" validate:"omitempty,max=200"`
	Content  string   `json:"content" validate:"required"`
	Excerpt  string   `json:"excerpt" validate:"max=500"`
	Category string   `json:"category" validate:"max=100"`
	Author   string   `json:"author" validate:"max=100"`
	Status   string   `json:"status" validate:"omitempty,oneof=draft published"`
	Tags     []string `json:"tags" validate:"max=20,dive,max=50"`
}

func (req postRequest) post() *models.BlogPost {
	slug := blog.Slugify(req.Slug)
	if slug == "" {
		slug = blog.Slugify(req.Title)
	}
	author := req.Author
	if author == "" {
		author = blog.DailyAuthor
	}
	return &models.BlogPost{
		Title:    strings.TrimSpace(req.Title),
		Slug:     slug,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Category: req.Category,
		Author:   author,
		Status:   req.Status,
		Tags:     req.Tags,
	}
}

func (bh *BlogHandler) HandlerCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	post := req.post()
	if post.Slug == "" {
		utils.WriteError(w, http.StatusBadRequest, "title must contain letters or digits")
		return
	}
	if err := bh.BlogStore.CreatePost(r.Context(), post); err != nil {
		writeError(w, bh.Logger, err, "Post not found")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{"message": "Post created", "post": post})
}

// HandlerUpdatePost replaces a post's fields. The slug in the URL wins
// over one in the body.
func (bh *BlogHandler) HandlerUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	post := req.post()
	if err := bh.BlogStore.UpdatePost(r.Context(), chi.URLParam(r, "slug"), post); err != nil {
		writeError(w, bh.Logger, err, "Post not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"message": "Post updated", "post": post})
}

func (bh *BlogHandler) HandlerDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := bh.BlogStore.DeletePost(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeError(w, bh.Logger, err, "Post not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"message": "Post deleted"})
}

func (bh *BlogHandler) HandlerGenerateDaily(w http.ResponseWriter, r *http.Request) {
	post, err := bh.Generator.GenerateDaily(r.Context())
	if err != nil {
		writeError(w, bh.Logger, err, "Post not found")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{"message": "Daily post generated", "post": post})
}
