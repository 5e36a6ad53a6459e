package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type CommunityHandler struct {
	community CommunityService
	log       *slog.Logger
}

func NewCommunityHandler(community CommunityService, log *slog.Logger) *CommunityHandler {
	return &CommunityHandler{community: community, log: log}
}

type CreatePostRequestDTO struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url"`
}

type AddCommentRequestDTO struct {
	ParentID *string `json:"parent_id"`
	Body     string  `json:"body"`
}

// GET /api/v1/posts
func (h *CommunityHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.community.ListPosts(r.Context(), page, limit)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// POST /api/v1/posts
func (h *CommunityHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	post, err := h.community.CreatePost(r.Context(), req.Title, req.Body, req.ImageURL)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

// GET /api/v1/posts/{id}
func (h *CommunityHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.community.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// DELETE /api/v1/posts/{id}
func (h *CommunityHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.community.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/posts/{id}/comments
func (h *CommunityHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	tree, err := h.community.GetCommentTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// POST /api/v1/posts/{id}/comments
func (h *CommunityHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	comment, err := h.community.AddComment(r.Context(), chi.URLParam(r, "id"), req.ParentID, req.Body)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// POST /api/v1/posts/{id}/upvote
func (h *CommunityHandler) ToggleUpvote(w http.ResponseWriter, r *http.Request) {
	upvoted, err := h.community.ToggleUpvote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"upvoted": upvoted})
}

// GET /api/v1/notifications
func (h *CommunityHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.community.ListNotifications(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// POST /api/v1/notifications/{id}/read
func (h *CommunityHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.community.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
