package handlers

import (
	"net/http"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/service/guild"
	"guildhall-backend/pkg/api"
	"guildhall-backend/pkg/auth"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader makes POST /guilds safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// GuildHandler serves the guild, membership and post routes.
type GuildHandler struct {
	service      guild.Service
	errorHandler *appErrors.ErrorHandler
	logger       *zap.Logger
}

// NewGuildHandler creates a handler over service.
func NewGuildHandler(service guild.Service, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *GuildHandler {
	return &GuildHandler{service: service, errorHandler: errorHandler, logger: logger}
}

// Routes mounts the handler. Mutating routes require an authenticated
// caller; reads accept anonymous viewers.
func (h *GuildHandler) Routes(requireUser func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListGuilds)
	r.Get("/{guildID}", h.GetGuild)
	r.Get("/{guildID}/members", h.ListMembers)
	r.Get("/{guildID}/posts", h.ListPosts)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", h.CreateGuild)
		r.Patch("/{guildID}", h.UpdateGuild)
		r.Post("/{guildID}/members", h.JoinGuild)
		r.Delete("/{guildID}/members/me", h.LeaveGuild)
		r.Post("/{guildID}/posts", h.CreatePost)
		r.Delete("/{guildID}/posts/{postID}", h.DeletePost)
		r.Post("/{guildID}/posts/{postID}/like", h.ToggleLike)
		r.Post("/{guildID}/posts/{postID}/pin", h.TogglePin)
	})

	return r
}

// ListGuilds handles GET /guilds
func (h *GuildHandler) ListGuilds(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	views, err := h.service.ListGuilds(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	resp := make([]api.GuildResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toGuildResponse(v))
	}
	api.Success(w, http.StatusOK, resp)
}

// CreateGuild handles POST /guilds
func (h *GuildHandler) CreateGuild(w http.ResponseWriter, r *http.Request) {
	var req api.CreateGuildRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	input := domain.NewGuild{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		IsPrivate:   req.IsPrivate,
		Rules:       req.Rules,
	}
	view, err := h.service.CreateGuild(r.Context(), auth.UserIDFromContext(r.Context()), input, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, toGuildResponse(*view))
}

// GetGuild handles GET /guilds/{guildID}
func (h *GuildHandler) GetGuild(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetGuild(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, toGuildResponse(*view))
}

// UpdateGuild handles PATCH /guilds/{guildID}
func (h *GuildHandler) UpdateGuild(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateGuildRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if req.IsPrivate == nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError("isPrivate is required"))
		return
	}

	view, err := h.service.UpdateGuildPrivacy(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"), *req.IsPrivate)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, toGuildResponse(*view))
}

// JoinGuild handles POST /guilds/{guildID}/members
func (h *GuildHandler) JoinGuild(w http.ResponseWriter, r *http.Request) {
	joined, err := h.service.JoinGuild(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, api.JoinResponse{Joined: joined})
}

// LeaveGuild handles DELETE /guilds/{guildID}/members/me
func (h *GuildHandler) LeaveGuild(w http.ResponseWriter, r *http.Request) {
	left, err := h.service.LeaveGuild(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, api.LeaveResponse{Left: left})
}

// ListMembers handles GET /guilds/{guildID}/members
func (h *GuildHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	resp := make([]api.MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, api.MemberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: formatTime(m.JoinedAt)})
	}
	api.Success(w, http.StatusOK, resp)
}

// ListPosts handles GET /guilds/{guildID}/posts
func (h *GuildHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	resp := make([]api.PostResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, toPostResponse(p))
	}
	api.Success(w, http.StatusOK, resp)
}

// CreatePost handles POST /guilds/{guildID}/posts
func (h *GuildHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	input := toNewPost(req)
	if input.AuthorName == "" {
		if user := auth.GetUserFromContext(r.Context()); user != nil {
			input.AuthorName = user.DisplayName()
		}
	}

	view, err := h.service.CreatePost(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"), input)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, toPostResponse(*view))
}

// DeletePost handles DELETE /guilds/{guildID}/posts/{postID}
func (h *GuildHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeletePost(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"), chi.URLParam(r, "postID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, api.DeleteResponse{Deleted: true})
}

// ToggleLike handles POST /guilds/{guildID}/posts/{postID}/like
func (h *GuildHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ToggleLike(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"), chi.URLParam(r, "postID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, api.LikeResponse{Liked: result.Liked, Likes: result.Likes})
}

// TogglePin handles POST /guilds/{guildID}/posts/{postID}/pin
func (h *GuildHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TogglePin(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "guildID"), chi.URLParam(r, "postID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, api.PinResponse{IsPinned: result.IsPinned})
}
