package handlers

import (
	"net/http"

	"guildhall-backend/internal/service/guild"
	"guildhall-backend/pkg/api"
	"guildhall-backend/pkg/auth"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler exposes the reconciliation escape hatch to moderators.
type AdminHandler struct {
	service      guild.Service
	errorHandler *appErrors.ErrorHandler
	logger       *zap.Logger
}

func NewAdminHandler(service guild.Service, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, errorHandler: errorHandler, logger: logger}
}

// ReconcileGuild handles POST /admin/reconcile/guilds/{guildID}
func (h *AdminHandler) ReconcileGuild(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	if err := h.service.AuthorizeReconcile(callerID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	includePosts, err := queryBool(r, "posts", true)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	guildID := chi.URLParam(r, "guildID")
	report, err := h.service.ReconcileGuild(r.Context(), guildID, includePosts)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("Reconciliation requested",
		zap.String("guild_id", guildID),
		zap.String("requested_by", callerID),
		zap.Int("drifts", len(report.Drifts)),
	)
	api.Success(w, http.StatusOK, toReconcileResponse(report))
}
