package handler

import (
	"net/http"

	"agt_platform/internal/api/middleware"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Authenticator(h.authService)).Get("/me", h.me)
}

type meResponse struct {
	*model.User
	CanAccessAdminPage bool `json:"can_access_admin_page"`
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}
	user, err := h.authService.ResolveUser(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, meResponse{
		User:               user,
		CanAccessAdminPage: model.CanAccessAdminPage(user.Role),
	})
}
