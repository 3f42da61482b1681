package transport

import (
	"net/http"

	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RoleRequest sets an account's role
type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user staff admin"`
}

// AdminHandler exposes the ledger feed to staff and role management to admins
type AdminHandler struct {
	products service.ProductService
	users    service.UserService
	logger   *zap.Logger
}

func NewAdminHandler(products service.ProductService, users service.UserService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{products: products, users: users, logger: logger}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)

		r.With(middleware.RequireStaff(h.logger)).Get("/changes", h.RecentChanges)
		r.With(middleware.RequireAdmin(h.logger)).Put("/users/{id}/role", h.SetRole)
	})
}

// RecentChanges lists the newest ledger entries across all products
func (h *AdminHandler) RecentChanges(w http.ResponseWriter, r *http.Request) {
	entries, err := h.products.RecentChanges(r.Context(), limitParam(r, 50))
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*domain.ChangeEntry{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, HistoryResponse{Changes: entries})
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	var req RoleRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	user, err := h.users.SetRole(r.Context(), actor, id, domain.Role(req.Role))
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	h.logger.Info("Role changed",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.ID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, newUserResponse(user))
}
