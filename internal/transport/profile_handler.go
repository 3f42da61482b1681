package transport

import (
	"net/http"

	"stockroom/internal/middleware"
	"stockroom/internal/service"
	"stockroom/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProfileRequest is the editable part of a profile
type ProfileRequest struct {
	Position   string `json:"position"`
	Department string `json:"department"`
	Bio        string `json:"bio"`
	Phone      string `json:"phone"`
}

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// Routes mounts GET and PUT /profile on an authenticated /api/users router
func (h *ProfileHandler) Routes(r chi.Router) {
	r.Get("/profile", h.Get)
	r.Put("/profile", h.Update)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		middleware.RespondWithAppError(w, unauthenticated(), h.logger)
		return
	}

	profile, err := h.profiles.Get(r.Context(), actor.ID)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		middleware.RespondWithAppError(w, unauthenticated(), h.logger)
		return
	}

	profile, err := h.profiles.Update(r.Context(), actor, actor.ID, validation.ProfileFields{
		Position:   req.Position,
		Department: req.Department,
		Bio:        req.Bio,
		Phone:      req.Phone,
	})
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}
