package transport

import (
	"net/http"
	"strconv"

	"stockroom/internal/apperror"
	"stockroom/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxHistoryLimit = 200

// decode reads and validates the JSON body into v. On failure the error
// response has already been written and false is returned.
func decode(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}
	logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// pathID parses the {id} URL parameter. Malformed ids are reported as not found.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperror.Wrap(apperror.KindNotFound, err, "Not found")
	}
	return id, nil
}

// limitParam reads ?limit=, falling back to def and capping at maxHistoryLimit
func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > maxHistoryLimit {
		return maxHistoryLimit
	}
	return n
}

func unauthenticated() error {
	return apperror.New(apperror.KindUnauthenticated, "authentication required")
}
