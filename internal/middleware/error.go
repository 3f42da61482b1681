package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"stockroom/internal/apperror"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response. The code is the
// apperror kind matching statusCode.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, string(apperror.KindForStatus(statusCode)), message, nil)
}

func respondWithErrorDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithAppError writes err using its apperror kind. Errors without a
// kind are logged and reported as internal with a generic message.
func RespondWithAppError(w http.ResponseWriter, err error, logger *zap.Logger) {
	appErr := apperror.As(err)
	if appErr == nil {
		appErr = apperror.Wrap(apperror.KindInternal, err, "")
	}

	kind := appErr.Kind()
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("Request failed", zap.Error(err))
	}

	var details map[string]interface{}
	if field := appErr.Field(); field != "" {
		details = map[string]interface{}{"field": field}
	}
	if d := appErr.RetryAfter(); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}

	respondWithErrorDetails(w, status, string(kind), appErr.Message(), details)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors
	if len(errors) > 0 {
		details["field"] = errors[0].Field
	}

	respondWithErrorDetails(w, http.StatusBadRequest, string(apperror.KindInvalidInput), "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
