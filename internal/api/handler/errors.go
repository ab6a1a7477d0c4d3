package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/middleware"
	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/infra"
)

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var validationErr *incident.ValidationError

	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
	case errors.Is(err, healthcheck.ErrDefinitionNotFound),
		errors.Is(err, healthcheck.ErrRunNotFound),
		errors.Is(err, incident.ErrIncidentNotFound),
		errors.Is(err, infra.ErrInstanceNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, incident.ErrInvalidTransition):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "request timed out")
	default:
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// decodeJSON reads a JSON request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, r, name+" must be a positive integer", []models.FieldError{
			{Field: name, Message: "must be a positive integer", Code: "invalid_value"},
		})
		return 0, false
	}
	return id, true
}

// queryLimit parses the limit query parameter. Zero means absent.
func queryLimit(w http.ResponseWriter, r *http.Request, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		response.BadRequest(w, r, "invalid limit", []models.FieldError{
			{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxLimit), Code: "out_of_range"},
		})
		return 0, false
	}
	return limit, true
}

func invalidField(w http.ResponseWriter, r *http.Request, field, message string) {
	response.BadRequest(w, r, "validation failed", []models.FieldError{
		{Field: field, Message: message, Code: "invalid_value"},
	})
}
