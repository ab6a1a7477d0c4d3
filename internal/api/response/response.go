// Package response writes API bodies: JSON documents, RFC 7807 problems and
// plain exports.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/inferguard/inferguard/internal/api/middleware"
	"github.com/inferguard/inferguard/internal/api/models"
)

func header(w http.ResponseWriter, r *http.Request, contentType string) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", contentType)
}

// JSON writes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	header(w, r, "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created writes a 201 pointing at the new resource.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// Text writes a non-JSON body such as a CSV or YAML export.
func Text(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	header(w, r, contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Problem writes p, stamping it with the request path and id.
func Problem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	if p.TraceID == "" {
		p.TraceID = middleware.GetRequestID(r.Context())
	}
	p.WithInstance(r.URL.Path).Write(w)
}

func status(w http.ResponseWriter, r *http.Request, code int, detail string) {
	Problem(w, r, models.NewProblem(code, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400, optionally listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Problem(w, r, models.NewValidationProblem(middleware.GetRequestID(r.Context()), detail, errs))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	status(w, r, http.StatusNotFound, detail)
}

// Conflict writes a 409 for a rejected incident state change.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	status(w, r, http.StatusConflict, detail)
}

// InternalError writes a 500. detail must not leak internal error text.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	status(w, r, http.StatusInternalServerError, detail)
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	status(w, r, http.StatusServiceUnavailable, detail)
}
