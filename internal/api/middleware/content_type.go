package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/inferguard/inferguard/internal/api/models"
)

// RequireJSON rejects POST, PUT and PATCH bodies that are not JSON with a 415
// problem. Bodiless calls such as POST /v1/healthchecks/run-all and requests
// without a Content-Type pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r) && !isJSON(r.Header.Get("Content-Type")) {
			writeProblem(w, r, http.StatusUnsupportedMediaType, "request body must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	default:
		return false
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// writeProblem is the middleware-side twin of the response package, which
// cannot be imported here.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	models.NewProblem(status, GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}
