package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig is one rate limit tier, applied per client IP.
type RateLimitConfig struct {
	Name         string
	RequestLimit int
	WindowLength time.Duration
}

// Rate limit tiers.
var (
	// ControlRateLimit guards calls that change the pipeline: fault
	// injection and remediation.
	ControlRateLimit = RateLimitConfig{Name: "control", RequestLimit: 20, WindowLength: time.Minute}

	// ExpensiveRateLimit guards check sweeps and rightsizing reports.
	ExpensiveRateLimit = RateLimitConfig{Name: "expensive", RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit guards reads.
	StandardRateLimit = RateLimitConfig{Name: "standard", RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP as resolved by chi's RealIP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

// rateLimitExceeded answers with a 429 problem. httprate does not expose the
// window reset, so Retry-After advertises the full window.
func rateLimitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))
	detail := fmt.Sprintf("%s rate limit of %d requests per %s exceeded", cfg.Name, cfg.RequestLimit, cfg.WindowLength)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		writeProblem(w, r, http.StatusTooManyRequests, detail)
	}
}
