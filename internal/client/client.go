package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/inferguard/inferguard/internal/api/models"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds configuration for a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080.
	BaseURL string

	// Timeout bounds a single HTTP exchange. Auto-remediation waits between
	// attempts, so the default is generous.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt of an
	// idempotent call.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	Breaker    *BreakerConfig
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	breaker := DefaultBreakerConfig("inferguard-api")
	return Config{
		BaseURL:         baseURL,
		Timeout:         90 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client calls the InferGuard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*reply]
	cfg        Config
}

type reply struct {
	status int
	body   []byte
}

// New creates a Client.
func New(cfg Config) *Client {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.Breaker == nil {
		cfg.Breaker = def.Breaker
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		breaker:    newBreaker[*reply](*cfg.Breaker),
		cfg:        cfg,
	}
}

// BreakerState returns the current state of the circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Problem    *models.Problem
}

func (e *APIError) Error() string {
	if e.Problem != nil && e.Problem.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Problem.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ServerError marks a 5xx answer so the breaker counts it as a failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// do sends one logical call. GET and DELETE are retried on network errors
// and 5xx answers; POST is sent once so a remediation never runs twice.
// Every attempt carries the same X-Request-Id.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	requestID := "cli_" + uuid.NewString()
	var last *reply
	operation := func() error {
		rep, err := c.breaker.Execute(func() (*reply, error) {
			return c.send(ctx, method, path, requestID, payload)
		})
		if rep != nil {
			last = rep
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil && ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if method == http.MethodGet || method == http.MethodDelete {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.cfg.InitialInterval
		bo.MaxInterval = c.cfg.MaxInterval
		bo.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(bo, c.cfg.MaxRetries)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var serverErr *ServerError
		if !errors.As(err, &serverErr) || last == nil {
			return err
		}
	}
	return decodeReply(last, out)
}

func (c *Client) send(ctx context.Context, method, path, requestID string, payload []byte) (*reply, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	rep := &reply{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return rep, &ServerError{StatusCode: resp.StatusCode}
	}
	return rep, nil
}

func decodeReply(rep *reply, out any) error {
	if rep.status >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: rep.status}
		var problem models.Problem
		if json.Unmarshal(rep.body, &problem) == nil && problem.Status != 0 {
			apiErr.Problem = &problem
		}
		return apiErr
	}
	if out == nil || len(rep.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
