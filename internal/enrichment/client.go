package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/metrics"
)

const (
	modeEntry  = "entry"
	modeDigest = "digest"

	maxBackoff       = 5 * time.Second
	maxResponseBytes = 1 << 20
)

// ClientConfig configures the enrichment client.
type ClientConfig struct {
	// Endpoint is the full URL of the POST /enrichment endpoint.
	Endpoint    string
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Temperature float64
	MaxTokens   int
}

// Client calls the enrichment endpoint on behalf of an authenticated user.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewClient creates a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger, rec metrics.Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger, metrics: rec}
}

// EnrichEntry requests a reflective insight for a single entry.
func (c *Client) EnrichEntry(ctx context.Context, token string, in EntryInput) (string, error) {
	return c.generate(ctx, modeEntry, token, EntryPrompt(in))
}

// Digest requests a weekly reflection over up to MaxDigestEntries entries.
func (c *Client) Digest(ctx context.Context, token string, entries []EntryInput) (string, error) {
	if len(entries) > MaxDigestEntries {
		return "", fmt.Errorf("%w: digest accepts at most %d entries, got %d",
			apperr.ErrValidation, MaxDigestEntries, len(entries))
	}
	return c.generate(ctx, modeDigest, token, DigestPrompt(entries))
}

type requestBody struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type responseBody struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// errRetryable marks failures worth another attempt.
var errRetryable = errors.New("retryable")

func (c *Client) generate(ctx context.Context, mode, token, prompt string) (string, error) {
	if !wellFormedToken(token) {
		return "", fmt.Errorf("%w: missing or malformed bearer token", apperr.ErrAuthentication)
	}

	payload, err := json.Marshal(requestBody{
		Prompt:      prompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("enrichment: marshal request: %w", err)
	}

	start := time.Now()
	var text string
	for attempt := 0; ; attempt++ {
		text, err = c.do(ctx, token, payload)
		if err == nil || !errors.Is(err, errRetryable) || attempt >= c.cfg.MaxRetries {
			break
		}
		delay := backoff(c.cfg.Backoff, attempt)
		c.logger.Warn("enrichment: retrying",
			slog.String("mode", mode),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			err = fmt.Errorf("%w: %v", apperr.ErrUpstream, ctx.Err())
		case <-time.After(delay):
			continue
		}
		break
	}

	c.metrics.RecordEnrichment(mode, outcome(err), time.Since(start))
	if err != nil {
		return "", err
	}
	return text, nil
}

// do performs one attempt. Returned errors always wrap an apperr sentinel;
// transient ones additionally wrap errRetryable.
func (c *Client) do(ctx context.Context, token string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", apperr.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", apperr.ErrUpstream, ctx.Err())
		}
		return "", fmt.Errorf("%w: %w: transport error", apperr.ErrUpstream, errRetryable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w: read response", apperr.ErrUpstream, errRetryable)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: token rejected", apperr.ErrAuthentication)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Debug("enrichment: upstream error body", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return "", fmt.Errorf("%w: %w: status %d", apperr.ErrUpstream, errRetryable, resp.StatusCode)
	default:
		c.logger.Debug("enrichment: upstream error body", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return "", fmt.Errorf("%w: status %d", apperr.ErrUpstream, resp.StatusCode)
	}

	var out responseBody
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response", apperr.ErrUpstream)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", apperr.ErrEmptyGeneration
	}
	return text, nil
}

// backoff doubles base per attempt, capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// wellFormedToken checks the compact JWS shape: three non-empty segments.
func wellFormedToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\r\n") {
			return false
		}
	}
	return true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrAuthentication):
		return "unauthenticated"
	case errors.Is(err, apperr.ErrEmptyGeneration):
		return "empty"
	default:
		return "upstream_error"
	}
}
