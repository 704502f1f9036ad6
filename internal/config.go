package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/enrichment"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeJWT      = "jwt"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Generation GenerationConfig  `yaml:"generation"`
	Enrichment EnrichmentConfig  `yaml:"enrichment"`
	Patterns   PatternsConfig    `yaml:"patterns"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
	MCP        MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.SQLite, &c.Auth, &c.Generation, &c.Enrichment, &c.RateLimit,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Timezone is the IANA name calendar days are grouped in.
	Timezone string     `yaml:"timezone"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return c.HTTP.Validate()
}

// Location resolves Timezone. Empty or "Local" selects the host zone.
func (c *ApplicationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds identity verification configuration.
//
// Mode controls how bearer tokens are verified:
//   - "disabled" (default): every request acts as DevUser, suitable for local dev.
//   - "jwt": tokens are JWTs signed by the identity service; PublicKey and
//     Issuer are required.
type AuthConfig struct {
	Mode string `yaml:"mode"`
	// Issuer is the identity-service base URL expected in the iss claim.
	Issuer string `yaml:"issuer"`
	// PublicKey is the PEM-encoded key tokens are signed with.
	PublicKey string `yaml:"public_key"`
	Audience  string `yaml:"audience"`
	DevUser   string `yaml:"dev_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if c.DevUser == "" {
		c.DevUser = "local"
	}
	jwtMode := c.Mode == AuthModeJWT
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeJWT)),
		validation.Field(&c.Issuer, validation.When(jwtMode, validation.Required, is.RequestURL)),
		validation.Field(&c.PublicKey, validation.When(jwtMode, validation.Required)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Verifier builds the token verifier for the configured mode.
func (c *AuthConfig) Verifier() (auth.Verifier, error) {
	if c.Mode != AuthModeJWT {
		return auth.StaticVerifier{UserID: c.DevUser}, nil
	}
	return auth.NewJWTVerifier(c.PublicKey, c.Issuer, c.Audience)
}

// GenerationConfig configures the upstream text-generation provider used by
// the /enrichment endpoint. Without an API key the endpoint answers 500.
type GenerationConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.RequestURL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}

// EnrichmentConfig configures the client the journal uses to call the
// /enrichment endpoint.
type EnrichmentConfig struct {
	// Endpoint defaults to this server's own /enrichment route.
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	BackgroundTimeout time.Duration `yaml:"background_timeout"`
}

// Validate validates the enrichment configuration.
func (c *EnrichmentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, is.RequestURL),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Temperature, validation.Min(enrichment.MinTemperature), validation.Max(enrichment.MaxTemperature)),
		validation.Field(&c.MaxTokens, validation.Min(enrichment.MinMaxTokens), validation.Max(enrichment.MaxMaxTokens)),
	); err != nil {
		return fmt.Errorf("enrichment: %w", err)
	}
	return nil
}

// ClientConfig returns the client settings. An empty Endpoint resolves to
// the local server listening on port.
func (c *EnrichmentConfig) ClientConfig(port int) enrichment.ClientConfig {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://127.0.0.1:%d/enrichment", port)
	}
	return enrichment.ClientConfig{
		Endpoint:    strings.TrimSpace(endpoint),
		Timeout:     c.Timeout,
		MaxRetries:  c.MaxRetries,
		Backoff:     c.RetryBackoff,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// PatternsConfig points at the file the external detector writes.
// Empty disables pattern ingestion.
type PatternsConfig struct {
	File string `yaml:"file"`
}

// RateLimitConfig limits enrichment-triggering requests per user.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.PerMinute, validation.Required, validation.Min(1)),
		validation.Field(&c.Burst, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	return nil
}

// MCPConfig configures the stdio MCP session.
type MCPConfig struct {
	// Token is the bearer token the session acts with. Required in jwt mode.
	Token string `yaml:"token"`
}

var errMCPToken = errors.New("mcp: token is required when auth mode is jwt")

// MCPIdentity verifies the configured MCP token.
func (c *Config) MCPIdentity() (auth.Identity, error) {
	if c.Auth.Mode == AuthModeJWT && c.MCP.Token == "" {
		return auth.Identity{}, errMCPToken
	}
	v, err := c.Auth.Verifier()
	if err != nil {
		return auth.Identity{}, err
	}
	return v.Verify(c.MCP.Token)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Timezone: "Local",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./solace.db",
		},
		Auth: AuthConfig{
			Mode:    AuthModeDisabled,
			DevUser: "local",
		},
		Generation: GenerationConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL: "https://api.anthropic.com",
			Timeout: 60 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Timeout:           90 * time.Second,
			MaxRetries:        2,
			RetryBackoff:      500 * time.Millisecond,
			Temperature:       enrichment.DefaultTemperature,
			MaxTokens:         enrichment.DefaultMaxTokens,
			BackgroundTimeout: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 10,
			Burst:     5,
		},
	}
}
