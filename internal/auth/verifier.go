package auth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/solace/internal/apperr"
)

// Verifier validates bearer tokens against the identity service's public key.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier checks signature, issuer, audience and expiry of identity tokens.
type JWTVerifier struct {
	key      any
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTVerifier parses a PEM public key (RSA, ECDSA or Ed25519).
// issuer is the identity-service base URL; audience may be empty.
func NewJWTVerifier(publicKeyPEM, issuer, audience string) (*JWTVerifier, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(publicKeyPEM)))
	if block == nil {
		return nil, errors.New("auth: public key is not PEM encoded")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}

	var methods []string
	switch pub.(type) {
	case *rsa.PublicKey:
		methods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
	case *ecdsa.PublicKey:
		methods = []string{"ES256", "ES384", "ES512"}
	case ed25519.PublicKey:
		methods = []string{"EdDSA"}
	default:
		return nil, fmt.Errorf("auth: unsupported public key type %T", pub)
	}

	return &JWTVerifier{
		key:      pub,
		methods:  methods,
		issuer:   strings.TrimRight(issuer, "/"),
		audience: audience,
		leeway:   30 * time.Second,
	}, nil
}

// Verify returns the identity carried by token. Every failure wraps
// apperr.ErrAuthentication.
func (v *JWTVerifier) Verify(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, fmt.Errorf("%w: missing token", apperr.ErrAuthentication)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.RegisteredClaims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrAuthentication, err)
	}
	if !tok.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", apperr.ErrAuthentication)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", apperr.ErrAuthentication)
	}
	return Identity{UserID: claims.Subject, Token: token}, nil
}

// DevToken is forwarded to the enrichment endpoint when auth is disabled and
// the caller sent no token of its own.
const DevToken = "dev.local.unsigned"

// StaticVerifier accepts any token and maps it to a fixed user.
// It backs the "disabled" auth mode for local development.
type StaticVerifier struct {
	UserID string
}

// Verify implements Verifier.
func (v StaticVerifier) Verify(token string) (Identity, error) {
	if token == "" {
		token = DevToken
	}
	return Identity{UserID: v.UserID, Token: token}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
