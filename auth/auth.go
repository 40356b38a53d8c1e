// Package auth verifies bearer tokens and maps them to session identities.
// The runtime only depends on the TokenVerifier interface; the JWT
// implementation here is the default collaborator wired in by the binary.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scrivener-app/scrivener/sessions"
)

// ErrInvalidToken indicates the token failed signature, time, or claim
// validation and the caller should be treated as unauthenticated.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenVerifier validates an access token and returns the identity it
// carries. Implementations MUST perform signature and time validation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*sessions.Identity, error)
}

// JWTVerifier validates HMAC-signed JWTs minted by the application's own
// auth service.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// Option configures a JWTVerifier.
type Option func(*config)

type config struct {
	allowedAlgs []string
	leeway      time.Duration
}

// WithLeeway sets the clock-skew tolerance (default 60s).
func WithLeeway(d time.Duration) Option {
	return func(c *config) { c.leeway = d }
}

// WithAllowedAlgs overrides the accepted signing algorithms (default HS256).
func WithAllowedAlgs(algs ...string) Option {
	return func(c *config) { c.allowedAlgs = algs }
}

// NewJWTVerifier constructs a verifier for tokens signed with the given
// shared secret.
func NewJWTVerifier(secret string, opts ...Option) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	cfg := config{
		allowedAlgs: []string{"HS256"},
		leeway:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(cfg.allowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.leeway),
	)
	return &JWTVerifier{secret: []byte(secret), parser: parser}, nil
}

// Verify implements TokenVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*sessions.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parsed, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	// Newer tokens carry "id"; older ones used "userId". Accept both, with
	// the registered subject claim as a last resort.
	id := stringClaim(claims, "id")
	if id == "" {
		id = stringClaim(claims, "userId")
	}
	if id == "" {
		id = stringClaim(claims, "sub")
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}

	return &sessions.Identity{
		ID:       id,
		Username: stringClaim(claims, "username"),
		Role:     stringClaim(claims, "role"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// MintToken signs a token for the given identity. Used by operational
// tooling and tests; the production token issuer lives outside this server.
func MintToken(secret string, identity sessions.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       identity.ID,
		"username": identity.Username,
		"role":     identity.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	return tok.SignedString([]byte(secret))
}
