// Package auth issues and validates the service tokens that guard the
// admin endpoints. Tokens are minted by deploy tooling and the delayctl
// CLI, not by end users, so there is no refresh flow: a token is valid
// until it expires and callers mint a fresh one per session.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenExpiry is how long minted service tokens are valid.
const DefaultTokenExpiry = 12 * time.Hour

// Claim values used when the config leaves them unset. The API server and
// the token-minting tooling must agree on these.
const (
	DefaultIssuer   = "https://api.delaycast.io"
	DefaultAudience = "delaycast-api"
)

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims represents the claims in a service token.
type Claims struct {
	jwt.RegisteredClaims

	// Service names the calling service or operator tooling.
	Service string `json:"svc"`
}

// JWTConfig configures token signing and the expected claims.
type JWTConfig struct {
	// SigningKey is the shared secret used to sign tokens.
	SigningKey string

	// Issuer is the issuer claim. Default: DefaultIssuer.
	Issuer string

	// Audience is the audience claim. Default: DefaultAudience.
	Audience string
}

// JWTService handles service token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewJWTService builds a service around the shared signing key,
// defaulting the issuer and audience claims when unset.
func NewJWTService(cfg JWTConfig) *JWTService {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}

	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken mints a token for the named service. A non-positive expiry
// falls back to DefaultTokenExpiry.
func (s *JWTService) GenerateToken(service string, expiry time.Duration) (string, time.Time, error) {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}

	now := time.Now()
	expiresAt := now.Add(expiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   service,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Service: service,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing service token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a service token and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
