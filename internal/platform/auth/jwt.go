package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apexflow/api/internal/domain"
)

const defaultTokenTTL = 12 * time.Hour

var (
	// ErrTokenExpired signals that the provided token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload carried by staff access tokens.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies staff access tokens with an HMAC secret.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customises TokenCodec behaviour.
type CodecOption func(*TokenCodec)

// WithTokenTTL overrides the issued token lifetime.
func WithTokenTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec constructs a TokenCodec for the given signing secret.
func NewTokenCodec(secret, issuer string, opts ...CodecOption) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	codec := &TokenCodec{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}
	return codec, nil
}

// Issue signs a token for the given staff identity.
func (c *TokenCodec) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.StaffID) == "" {
		return "", errors.New("auth: staff id is required")
	}
	now := c.now()
	claims := Claims{
		Name: identity.Name,
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identity.StaffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token, returning the embedded identity.
func (c *TokenCodec) Verify(tokenStr string) (*Identity, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	role := domain.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return &Identity{
		StaffID: claims.Subject,
		Name:    claims.Name,
		Role:    role,
	}, nil
}
