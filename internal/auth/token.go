// Package auth issues and verifies the bearer tokens of the offer board and
// drives the emailed-code login flow.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenExpiry  = 24 * time.Hour
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

var (
	ErrMissingSecret = errors.New("token secret is not configured")
	ErrMissingHeader = errors.New("missing authorization header")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// Kind selects which secret and lifetime a token uses.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

type Claims struct {
	UserID string `json:"user"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Tokens signs and verifies HS256 tokens. It never touches the store.
type Tokens struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	now     func() time.Time
}

func NewTokens(cfg TokenConfig) *Tokens {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = AccessTokenExpiry
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = RefreshTokenExpiry
	}
	return &Tokens{
		secrets: map[Kind][]byte{
			Access:  []byte(cfg.AccessSecret),
			Refresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[Kind]time.Duration{
			Access:  cfg.AccessTTL,
			Refresh: cfg.RefreshTTL,
		},
		now: time.Now,
	}
}

func (t *Tokens) Issue(kind Kind, userID string) (string, error) {
	secret := t.secrets[kind]
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}

	now := t.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttls[kind])),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (t *Tokens) IssuePair(userID string) (*TokenPair, error) {
	access, err := t.Issue(Access, userID)
	if err != nil {
		return nil, err
	}
	refresh, err := t.Issue(Refresh, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks an Authorization header value of the form "Bearer <token>".
func (t *Tokens) Verify(kind Kind, authHeader string) (*Claims, error) {
	if authHeader == "" {
		return nil, ErrMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return nil, ErrInvalidToken
	}

	return t.Parse(kind, strings.TrimSpace(parts[1]))
}

// Parse validates a raw token string against the secret for kind.
func (t *Tokens) Parse(kind Kind, tokenString string) (*Claims, error) {
	secret := t.secrets[kind]
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
