package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
)

const (
	issuer = "violin-academy"

	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Type  string      `json:"type"`
	jwt.RegisteredClaims
}

// ProfileID returns the subject as a profile id.
func (c *Claims) ProfileID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Tokens signs and verifies HS256 access and refresh tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (t *Tokens) Issue(p *models.Profile) (TokenPair, error) {
	access, err := t.sign(p, TokenAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(p, TokenRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}

func (t *Tokens) sign(p *models.Profile, typ string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and checks that it is of the wanted type.
func (t *Tokens) Parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, wantType)
	}
	return claims, nil
}
