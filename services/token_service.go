package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"messenger-api/cache"
)

// Claims identify both the user and the in-memory session a token belongs to.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	// revoked holds the ids of logged out tokens until they would expire.
	revoked cache.Cache
	now     func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, revoked cache.Cache) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

func (s *TokenService) Issue(userID, sessionID string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return signed, claims, nil
}

// Parse validates the signature, expiry and revocation state of raw.
func (s *TokenService) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, errors.New("token is missing session claims")
	}

	_, revoked, err := s.revoked.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, errors.Wrap(err, "check token revocation")
	}
	if revoked {
		return nil, errors.New("token has been revoked")
	}
	return claims, nil
}

// Revoke blocks claims until they expire on their own.
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(s.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return errors.Wrap(s.revoked.Set(ctx, revokedKey(claims.ID), "1", ttl), "revoke token")
}

func revokedKey(jti string) string { return "revoked:" + jti }
