package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"session-tracker/internal/address"
	"session-tracker/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrDisabled     = errors.New("auth is disabled")
)

type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
	}
}

// Enabled reports whether a signing secret is configured.
func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

func (s *Service) IssueToken(addr string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	addr, err := address.Normalize(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}

	now := time.Now()
	claims := Claims{
		Address: addr,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Address == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type ctxKey struct{}

// Middleware requires a valid bearer token when auth is enabled and stores
// the token's address on the request context. With auth disabled it passes
// every request through untouched.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr, err := bearerToken(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := s.ValidateToken(tokenStr)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, claims.Address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AddressFromContext returns the authenticated address, if any.
func AddressFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(ctxKey{}).(string)
	return addr, ok && addr != ""
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
