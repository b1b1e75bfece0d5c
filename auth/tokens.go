package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-reports-service/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// ProfileResolver resolves the acting party's display profile for one actor
// kind. Citizens and authorities each provide their own implementation; the
// closed set replaces switching on the role string to pick a table.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, id string) (*models.Actor, error)
}

// TokenService issues and validates the signed tokens carrying a subject id
// and role claim.
type TokenService struct {
	jwtSecret []byte
	resolvers map[string]ProfileResolver
}

func NewTokenService(jwtSecret string, resolvers map[string]ProfileResolver) *TokenService {
	return &TokenService{
		jwtSecret: []byte(jwtSecret),
		resolvers: resolvers,
	}
}

// GenerateTokenPair generates both access and refresh tokens for the subject.
func (s *TokenService) GenerateTokenPair(subject, role string) (string, string, error) {
	now := time.Now()

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	})
	accessTokenString, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  now.Add(refreshTokenTTL).Unix(),
	})
	refreshTokenString, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return accessTokenString, refreshTokenString, nil
}

// ValidateToken validates an access token and returns the subject id and role.
func (s *TokenService) ValidateToken(tokenString string) (string, string, error) {
	return s.validate(tokenString, "access")
}

// ValidateRefreshToken validates a refresh token and returns the subject id
// and role.
func (s *TokenService) ValidateRefreshToken(tokenString string) (string, string, error) {
	return s.validate(tokenString, "refresh")
}

func (s *TokenService) validate(tokenString, wantType string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token")
	}
	if t, _ := claims["type"].(string); t != wantType {
		return "", "", errors.New("invalid token type")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return "", "", errors.New("invalid token claims")
	}
	return sub, role, nil
}

// ResolveActor resolves the full acting-party profile for a validated token
// subject using the resolver registered for its kind.
func (s *TokenService) ResolveActor(ctx context.Context, id, role string) (*models.Actor, error) {
	resolver, ok := s.resolvers[role]
	if !ok {
		return nil, fmt.Errorf("unknown actor kind %q", role)
	}
	return resolver.ResolveProfile(ctx, id)
}
