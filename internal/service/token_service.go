package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/infrastructure"
)

const accessTokenType = "access"

// TokenService verifies access tokens issued by the identity service
type TokenService struct {
	jwtConfig *infrastructure.JWTConfig
	now       func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(jwtConfig *infrastructure.JWTConfig) *TokenService {
	return &TokenService{
		jwtConfig: jwtConfig,
		now:       time.Now,
	}
}

// ValidateAccessToken validates an access token and returns the user ID
func (s *TokenService) ValidateAccessToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.validateToken(tokenString)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != accessTokenType {
		return uuid.Nil, domain.ErrUnauthorized
	}

	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return userID, nil
}

// IssueAccessToken signs an access token for userID. Used by local tooling
// and tests; production tokens come from the identity service.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"type": accessTokenType,
		"iat":  now.Unix(),
		"exp":  expiry.Unix(),
		"iss":  s.jwtConfig.Issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtConfig.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// validateToken validates a JWT token and returns its claims
func (s *TokenService) validateToken(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.jwtConfig.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwtConfig.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return []byte(s.jwtConfig.SecretKey), nil
	}, opts...)

	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}
