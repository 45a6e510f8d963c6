package service

import (
	"fmt"
	"time"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService using HS256 JWT. Access
// tokens carry the user's scopes and tier; refresh tokens carry only the
// subject and a type marker so they cannot be replayed as access tokens.
type JWTTokenService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, accessExpiry, refreshExpiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        issuer,
	}
}

// Generate creates a signed access + refresh token pair for the user.
func (s *JWTTokenService) Generate(user *domain.User) (*ports.TokenPair, error) {
	now := time.Now()
	accessExpiresAt := now.Add(s.accessExpiry)
	refreshExpiresAt := now.Add(s.refreshExpiry)

	accessClaims := jwt.MapClaims{
		"sub":    user.ID.String(),
		"phone":  user.PhoneNumber,
		"type":   string(user.Type),
		"scopes": user.Scopes,
		"token":  "access",
		"iat":    now.Unix(),
		"exp":    accessExpiresAt.Unix(),
		"iss":    s.issuer,
	}
	if user.BusinessID != nil {
		accessClaims["business_id"] = user.BusinessID.String()
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refreshClaims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"token": "refresh",
		"iat":   now.Unix(),
		"exp":   refreshExpiresAt.Unix(),
		"iss":   s.issuer,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &ports.TokenPair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		TokenType:     "Bearer",
		AccessExpiry:  accessExpiresAt,
		RefreshExpiry: refreshExpiresAt,
	}, nil
}

// Validate parses and validates an access token, returning the claims.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if kind, _ := claims["token"].(string); kind != "access" {
		return nil, fmt.Errorf("not an access token")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	parsed := &ports.TokenClaims{UserID: userID}
	parsed.PhoneNumber, _ = claims["phone"].(string)
	if tier, ok := claims["type"].(string); ok {
		parsed.Type = domain.UserType(tier)
	}
	if raw, ok := claims["business_id"].(string); ok {
		if businessID, err := uuid.Parse(raw); err == nil {
			parsed.BusinessID = &businessID
		}
	}
	if rawScopes, ok := claims["scopes"].([]interface{}); ok {
		for _, raw := range rawScopes {
			if scope, ok := raw.(string); ok {
				parsed.Scopes = append(parsed.Scopes, scope)
			}
		}
	}

	return parsed, nil
}

// ValidateRefresh parses a refresh token and returns the subject user ID.
func (s *JWTTokenService) ValidateRefresh(tokenString string) (uuid.UUID, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if kind, _ := claims["token"].(string); kind != "refresh" {
		return uuid.Nil, fmt.Errorf("not a refresh token")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in token: %w", err)
	}
	return userID, nil
}

func (s *JWTTokenService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
