package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/platform/config"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

const issuer = "taskhub"

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity returns the identity the token was issued to.
func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Email: c.Email}
}

type TokenService struct {
	config     config.JWTConfig
	federation config.FederationConfig
}

func NewTokenService(cfg config.JWTConfig, federation config.FederationConfig) *TokenService {
	return &TokenService{config: cfg, federation: federation}
}

func (s *TokenService) GenerateAccessToken(grant *provider.Grant) (string, error) {
	return s.sign(grant, TokenAccess, s.config.AccessTokenTTL)
}

func (s *TokenService) GenerateRefreshToken(grant *provider.Grant) (string, error) {
	return s.sign(grant, TokenRefresh, s.config.RefreshTokenTTL)
}

func (s *TokenService) sign(grant *provider.Grant, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    grant.Identity.ID,
		Email:     grant.Identity.Email,
		SessionID: grant.SessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.Identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken parses a token issued by this service and checks it is of the
// expected type.
func (s *TokenService) ValidateToken(tokenString, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, hmacKey(s.config.Secret), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// VerifyIDToken checks an id token minted by the configured federation broker
// and returns its identity claims.
func (s *TokenService) VerifyIDToken(idToken string) (provider.FederatedClaims, error) {
	if s.federation.Secret == "" {
		return provider.FederatedClaims{}, errors.New("federated sign-in is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.federation.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.federation.Issuer))
	}

	token, err := jwt.ParseWithClaims(idToken, &idTokenClaims{}, hmacKey(s.federation.Secret), opts...)
	if err != nil {
		return provider.FederatedClaims{}, err
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return provider.FederatedClaims{}, errors.New("invalid id token")
	}
	if claims.Subject == "" {
		return provider.FederatedClaims{}, errors.New("id token has no subject")
	}

	return provider.FederatedClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}
}
