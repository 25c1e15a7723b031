package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/platform/config"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

func newTestService() *TokenService {
	return NewTokenService(
		config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		config.FederationConfig{Issuer: "https://id.example.com", Secret: "broker-secret"},
	)
}

func TestTokenService_RoundTrip(t *testing.T) {
	s := newTestService()
	grant := &provider.Grant{Identity: models.Identity{ID: "usr_1", Email: "a@example.com"}, SessionID: "ses_1"}

	access, err := s.GenerateAccessToken(grant)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := s.ValidateToken(access, TokenAccess)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Identity() != grant.Identity || claims.SessionID != "ses_1" {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := s.ValidateToken(access, TokenRefresh); err != ErrWrongTokenType {
		t.Errorf("expected ErrWrongTokenType, got %v", err)
	}

	other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Minute}, config.FederationConfig{})
	if _, err := other.ValidateToken(access, TokenAccess); err == nil {
		t.Error("expected signature mismatch to fail")
	}
}

func signIDToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestTokenService_VerifyIDToken(t *testing.T) {
	s := newTestService()
	exp := time.Now().Add(time.Minute).Unix()

	tests := []struct {
		name    string
		secret  string
		claims  jwt.MapClaims
		wantErr bool
	}{
		{
			name:   "Valid",
			secret: "broker-secret",
			claims: jwt.MapClaims{"iss": "https://id.example.com", "sub": "g|1", "email": "a@example.com",
				"name": "Ada Lovelace", "picture": "https://img/a.png", "exp": exp},
		},
		{
			name:    "Wrong Issuer",
			secret:  "broker-secret",
			claims:  jwt.MapClaims{"iss": "https://evil.example.com", "sub": "g|1", "exp": exp},
			wantErr: true,
		},
		{
			name:    "Wrong Secret",
			secret:  "nope",
			claims:  jwt.MapClaims{"iss": "https://id.example.com", "sub": "g|1", "exp": exp},
			wantErr: true,
		},
		{
			name:    "No Expiry",
			secret:  "broker-secret",
			claims:  jwt.MapClaims{"iss": "https://id.example.com", "sub": "g|1"},
			wantErr: true,
		},
		{
			name:    "No Subject",
			secret:  "broker-secret",
			claims:  jwt.MapClaims{"iss": "https://id.example.com", "exp": exp},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.VerifyIDToken(signIDToken(t, tt.secret, tt.claims))
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyIDToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (got.Subject != "g|1" || got.Name != "Ada Lovelace" || got.Picture != "https://img/a.png") {
				t.Errorf("unexpected claims %+v", got)
			}
		})
	}
}
