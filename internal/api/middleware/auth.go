package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/auth"
	"taskhub/internal/platform/provider"
)

// DeviceHeader names the client device so selections are kept per device.
const DeviceHeader = "X-Device-ID"

func DeviceID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(DeviceHeader)); id != "" {
		return id
	}
	return workspace.DefaultDevice
}

type AuthMiddleware struct {
	tokenSvc   *auth.TokenService
	identities provider.Identities
	workspaces *workspace.Cache
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, identities provider.Identities, workspaces *workspace.Cache) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, identities: identities, workspaces: workspaces}
}

// Handle authenticates the bearer access token, rejects revoked sessions and
// attaches the caller's workspace to the request.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1], auth.TokenAccess)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		active, err := m.identities.SessionActive(r.Context(), claims.SessionID)
		if err != nil {
			log.Error().Err(err).Str("session_id", claims.SessionID).Msg("session lookup failed")
			errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeUnavailable, "Could not verify session", nil)
			return
		}
		if !active {
			m.workspaces.Forget(claims.SessionID)
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Session has been signed out", nil)
			return
		}

		ws := m.workspaces.Resume(provider.Grant{Identity: claims.Identity(), SessionID: claims.SessionID}, DeviceID(r))

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Workspace, ws)
		ctx = audit.WithActor(ctx, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}
