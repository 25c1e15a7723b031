package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"taskhub/internal/api/middleware"
	"taskhub/internal/engine/bootstrap"
	"taskhub/internal/engine/session"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/auth"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

type AuthHandler struct {
	workspaces *workspace.Cache
	identities provider.Identities
	tokenSvc   *auth.TokenService
}

func NewAuthHandler(workspaces *workspace.Cache, identities provider.Identities, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{workspaces: workspaces, identities: identities, tokenSvc: tokenSvc}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	session.ProfileFields
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FederatedRequest struct {
	IDToken string `json:"id_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	User         models.Identity   `json:"user"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	Bootstrap    *bootstrap.Result `json:"bootstrap,omitempty"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws := h.workspaces.New(middleware.DeviceID(r))
	if _, err := ws.Session.SignUp(r.Context(), req.Email, req.Password, req.ProfileFields); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	h.signedIn(w, r, ws, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws := h.workspaces.New(middleware.DeviceID(r))
	if _, err := ws.Session.SignIn(r.Context(), req.Email, req.Password); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	h.signedIn(w, r, ws, http.StatusOK)
}

func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req FederatedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "id_token is required", nil)
		return
	}

	ws := h.workspaces.New(middleware.DeviceID(r))
	if _, err := ws.Session.SignInWithProvider(r.Context(), req.IDToken); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	h.signedIn(w, r, ws, http.StatusOK)
}

// signedIn caches the workspace, issues tokens and bootstraps. A bootstrap
// failure does not undo the sign-in; the client retries GET /bootstrap.
func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, status int) {
	grant, _ := ws.Session.Grant()
	h.workspaces.Put(ws)

	accessToken, err := h.tokenSvc.GenerateAccessToken(&grant)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}
	refreshToken, err := h.tokenSvc.GenerateRefreshToken(&grant)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	res, err := ws.Bootstrap.Run(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("user_id", grant.Identity.ID).Msg("bootstrap after sign-in failed")
	}

	writeJSON(w, status, AuthResponse{
		User:         grant.Identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Bootstrap:    res,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	claims, err := h.tokenSvc.ValidateToken(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired refresh token", nil)
		return
	}

	active, err := h.identities.SessionActive(r.Context(), claims.SessionID)
	if err != nil {
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeUnavailable, "Could not verify session", nil)
		return
	}
	if !active {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Session has been signed out", nil)
		return
	}

	grant := provider.Grant{Identity: claims.Identity(), SessionID: claims.SessionID}
	accessToken, err := h.tokenSvc.GenerateAccessToken(&grant)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: grant.Identity, AccessToken: accessToken})
}

// Logout signs the session out on every device.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	ws := workspaceFrom(r)

	err := ws.Session.SignOut(r.Context())
	h.workspaces.Forget(claims.SessionID)
	if err != nil {
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeUnavailable, "Sign-out could not be confirmed", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
