package handlers

import (
	"net/http"
	"strconv"
	"time"

	"taskhub/internal/engine/membership"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
)

type InvitationHandler struct {
	memberships *membership.Service
}

func NewInvitationHandler(memberships *membership.Service) *InvitationHandler {
	return &InvitationHandler{memberships: memberships}
}

type CreateInvitationRequest struct {
	membership.InvitationFields
	TTLHours int `json:"ttl_hours"`
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TTLHours < 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "ttl_hours must be positive", nil)
		return
	}
	fields := req.InvitationFields
	fields.TTL = time.Duration(req.TTLHours) * time.Hour

	inv, err := h.memberships.CreateInvitation(r.Context(), claimsFrom(r).Identity(), org, fields)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	invs, err := h.memberships.ListInvitations(r.Context(), org)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*models.Invitation{"invitations": invs})
}

func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	if err := h.memberships.RevokeInvitation(r.Context(), org, param(r, "id")); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvitationHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "size must be an integer", nil)
			return
		}
		size = n
	}

	inv, err := h.memberships.GetInvitation(r.Context(), org, param(r, "id"))
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	png, err := membership.InvitationQRCode(inv.Code, size)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Accept redeems a join code for the caller and bootstraps into the joined
// organization.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "code is required", nil)
		return
	}

	res, err := workspaceFrom(r).Bootstrap.AcceptInvitation(r.Context(), req.Code)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
