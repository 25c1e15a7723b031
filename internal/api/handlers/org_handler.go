package handlers

import (
	"net/http"
	"strconv"

	"taskhub/internal/engine/membership"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/models"
)

type OrgHandler struct {
	memberships *membership.Service
	auditLog    *audit.Logger
}

func NewOrgHandler(memberships *membership.Service, auditLog *audit.Logger) *OrgHandler {
	return &OrgHandler{memberships: memberships, auditLog: auditLog}
}

type OrganizationsResponse struct {
	Organizations []*models.Organization `json:"organizations"`
	CurrentID     string                 `json:"current_id,omitempty"`
}

func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	orgs, err := h.memberships.Resolver().ListOrganizationsForUser(r.Context(), claims.UserID)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	current, _ := workspaceFrom(r).Current()
	writeJSON(w, http.StatusOK, OrganizationsResponse{Organizations: orgs, CurrentID: current})
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req membership.OrganizationFields
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := workspaceFrom(r).Bootstrap.CreateOrganization(r.Context(), req)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrgHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string `json:"organization_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrganizationID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "organization_id is required", nil)
		return
	}

	res, err := workspaceFrom(r).Bootstrap.SwitchOrganization(r.Context(), req.OrganizationID)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrgHandler) Members(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	members, err := h.memberships.ListMembers(r.Context(), org)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (h *OrgHandler) Leave(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	res, err := workspaceFrom(r).Bootstrap.LeaveOrganization(r.Context(), org)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Audit returns the newest lifecycle events of the current organization,
// ?limit= of them (default 50, at most 200).
func (h *OrgHandler) Audit(w http.ResponseWriter, r *http.Request) {
	org, ok := currentOrganization(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditLog.List(r.Context(), org, limit)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*audit.Entry{"entries": entries})
}
