package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/engine/records"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/auth"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}

// decodeFields reads a raw JSON object, turning whole numbers into int64 so
// they are stored as integers.
func decodeFields(w http.ResponseWriter, r *http.Request) (records.Fields, bool) {
	var fields records.Fields
	if !decodeBody(w, r, &fields) {
		return nil, false
	}
	for k, v := range fields {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			fields[k] = int64(f)
		}
	}
	return fields, true
}

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}

func claimsFrom(r *http.Request) *auth.Claims {
	return r.Context().Value(apiContext.Claims).(*auth.Claims)
}

func workspaceFrom(r *http.Request) *workspace.Workspace {
	return r.Context().Value(apiContext.Workspace).(*workspace.Workspace)
}

// currentOrganization returns the validated organization of the caller or
// writes a NOT_READY error.
func currentOrganization(w http.ResponseWriter, r *http.Request) (string, bool) {
	org, ok := workspaceFrom(r).Current()
	if !ok {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeNotReady, "No organization selected", nil)
	}
	return org, ok
}
