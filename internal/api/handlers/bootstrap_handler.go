package handlers

import (
	"net/http"

	"taskhub/internal/pkg/errors"
)

type BootstrapHandler struct{}

func NewBootstrapHandler() *BootstrapHandler {
	return &BootstrapHandler{}
}

// Get runs the bootstrap sequence for the caller's device and reports where
// the client should route: sign-in, organization onboarding or the app.
func (h *BootstrapHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := workspaceFrom(r).Bootstrap.Run(r.Context())
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
