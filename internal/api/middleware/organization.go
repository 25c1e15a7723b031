package middleware

import (
	"net/http"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/engine/bootstrap"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/pkg/errors"
)

// RequireOrganization lets a request through only once the caller's
// workspace is scoped to a validated organization that is still the persisted
// selection. It bootstraps on first use and whenever another session on the
// same device has moved the selection. It must run after AuthMiddleware.
func RequireOrganization(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := r.Context().Value(apiContext.Workspace).(*workspace.Workspace)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No workspace for request", nil)
			return
		}

		if _, ready := ws.Current(); !ready {
			res, err := ws.Bootstrap.Run(r.Context())
			if err != nil {
				errors.WriteAppError(w, err)
				return
			}
			if res.Status != bootstrap.Ready {
				errors.WriteError(w, http.StatusConflict, errors.ErrCodeNotReady, "No organization selected",
					map[string]string{"status": string(res.Status)})
				return
			}
		}

		next(w, r)
	}
}
