package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/session"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/preferences"
	"taskhub/internal/platform/provider/providertest"
)

func TestRequireOrganization_FollowsSharedSelection(t *testing.T) {
	p := providertest.New(t)
	deps := workspace.Deps{
		Provider:    p,
		Preferences: preferences.NewMemoryStore(),
		Memberships: membership.NewService(p, membership.NewResolver(p), config.InvitationsConfig{DefaultTTL: time.Hour}),
	}
	ctx := context.Background()

	laptop := workspace.New(deps, "")
	if _, err := laptop.Session.SignUp(ctx, "ada@example.com", "lovelace1", session.ProfileFields{}); err != nil {
		t.Fatal(err)
	}
	first, err := laptop.Bootstrap.CreateOrganization(ctx, membership.OrganizationFields{Name: "First"})
	if err != nil {
		t.Fatal(err)
	}

	phone := workspace.New(deps, "")
	if _, err := phone.Session.SignIn(ctx, "ada@example.com", "lovelace1"); err != nil {
		t.Fatal(err)
	}
	if _, err := phone.Bootstrap.Run(ctx); err != nil {
		t.Fatal(err)
	}

	var served string
	handler := RequireOrganization(func(w http.ResponseWriter, r *http.Request) {
		ws := r.Context().Value(apiContext.Workspace).(*workspace.Workspace)
		served, _ = ws.Current()
		w.WriteHeader(http.StatusNoContent)
	})
	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Workspace, laptop))
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	tests := []struct {
		name   string
		change func(t *testing.T) string
		status int
	}{
		{
			name:   "unchanged selection",
			change: func(t *testing.T) string { return first.Current.ID },
			status: http.StatusNoContent,
		},
		{
			name: "other session created an organization",
			change: func(t *testing.T) string {
				res, err := phone.Bootstrap.CreateOrganization(ctx, membership.OrganizationFields{Name: "Second"})
				if err != nil {
					t.Fatal(err)
				}
				return res.Current.ID
			},
			status: http.StatusNoContent,
		},
		{
			name: "other session left every organization",
			change: func(t *testing.T) string {
				res, err := phone.Bootstrap.Run(ctx)
				if err != nil {
					t.Fatal(err)
				}
				for _, org := range res.Organizations {
					if _, err := phone.Bootstrap.LeaveOrganization(ctx, org.ID); err != nil {
						t.Fatal(err)
					}
				}
				return ""
			},
			status: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			served = ""
			want := tt.change(t)

			rec := serve()
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if served != want {
				t.Errorf("expected handler scoped to %q, got %q", want, served)
			}
		})
	}
}
