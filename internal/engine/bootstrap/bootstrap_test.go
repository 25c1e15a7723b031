package bootstrap

import (
	"context"
	"testing"
	"time"

	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/records"
	"taskhub/internal/engine/selector"
	"taskhub/internal/engine/session"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/preferences"
	"taskhub/internal/platform/provider"
	"taskhub/internal/platform/provider/providertest"
)

type harness struct {
	provider    *providertest.Faulty
	prefs       *preferences.MemoryStore
	memberships *membership.Service
	session     *session.Store
	selector    *selector.Selector
	tasks       *records.Tasks
	projects    *records.Projects
	boot        *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := providertest.NewFaulty(providertest.New(t))
	prefs := preferences.NewMemoryStore()
	svc := membership.NewService(p, membership.NewResolver(p), config.InvitationsConfig{DefaultTTL: time.Hour})

	sess := session.NewStore(p, nil)
	sel := selector.New(prefs, sess, "laptop")
	tasks := records.NewTasks(p, sess, sel)
	projects := records.NewProjects(p, sess, sel, tasks)

	return &harness{
		provider:    p,
		prefs:       prefs,
		memberships: svc,
		session:     sess,
		selector:    sel,
		tasks:       tasks,
		projects:    projects,
		boot:        New(sess, svc, sel, tasks, projects),
	}
}

func (h *harness) signUp(t *testing.T, email string) models.Identity {
	t.Helper()
	id, err := h.session.SignUp(context.Background(), email, "password1", session.ProfileFields{})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (h *harness) ready(t *testing.T, org string) {
	t.Helper()
	for name, s := range map[string]interface{ Organization() (string, bool) }{"tasks": h.tasks, "projects": h.projects} {
		got, ok := s.Organization()
		if org == "" && ok {
			t.Errorf("expected %s store not ready, got %s", name, got)
		}
		if org != "" && got != org {
			t.Errorf("expected %s store ready for %s, got %q", name, org, got)
		}
	}
}

func TestRun_NeedsAuth(t *testing.T) {
	h := newHarness(t)

	res, err := h.boot.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != NeedsAuth {
		t.Errorf("expected NeedsAuth, got %s", res.Status)
	}
	h.ready(t, "")
}

func TestRun_EmptyMembershipRouting(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ada@example.com")

	if err := h.selector.SetCurrent("org_leftover"); err != nil {
		t.Fatal(err)
	}

	res, err := h.boot.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != NeedsOrganization || len(res.Organizations) != 0 || res.Current != nil {
		t.Errorf("expected NeedsOrganization with nothing selected, got %+v", res)
	}
	if _, ok := h.selector.GetCurrent(); ok {
		t.Error("expected leftover selection to be cleared")
	}
	h.ready(t, "")
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "ada@example.com")

	first, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "First"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "Second"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Current.ID == first.Current.ID {
		t.Fatal("expected the new organization to be selected")
	}

	if _, err := h.tasks.List(ctx); err != nil {
		t.Fatal(err)
	}

	a, err := h.boot.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.boot.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != Ready || b.Status != Ready || a.Current.ID != b.Current.ID || len(a.Organizations) != len(b.Organizations) {
		t.Errorf("expected identical results, got %+v and %+v", a, b)
	}
	if a.Current.ID != second.Current.ID {
		t.Errorf("expected persisted selection %s to be kept, got %s", second.Current.ID, a.Current.ID)
	}
	if _, ok := h.tasks.Snapshot(); !ok {
		t.Error("expected a repeated bootstrap not to drop cached data")
	}
	h.ready(t, second.Current.ID)
}

func TestRun_StaleSelectionSelfHeals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "ada@example.com")

	res, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	if err := h.selector.SetCurrent("org_i_left_long_ago"); err != nil {
		t.Fatal(err)
	}

	healed, err := h.boot.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if healed.Status != Ready || healed.Current.ID != res.Current.ID {
		t.Errorf("expected fallback to %s, got %+v", res.Current.ID, healed)
	}
	if current, _ := h.selector.GetCurrent(); current != res.Current.ID {
		t.Errorf("expected healed selection to be persisted, got %s", current)
	}
	h.ready(t, res.Current.ID)
}

func TestRun_ResolutionFailureLeavesStoresNotReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "ada@example.com")

	if _, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "Acme"}); err != nil {
		t.Fatal(err)
	}

	h.provider.FailWhen(func(c providertest.Call) error {
		if c.Collection == provider.Members {
			return context.DeadlineExceeded
		}
		return nil
	})

	_, err := h.boot.Run(ctx)
	var resErr *errors.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	h.ready(t, "")

	h.provider.FailWhen(nil)
	if res, err := h.boot.Run(ctx); err != nil || res.Status != Ready {
		t.Errorf("expected retry to succeed, got %+v, %v", res, err)
	}
}

func TestRun_CancelledContextAppliesNothing(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ada@example.com")

	res, err := h.boot.CreateOrganization(context.Background(), membership.OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.boot.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	h.ready(t, res.Current.ID)
}

func TestSwitchOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "ada@example.com")

	first, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "First"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "Second"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.boot.SwitchOrganization(ctx, "org_not_mine"); err != errors.ErrNotMember {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	h.ready(t, second.Current.ID)

	res, err := h.boot.SwitchOrganization(ctx, first.Current.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Current.ID != first.Current.ID {
		t.Errorf("expected %s, got %s", first.Current.ID, res.Current.ID)
	}
	h.ready(t, first.Current.ID)
}

func TestAcceptAndLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin := h.signUp(t, "admin@example.com")
	created, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := h.memberships.CreateInvitation(ctx, admin, created.Current.ID, membership.InvitationFields{})
	if err != nil {
		t.Fatal(err)
	}
	key := preferences.CurrentOrganizationKey(admin.ID, "laptop")
	if v, ok, _ := h.prefs.Get(key); !ok || v != created.Current.ID {
		t.Fatalf("expected %s persisted before sign-out, got %q", created.Current.ID, v)
	}
	if err := h.session.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	h.ready(t, "")
	if v, ok, _ := h.prefs.Get(key); ok {
		t.Errorf("expected sign-out to clear the selection, found %s", v)
	}

	h.signUp(t, "bob@example.com")
	res, err := h.boot.Run(ctx)
	if err != nil || res.Status != NeedsOrganization {
		t.Fatalf("expected NeedsOrganization, got %+v, %v", res, err)
	}

	joined, err := h.boot.AcceptInvitation(ctx, inv.Code)
	if err != nil {
		t.Fatal(err)
	}
	if joined.Status != Ready || joined.Current.ID != created.Current.ID {
		t.Errorf("expected to land in %s, got %+v", created.Current.ID, joined)
	}

	left, err := h.boot.LeaveOrganization(ctx, created.Current.ID)
	if err != nil {
		t.Fatal(err)
	}
	if left.Status != NeedsOrganization {
		t.Errorf("expected NeedsOrganization after leaving, got %s", left.Status)
	}
	h.ready(t, "")
}

func TestOperationsRequireIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var stateErr *errors.StateError
	if _, err := h.boot.CreateOrganization(ctx, membership.OrganizationFields{Name: "x"}); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError, got %v", err)
	}
	if _, err := h.boot.SwitchOrganization(ctx, "org_1"); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError, got %v", err)
	}
	if _, err := h.boot.AcceptInvitation(ctx, "CODE2345"); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError, got %v", err)
	}
	if _, err := h.boot.LeaveOrganization(ctx, "org_1"); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError, got %v", err)
	}
}
