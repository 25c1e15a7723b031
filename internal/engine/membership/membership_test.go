package membership

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
	"taskhub/internal/platform/provider/providertest"
)

func newTestService(t *testing.T, records provider.Records) *Service {
	t.Helper()
	return NewService(records, NewResolver(records), config.InvitationsConfig{DefaultTTL: time.Hour, DefaultMaxUses: 1})
}

func seedOrg(t *testing.T, p provider.Records, id string) {
	t.Helper()
	_, err := p.Create(context.Background(), provider.Organizations, models.Document{
		"id": id, "name": id, "plan": "free", "subscription_status": "active", "created_at": int64(1), "updated_at": int64(1),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func seedMembership(t *testing.T, p provider.Records, id, orgID, userID string, status models.MembershipStatus, createdAt int64) {
	t.Helper()
	_, err := p.Create(context.Background(), provider.Members, models.Document{
		"id": id, "organization_id": orgID, "user_id": userID, "role": "member", "status": string(status),
		"created_at": createdAt, "updated_at": createdAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolver_ListOrganizationsForUser(t *testing.T) {
	p := providertest.New(t)
	r := NewResolver(p)
	ctx := context.Background()

	seedOrg(t, p, "org_a")
	seedOrg(t, p, "org_b")
	seedOrg(t, p, "org_c")
	seedMembership(t, p, "mem_1", "org_a", "usr_1", models.MembershipActive, 10)
	seedMembership(t, p, "mem_3", "org_b", "usr_1", models.MembershipActive, 20)
	seedMembership(t, p, "mem_2", "org_c", "usr_1", models.MembershipActive, 20)
	seedMembership(t, p, "mem_4", "org_gone", "usr_1", models.MembershipActive, 30)
	seedMembership(t, p, "mem_5", "org_a", "usr_2", models.MembershipRemoved, 40)

	orgs, err := r.ListOrganizationsForUser(ctx, "usr_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var got []string
	for _, o := range orgs {
		got = append(got, o.ID)
	}
	want := []string{"org_c", "org_b", "org_a"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	none, err := r.ListOrganizationsForUser(ctx, "usr_2")
	if err != nil || len(none) != 0 {
		t.Errorf("expected no organizations and no error for removed member, got %v, %v", none, err)
	}
}

func TestResolver_ProviderFailureIsResolutionError(t *testing.T) {
	faulty := providertest.NewFaulty(providertest.New(t))
	r := NewResolver(faulty)

	faulty.FailWhen(func(c providertest.Call) error {
		if c.Collection == provider.Members {
			return context.DeadlineExceeded
		}
		return nil
	})

	_, err := r.ListOrganizationsForUser(context.Background(), "usr_1")
	var resErr *errors.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}

func TestService_CreateOrganization(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	if _, err := s.CreateOrganization(ctx, "usr_1", OrganizationFields{Name: "  "}); err == nil {
		t.Error("expected blank name to be rejected")
	}

	org, err := s.CreateOrganization(ctx, "usr_1", OrganizationFields{Name: "Acme", TeamSize: "2-10"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if org.Plan != models.PlanFree || org.SubscriptionStatus != models.SubscriptionStatusActive {
		t.Errorf("expected free/active defaults, got %s/%s", org.Plan, org.SubscriptionStatus)
	}

	role, err := s.Resolver().Role(ctx, "usr_1", org.ID)
	if err != nil || role != models.RoleAdmin {
		t.Errorf("expected creator to be admin, got %v, %v", role, err)
	}

	if _, err := s.Resolver().Role(ctx, "usr_2", org.ID); err != errors.ErrNotMember {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestService_SingleActiveMembership(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	joiner := models.Identity{ID: "usr_join", Email: "join@example.com"}

	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{MaxUses: 5, Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	first, err := s.AcceptInvitation(ctx, inv.Code, joiner)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if first.Role != models.RoleViewer {
		t.Errorf("expected invitation role, got %s", first.Role)
	}

	if _, err := s.AcceptInvitation(ctx, inv.Code, joiner); err != errors.ErrAlreadyMember {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}

	if err := s.Leave(ctx, joiner.ID, org.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := s.Leave(ctx, joiner.ID, org.ID); err != errors.ErrNotMember {
		t.Errorf("expected ErrNotMember on second leave, got %v", err)
	}

	again, err := s.AcceptInvitation(ctx, inv.Code, joiner)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected the removed membership %s to be reactivated, got %s", first.ID, again.ID)
	}

	docs, err := p.Read(ctx, provider.Members, provider.Filter{"organization_id": org.ID, "user_id": joiner.ID, "status": "active"})
	if err != nil || len(docs) != 1 {
		t.Errorf("expected exactly one active membership, got %d (%v)", len(docs), err)
	}

	members, err := s.ListMembers(ctx, org.ID)
	if err != nil || len(members) != 2 {
		t.Errorf("expected two active members, got %d (%v)", len(members), err)
	}
}

func TestService_AcceptInvitationRejections(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	targeted, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{Email: "Bob@Example.com"})
	if err != nil {
		t.Fatal(err)
	}
	revoked, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeInvitation(ctx, org.ID, revoked.ID); err != nil {
		t.Fatal(err)
	}
	single, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{Code: "TWEN-TY"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AcceptInvitation(ctx, "twen ty", models.Identity{ID: "usr_x", Email: "x@example.com"}); err != nil {
		t.Fatalf("accept normalized custom code: %v", err)
	}
	expired, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Update(ctx, provider.Invitations, expired.ID, models.Document{"expires_at": int64(1)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		code  string
		email string
	}{
		{"Unknown Code", "NOPE2345", "bob@example.com"},
		{"Email Mismatch", targeted.Code, "carol@example.com"},
		{"Revoked", revoked.Code, "bob@example.com"},
		{"Used Up", single.Code, "bob@example.com"},
		{"Expired", expired.Code, "bob@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AcceptInvitation(ctx, tt.code, models.Identity{ID: "usr_bob", Email: tt.email})
			if err != errors.ErrInvitationInvalid {
				t.Errorf("expected ErrInvitationInvalid, got %v", err)
			}
		})
	}

	if _, err := s.AcceptInvitation(ctx, targeted.Code, models.Identity{ID: "usr_bob", Email: "bob@example.com"}); err != nil {
		t.Errorf("expected targeted invitation to work for its email, got %v", err)
	}
}

func TestService_CreateInvitationValidation(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.CreateInvitation(ctx, models.Identity{ID: "usr_outsider"}, org.ID, InvitationFields{}); err != errors.ErrNotMember {
		t.Errorf("expected outsider to be rejected, got %v", err)
	}

	tests := []struct {
		name   string
		fields InvitationFields
	}{
		{"Bad Role", InvitationFields{Role: "owner"}},
		{"Bad Email", InvitationFields{Email: "not-an-email"}},
		{"Bad Code", InvitationFields{Code: "no"}},
		{"Negative Uses", InvitationFields{MaxUses: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *errors.ValidationError
			if _, err := s.CreateInvitation(ctx, admin, org.ID, tt.fields); !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	inv, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{})
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Code) != codeLength || !isValidCode(inv.Code) {
		t.Errorf("unexpected generated code %q", inv.Code)
	}
	if _, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{Code: inv.Code}); err == nil {
		t.Error("expected duplicate custom code to be rejected")
	}
	if _, err := s.GetInvitation(ctx, "org_other", inv.ID); err == nil {
		t.Error("expected invitation lookup to be scoped to its organization")
	}
}

func TestService_ExpireInvitations(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{}); err != nil {
		t.Fatal(err)
	}

	n, err := s.ExpireInvitations(ctx, time.Now())
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to expire yet, got %d (%v)", n, err)
	}

	n, err = s.ExpireInvitations(ctx, time.Now().Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one expiry, got %d (%v)", n, err)
	}

	invs, err := s.ListInvitations(ctx, org.ID)
	if err != nil || len(invs) != 1 || invs[0].Status != models.InvitationExpired {
		t.Errorf("expected invitation to be expired, got %+v (%v)", invs, err)
	}
}

func TestInvitationQRCode(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Default Size", 0, false},
		{"Valid Size", 512, false},
		{"Size Too Small", 64, true},
		{"Size Too Large", 4096, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InvitationQRCode("ABCD2345", tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("InvitationQRCode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(got) == 0 {
				t.Errorf("InvitationQRCode() returned empty bytes")
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" abcd-2345 "); got != "ABCD2345" {
		t.Errorf("expected ABCD2345, got %s", got)
	}
}

type recordingAuditor struct {
	actions []string
}

func (r *recordingAuditor) Log(_ context.Context, e audit.Event) {
	r.actions = append(r.actions, e.Action)
}

func TestService_AuditsLifecycle(t *testing.T) {
	p := providertest.New(t)
	rec := &recordingAuditor{}
	svc := newTestService(t, p).WithAudit(rec)
	ctx := context.Background()

	owner := models.Identity{ID: "usr_owner", Email: "owner@example.com"}
	guest := models.Identity{ID: "usr_guest", Email: "guest@example.com"}

	org, err := svc.CreateOrganization(ctx, owner.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	inv, err := svc.CreateInvitation(ctx, owner, org.ID, InvitationFields{})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := svc.AcceptInvitation(ctx, inv.Code, guest); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Leave(ctx, guest.ID, org.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := svc.RevokeInvitation(ctx, org.ID, inv.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	want := []string{
		audit.ActionOrganizationCreated,
		audit.ActionInvitationCreated,
		audit.ActionMemberJoined,
		audit.ActionMemberLeft,
		audit.ActionInvitationRevoked,
	}
	if fmt.Sprint(rec.actions) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, rec.actions)
	}
}

func TestService_ConcurrentAcceptsRespectMaxUses(t *testing.T) {
	p := providertest.New(t)
	s := newTestService(t, p)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		maxUses int
		callers int
	}{
		{"Single Use", 1, 20},
		{"Three Uses", 3, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{MaxUses: tt.maxUses})
			if err != nil {
				t.Fatal(err)
			}

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					who := models.Identity{ID: fmt.Sprintf("usr_%s_%d", inv.ID, i), Email: fmt.Sprintf("u%d@example.com", i)}
					_, err := s.AcceptInvitation(ctx, inv.Code, who)
					if err == nil {
						mu.Lock()
						accepted++
						mu.Unlock()
						return
					}
					if err != errors.ErrInvitationInvalid {
						t.Errorf("caller %d: expected ErrInvitationInvalid, got %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			if accepted != tt.maxUses {
				t.Errorf("expected %d accepts, got %d", tt.maxUses, accepted)
			}
			doc, err := p.ReadOne(ctx, provider.Invitations, inv.ID)
			if err != nil {
				t.Fatal(err)
			}
			if doc["uses"] != int64(tt.maxUses) {
				t.Errorf("expected uses %d, got %v", tt.maxUses, doc["uses"])
			}
		})
	}
}

func TestService_AcceptInvitationGivesBackUseOnFailure(t *testing.T) {
	faulty := providertest.NewFaulty(providertest.New(t))
	s := newTestService(t, faulty)
	ctx := context.Background()

	admin := models.Identity{ID: "usr_admin", Email: "admin@example.com"}
	guest := models.Identity{ID: "usr_guest", Email: "guest@example.com"}
	org, err := s.CreateOrganization(ctx, admin.ID, OrganizationFields{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := s.CreateInvitation(ctx, admin, org.ID, InvitationFields{MaxUses: 1})
	if err != nil {
		t.Fatal(err)
	}

	uses := func(t *testing.T) interface{} {
		t.Helper()
		doc, err := faulty.ReadOne(ctx, provider.Invitations, inv.ID)
		if err != nil {
			t.Fatal(err)
		}
		return doc["uses"]
	}

	tests := []struct {
		name     string
		who      models.Identity
		failWhen func(providertest.Call) error
		want     error
	}{
		{
			name: "Member Write Fails",
			who:  guest,
			failWhen: func(c providertest.Call) error {
				if c.Op == "create" && c.Collection == provider.Members {
					return context.DeadlineExceeded
				}
				return nil
			},
			want: context.DeadlineExceeded,
		},
		{
			name: "Concurrent Duplicate Membership",
			who:  guest,
			failWhen: func(c providertest.Call) error {
				if c.Op == "create" && c.Collection == provider.Members {
					return fmt.Errorf("create %s: %w", c.Collection, provider.ErrDuplicate)
				}
				return nil
			},
			want: errors.ErrAlreadyMember,
		},
		{
			name: "Already Member",
			who:  admin,
			want: errors.ErrAlreadyMember,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faulty.FailWhen(tt.failWhen)
			defer faulty.FailWhen(nil)

			if _, err := s.AcceptInvitation(ctx, inv.Code, tt.who); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got := uses(t); got != int64(0) {
				t.Errorf("expected the use to be given back, got uses %v", got)
			}
		})
	}

	if _, err := s.AcceptInvitation(ctx, inv.Code, guest); err != nil {
		t.Fatalf("expected the returned use to be redeemable, got %v", err)
	}
	if got := uses(t); got != int64(1) {
		t.Errorf("expected uses 1, got %v", got)
	}
}
