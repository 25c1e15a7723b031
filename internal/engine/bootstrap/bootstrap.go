// Package bootstrap sequences sign-in, membership resolution, organization
// selection and scoped data loading.
package bootstrap

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/selector"
	"taskhub/internal/engine/session"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
)

type Status string

const (
	NeedsAuth         Status = "needs_auth"
	NeedsOrganization Status = "needs_organization"
	Ready             Status = "ready"
)

type Result struct {
	Status        Status                 `json:"status"`
	Organizations []*models.Organization `json:"organizations"`
	Current       *models.Organization   `json:"current,omitempty"`
}

// Scoped is a store that may only serve data once an organization has been
// validated for it.
type Scoped interface {
	MarkReady(orgID string)
	Reset()
}

type Orchestrator struct {
	session     *session.Store
	memberships *membership.Service
	selector    *selector.Selector
	scoped      []Scoped

	// mu serializes bootstrap runs so concurrent callers observe one
	// sequence at a time.
	mu sync.Mutex
}

// New wires an orchestrator to its session and selector. It resets the
// scoped stores on every sign-out and every organization switch.
func New(sess *session.Store, memberships *membership.Service, sel *selector.Selector, scoped ...Scoped) *Orchestrator {
	o := &Orchestrator{session: sess, memberships: memberships, selector: sel, scoped: scoped}
	sess.OnSignOut(o.signedOut)
	sel.OnSwitch(func(ctx context.Context, orgID string) { o.resetScoped() })
	return o
}

func (o *Orchestrator) resetScoped() {
	for _, s := range o.scoped {
		s.Reset()
	}
}

func (o *Orchestrator) markReady(orgID string) {
	for _, s := range o.scoped {
		s.MarkReady(orgID)
	}
}

func (o *Orchestrator) signedOut(ctx context.Context, identity models.Identity) {
	if err := o.selector.ClearFor(identity.ID); err != nil {
		log.Warn().Err(err).Str("user_id", identity.ID).Msg("failed to clear organization selection")
	}
	o.resetScoped()
}

// Run performs the bootstrap sequence. It is safe to call repeatedly; with
// unchanged memberships it returns the same result.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	return o.run(ctx, "")
}

// run bootstraps, selecting prefer when it is among the user's
// organizations.
func (o *Orchestrator) run(ctx context.Context, prefer string) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	identity, ok := o.session.Identity()
	if !ok {
		o.resetScoped()
		return &Result{Status: NeedsAuth, Organizations: []*models.Organization{}}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orgs, err := o.memberships.Resolver().ListOrganizationsForUser(ctx, identity.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.resetScoped()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(orgs) == 0 {
		o.resetScoped()
		if err := o.selector.Clear(); err != nil {
			return nil, &errors.ResolutionError{Op: "selection", Err: err}
		}
		log.Debug().Str("user_id", identity.ID).Msg("bootstrap: no organizations")
		return &Result{Status: NeedsOrganization, Organizations: orgs}, nil
	}

	want := prefer
	if want == "" {
		want, _ = o.selector.GetCurrent()
	}

	current := orgs[0]
	for _, org := range orgs {
		if org.ID == want {
			current = org
			break
		}
	}

	if persisted, _ := o.selector.GetCurrent(); persisted != current.ID {
		if persisted != "" && prefer == "" {
			log.Debug().Str("stale", persisted).Str("organization_id", current.ID).Msg("bootstrap: replacing stale selection")
		}
		if err := o.selector.SetCurrent(current.ID); err != nil {
			o.resetScoped()
			return nil, &errors.ResolutionError{Op: "selection", Err: err}
		}
	}

	o.markReady(current.ID)
	log.Debug().Str("user_id", identity.ID).Str("organization_id", current.ID).Msg("bootstrap: ready")
	return &Result{Status: Ready, Organizations: orgs, Current: current}, nil
}

// SwitchOrganization moves the user to orgID after checking they are an
// active member of it.
func (o *Orchestrator) SwitchOrganization(ctx context.Context, orgID string) (*Result, error) {
	identity, ok := o.session.Identity()
	if !ok {
		return nil, &errors.StateError{Op: "switch organization", Missing: "identity"}
	}

	m, err := o.memberships.Resolver().ActiveMembership(ctx, identity.ID, orgID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.ErrNotMember
	}

	if err := o.selector.SwitchTo(ctx, orgID); err != nil {
		return nil, err
	}
	return o.run(ctx, orgID)
}

// CreateOrganization creates an organization owned by the signed-in user and
// bootstraps into it.
func (o *Orchestrator) CreateOrganization(ctx context.Context, fields membership.OrganizationFields) (*Result, error) {
	identity, ok := o.session.Identity()
	if !ok {
		return nil, &errors.StateError{Op: "create organization", Missing: "identity"}
	}

	org, err := o.memberships.CreateOrganization(ctx, identity.ID, fields)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, org.ID)
}

// AcceptInvitation joins the organization behind code and bootstraps into it.
func (o *Orchestrator) AcceptInvitation(ctx context.Context, code string) (*Result, error) {
	identity, ok := o.session.Identity()
	if !ok {
		return nil, &errors.StateError{Op: "accept invitation", Missing: "identity"}
	}

	m, err := o.memberships.AcceptInvitation(ctx, code, identity)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, m.OrganizationID)
}

// LeaveOrganization removes the user from orgID and bootstraps again.
func (o *Orchestrator) LeaveOrganization(ctx context.Context, orgID string) (*Result, error) {
	identity, ok := o.session.Identity()
	if !ok {
		return nil, &errors.StateError{Op: "leave organization", Missing: "identity"}
	}

	if err := o.memberships.Leave(ctx, identity.ID, orgID); err != nil {
		return nil, err
	}
	return o.run(ctx, "")
}
