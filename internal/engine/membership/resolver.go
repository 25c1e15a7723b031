// Package membership resolves which organizations a user belongs to and
// manages the membership and invitation documents behind that answer.
package membership

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

type Resolver struct {
	records provider.Records
}

func NewResolver(records provider.Records) *Resolver {
	return &Resolver{records: records}
}

// activeMemberships returns the user's active memberships, newest first with
// ties broken by id. Malformed documents are skipped.
func (r *Resolver) activeMemberships(ctx context.Context, filter provider.Filter) ([]*models.Membership, error) {
	filter["status"] = string(models.MembershipActive)

	docs, err := r.records.Read(ctx, provider.Members, filter)
	if err != nil {
		return nil, err
	}

	memberships := make([]*models.Membership, 0, len(docs))
	for _, doc := range docs {
		m, err := models.DecodeMembership(doc)
		if err != nil {
			log.Warn().Err(err).Msg("skipping malformed membership")
			continue
		}
		memberships = append(memberships, m)
	}

	sort.SliceStable(memberships, func(i, j int) bool {
		if memberships[i].CreatedAt != memberships[j].CreatedAt {
			return memberships[i].CreatedAt > memberships[j].CreatedAt
		}
		return memberships[i].ID < memberships[j].ID
	})
	return memberships, nil
}

// ListOrganizationsForUser returns the organizations the user is an active
// member of, ordered by membership creation (newest first). Memberships whose
// organization no longer resolves are skipped. An empty result is not an
// error; provider failures are reported as *errors.ResolutionError.
func (r *Resolver) ListOrganizationsForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	memberships, err := r.activeMemberships(ctx, provider.Filter{"user_id": userID})
	if err != nil {
		return nil, &errors.ResolutionError{Op: "memberships", Err: err}
	}

	orgs := make([]*models.Organization, 0, len(memberships))
	seen := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		if seen[m.OrganizationID] {
			continue
		}
		seen[m.OrganizationID] = true

		doc, err := r.records.ReadOne(ctx, provider.Organizations, m.OrganizationID)
		if err != nil {
			return nil, &errors.ResolutionError{Op: "organization " + m.OrganizationID, Err: err}
		}
		if doc == nil {
			log.Debug().Str("organization_id", m.OrganizationID).Str("user_id", userID).
				Msg("membership references a missing organization")
			continue
		}
		org, err := models.DecodeOrganization(doc)
		if err != nil {
			log.Warn().Err(err).Msg("skipping malformed organization")
			continue
		}
		orgs = append(orgs, org)
	}

	return orgs, nil
}

// ActiveMembership returns the user's active membership in orgID, or nil.
func (r *Resolver) ActiveMembership(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	memberships, err := r.activeMemberships(ctx, provider.Filter{"user_id": userID, "organization_id": orgID})
	if err != nil {
		return nil, &errors.ResolutionError{Op: "membership", Err: err}
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	return memberships[0], nil
}

// Role returns the user's role in orgID or errors.ErrNotMember.
func (r *Resolver) Role(ctx context.Context, userID, orgID string) (models.Role, error) {
	m, err := r.ActiveMembership(ctx, userID, orgID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", errors.ErrNotMember
	}
	return m.Role, nil
}
