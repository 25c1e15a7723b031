package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/pkg/validator"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

// InvitationFields configure a new invitation. Zero values fall back to the
// configured defaults and the member role.
type InvitationFields struct {
	Email   string        `json:"email"`
	Role    models.Role   `json:"role"`
	MaxUses int           `json:"max_uses"`
	TTL     time.Duration `json:"-"`
	Code    string        `json:"code"`
}

// CreateInvitation issues a join code for orgID. The inviter must be an
// active member of the organization.
func (s *Service) CreateInvitation(ctx context.Context, inviter models.Identity, orgID string, fields InvitationFields) (*models.Invitation, error) {
	if _, err := s.resolver.Role(ctx, inviter.ID, orgID); err != nil {
		return nil, err
	}

	role := fields.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, errors.NewValidationError("role", "must be one of admin, member, viewer")
	}

	email := ""
	if fields.Email != "" {
		email = validator.NormalizeEmail(fields.Email)
		if err := validator.ValidateEmail(email); err != nil {
			return nil, errors.NewValidationError("email", err.Error())
		}
	}

	maxUses := fields.MaxUses
	if maxUses == 0 {
		maxUses = s.invitations.DefaultMaxUses
	}
	if maxUses < 0 {
		return nil, errors.NewValidationError("max_uses", "must be positive")
	}
	ttl := fields.TTL
	if ttl <= 0 {
		ttl = s.invitations.DefaultTTL
	}

	code, err := s.generateCode(ctx, fields.Code)
	if err != nil {
		if err == ErrInvalidCode || err == ErrCodeTaken {
			return nil, errors.NewValidationError("code", err.Error())
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	now := time.Now()
	doc := models.Document{
		"organization_id": orgID,
		"code":            code,
		"email":           nullableString(email),
		"role":            string(role),
		"invited_by":      inviter.ID,
		"status":          string(models.InvitationPending),
		"max_uses":        int64(maxUses),
		"uses":            int64(0),
		"expires_at":      now.Add(ttl).Unix(),
		"created_at":      now.Unix(),
		"updated_at":      now.Unix(),
	}
	id, err := s.records.Create(ctx, provider.Invitations, doc)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	doc["id"] = id

	log.Info().Str("organization_id", orgID).Str("invitation_id", id).Msg("invitation created")
	s.audit.Log(ctx, audit.Event{
		OrganizationID: orgID,
		UserID:         inviter.ID,
		Action:         audit.ActionInvitationCreated,
		ResourceType:   "invitation",
		ResourceID:     id,
		Metadata:       map[string]interface{}{"role": string(role), "max_uses": maxUses},
	})
	return models.DecodeInvitation(doc)
}

// ListInvitations returns every invitation of orgID, newest first.
func (s *Service) ListInvitations(ctx context.Context, orgID string) ([]*models.Invitation, error) {
	docs, err := s.records.Read(ctx, provider.Invitations, provider.Filter{"organization_id": orgID})
	if err != nil {
		return nil, err
	}

	invitations := make([]*models.Invitation, 0, len(docs))
	for _, doc := range docs {
		inv, err := models.DecodeInvitation(doc)
		if err != nil {
			log.Warn().Err(err).Msg("skipping malformed invitation")
			continue
		}
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

// GetInvitation returns an invitation of orgID by id.
func (s *Service) GetInvitation(ctx context.Context, orgID, id string) (*models.Invitation, error) {
	doc, err := s.records.ReadOne(ctx, provider.Invitations, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &errors.NotFoundError{Collection: provider.Invitations, ID: id}
	}
	inv, err := models.DecodeInvitation(doc)
	if err != nil {
		return nil, err
	}
	if inv.OrganizationID != orgID {
		return nil, &errors.NotFoundError{Collection: provider.Invitations, ID: id}
	}
	return inv, nil
}

func (s *Service) RevokeInvitation(ctx context.Context, orgID, id string) error {
	inv, err := s.GetInvitation(ctx, orgID, id)
	if err != nil {
		return err
	}
	if inv.Status == models.InvitationRevoked {
		return nil
	}

	err = s.records.Update(ctx, provider.Invitations, id, models.Document{
		"status":     string(models.InvitationRevoked),
		"updated_at": time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Event{
		OrganizationID: orgID,
		Action:         audit.ActionInvitationRevoked,
		ResourceType:   "invitation",
		ResourceID:     id,
	})
	return nil
}

// AcceptInvitation redeems code for identity and returns the membership it
// created or reactivated. A use is claimed atomically before the membership
// is written and given back if that write fails, so concurrent accepts never
// exceed the invitation's max uses.
func (s *Service) AcceptInvitation(ctx context.Context, code string, identity models.Identity) (*models.Membership, error) {
	docs, err := s.records.Read(ctx, provider.Invitations, provider.Filter{"code": NormalizeCode(code)})
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.ErrInvitationInvalid
	}
	inv, err := models.DecodeInvitation(docs[0])
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if !inv.Usable(now) {
		return nil, errors.ErrInvitationInvalid
	}
	if inv.Email != "" && inv.Email != validator.NormalizeEmail(identity.Email) {
		return nil, errors.ErrInvitationInvalid
	}

	org, err := s.records.ReadOne(ctx, provider.Organizations, inv.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if org == nil {
		return nil, errors.ErrInvitationInvalid
	}

	if err := s.records.ClaimInvitationUse(ctx, inv.ID, now); err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, errors.ErrInvitationInvalid
		}
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	m, err := s.addMember(ctx, inv.OrganizationID, identity.ID, inv.Role)
	if err != nil {
		if rerr := s.records.ReleaseInvitationUse(context.WithoutCancel(ctx), inv.ID, time.Now().Unix()); rerr != nil {
			log.Warn().Err(rerr).Str("invitation_id", inv.ID).Msg("failed to release invitation use")
		}
		return nil, err
	}

	log.Info().Str("organization_id", inv.OrganizationID).Str("user_id", identity.ID).Msg("invitation accepted")
	s.audit.Log(ctx, audit.Event{
		OrganizationID: inv.OrganizationID,
		UserID:         identity.ID,
		Action:         audit.ActionMemberJoined,
		ResourceType:   "membership",
		ResourceID:     m.ID,
		Metadata:       map[string]interface{}{"invitation_id": inv.ID, "role": string(inv.Role)},
	})
	return m, nil
}

// ExpireInvitations marks pending invitations whose expiry has passed as
// expired and returns how many were changed.
func (s *Service) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.records.Read(ctx, provider.Invitations, provider.Filter{"status": string(models.InvitationPending)})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, doc := range docs {
		inv, err := models.DecodeInvitation(doc)
		if err != nil || inv.ExpiresAt > now.Unix() {
			continue
		}
		err = s.records.Update(ctx, provider.Invitations, inv.ID, models.Document{
			"status":     string(models.InvitationExpired),
			"updated_at": now.Unix(),
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
