package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

// OrganizationFields are the caller-supplied attributes of a new organization.
type OrganizationFields struct {
	Name     string `json:"name"`
	TeamSize string `json:"team_size"`
}

// Auditor records organization lifecycle events.
type Auditor interface {
	Log(ctx context.Context, e audit.Event)
}

type discardAuditor struct{}

func (discardAuditor) Log(context.Context, audit.Event) {}

type Service struct {
	records     provider.Records
	resolver    *Resolver
	invitations config.InvitationsConfig
	audit       Auditor
}

func NewService(records provider.Records, resolver *Resolver, invitations config.InvitationsConfig) *Service {
	if invitations.DefaultMaxUses <= 0 {
		invitations.DefaultMaxUses = 1
	}
	if invitations.DefaultTTL <= 0 {
		invitations.DefaultTTL = 7 * 24 * time.Hour
	}
	return &Service{records: records, resolver: resolver, invitations: invitations, audit: discardAuditor{}}
}

// WithAudit makes the service report lifecycle events to a.
func (s *Service) WithAudit(a Auditor) *Service {
	if a != nil {
		s.audit = a
	}
	return s
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// CreateOrganization creates an organization on the free plan and makes
// creatorID its admin.
func (s *Service) CreateOrganization(ctx context.Context, creatorID string, fields OrganizationFields) (*models.Organization, error) {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return nil, errors.NewValidationError("name", "is required")
	}

	now := time.Now().Unix()
	doc := models.Document{
		"name":                name,
		"team_size":           nullableString(strings.TrimSpace(fields.TeamSize)),
		"plan":                models.PlanFree,
		"subscription_status": models.SubscriptionStatusActive,
		"created_at":          now,
		"updated_at":          now,
	}

	id, err := s.records.Create(ctx, provider.Organizations, doc)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	doc["id"] = id

	if _, err := s.addMember(ctx, id, creatorID, models.RoleAdmin); err != nil {
		log.Warn().Err(err).Str("organization_id", id).Msg("organization created without an admin membership")
		return nil, fmt.Errorf("create organization: %w", err)
	}

	log.Info().Str("organization_id", id).Str("user_id", creatorID).Msg("organization created")
	s.audit.Log(ctx, audit.Event{
		OrganizationID: id,
		UserID:         creatorID,
		Action:         audit.ActionOrganizationCreated,
		ResourceType:   "organization",
		ResourceID:     id,
		Metadata:       map[string]interface{}{"name": name},
	})
	return models.DecodeOrganization(doc)
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	doc, err := s.records.ReadOne(ctx, provider.Organizations, orgID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &errors.NotFoundError{Collection: provider.Organizations, ID: orgID}
	}
	return models.DecodeOrganization(doc)
}

// ListMembers returns the active memberships of an organization.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*models.Membership, error) {
	return s.resolver.activeMemberships(ctx, provider.Filter{"organization_id": orgID})
}

// Leave soft-deletes the user's active membership in orgID.
func (s *Service) Leave(ctx context.Context, userID, orgID string) error {
	m, err := s.resolver.ActiveMembership(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if m == nil {
		return errors.ErrNotMember
	}

	err = s.records.Update(ctx, provider.Members, m.ID, models.Document{
		"status":     string(models.MembershipRemoved),
		"updated_at": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("leave organization: %w", err)
	}

	log.Info().Str("organization_id", orgID).Str("user_id", userID).Msg("member left organization")
	s.audit.Log(ctx, audit.Event{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionMemberLeft,
		ResourceType:   "membership",
		ResourceID:     m.ID,
	})
	return nil
}

// addMember gives userID an active membership in orgID. A previous removed or
// invited row is reactivated so a user has at most one membership row per
// organization.
func (s *Service) addMember(ctx context.Context, orgID, userID string, role models.Role) (*models.Membership, error) {
	docs, err := s.records.Read(ctx, provider.Members, provider.Filter{"organization_id": orgID, "user_id": userID})
	if err != nil {
		return nil, err
	}

	var previous *models.Membership
	for _, doc := range docs {
		m, err := models.DecodeMembership(doc)
		if err != nil {
			continue
		}
		if m.Status == models.MembershipActive {
			return nil, errors.ErrAlreadyMember
		}
		if previous == nil {
			previous = m
		}
	}

	now := time.Now().Unix()
	if previous != nil {
		err := s.records.Update(ctx, provider.Members, previous.ID, models.Document{
			"role":       string(role),
			"status":     string(models.MembershipActive),
			"updated_at": now,
		})
		if err != nil {
			return nil, err
		}
		previous.Role = role
		previous.Status = models.MembershipActive
		previous.UpdatedAt = now
		return previous, nil
	}

	doc := models.Document{
		"organization_id": orgID,
		"user_id":         userID,
		"role":            string(role),
		"status":          string(models.MembershipActive),
		"created_at":      now,
		"updated_at":      now,
	}
	id, err := s.records.Create(ctx, provider.Members, doc)
	if err != nil {
		if errors.Is(err, provider.ErrDuplicate) {
			return nil, errors.ErrAlreadyMember
		}
		return nil, err
	}
	doc["id"] = id
	return models.DecodeMembership(doc)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
