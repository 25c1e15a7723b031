package models

type InvitationStatus string

const (
	InvitationPending InvitationStatus = "pending"
	InvitationRevoked InvitationStatus = "revoked"
	InvitationExpired InvitationStatus = "expired"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationRevoked, InvitationExpired:
		return true
	}
	return false
}

// Invitation is a join code for one organization, distinct from the
// organization id so it can be revoked, capped and expired.
type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Code           string           `json:"code"`
	Email          string           `json:"email,omitempty"`
	Role           Role             `json:"role"`
	InvitedBy      string           `json:"invited_by"`
	Status         InvitationStatus `json:"status"`
	MaxUses        int              `json:"max_uses"`
	Uses           int              `json:"uses"`
	ExpiresAt      int64            `json:"expires_at"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

// Usable reports whether the invitation can still be accepted at now.
func (i *Invitation) Usable(now int64) bool {
	return i.Status == InvitationPending && i.Uses < i.MaxUses && i.ExpiresAt > now
}

func DecodeInvitation(doc Document) (*Invitation, error) {
	dec := newDecoder("invitations", doc)
	inv := &Invitation{
		ID:             dec.requiredString("id"),
		OrganizationID: dec.requiredString("organization_id"),
		Code:           dec.requiredString("code"),
		Email:          dec.optionalString("email"),
		Role:           Role(dec.requiredString("role")),
		InvitedBy:      dec.requiredString("invited_by"),
		Status:         InvitationStatus(dec.requiredString("status")),
		MaxUses:        int(dec.requiredInt("max_uses")),
		Uses:           int(dec.optionalInt("uses")),
		ExpiresAt:      dec.requiredInt("expires_at"),
		CreatedAt:      dec.requiredInt("created_at"),
		UpdatedAt:      dec.requiredInt("updated_at"),
	}
	dec.check("role", inv.Role.Valid())
	dec.check("status", inv.Status.Valid())
	if dec.err != nil {
		return nil, dec.err
	}
	return inv, nil
}
