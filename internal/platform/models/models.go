package models

// Identity is the authenticated principal as known to the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Profile struct {
	ID        string  `json:"id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

func DecodeProfile(doc Document) (*Profile, error) {
	dec := newDecoder("profiles", doc)
	p := &Profile{
		ID:        dec.requiredString("id"),
		FirstName: dec.nullableString("first_name"),
		LastName:  dec.nullableString("last_name"),
		AvatarURL: dec.nullableString("avatar_url"),
		CreatedAt: dec.requiredInt("created_at"),
		UpdatedAt: dec.requiredInt("updated_at"),
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return p, nil
}

const (
	PlanFree                 = "free"
	SubscriptionStatusActive = "active"
)

type Organization struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TeamSize           string `json:"team_size"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status"`
	CreatedAt          int64  `json:"created_at"`
	UpdatedAt          int64  `json:"updated_at"`
}

func DecodeOrganization(doc Document) (*Organization, error) {
	dec := newDecoder("organizations", doc)
	org := &Organization{
		ID:                 dec.requiredString("id"),
		Name:               dec.requiredString("name"),
		TeamSize:           dec.optionalString("team_size"),
		Plan:               dec.requiredString("plan"),
		SubscriptionStatus: dec.requiredString("subscription_status"),
		CreatedAt:          dec.requiredInt("created_at"),
		UpdatedAt:          dec.requiredInt("updated_at"),
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return org, nil
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipInvited MembershipStatus = "invited"
	MembershipRemoved MembershipStatus = "removed"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipInvited, MembershipRemoved:
		return true
	}
	return false
}

type Membership struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Role           Role             `json:"role"`
	Status         MembershipStatus `json:"status"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

func DecodeMembership(doc Document) (*Membership, error) {
	dec := newDecoder("organization_members", doc)
	m := &Membership{
		ID:             dec.requiredString("id"),
		OrganizationID: dec.requiredString("organization_id"),
		UserID:         dec.requiredString("user_id"),
		Role:           Role(dec.requiredString("role")),
		Status:         MembershipStatus(dec.requiredString("status")),
		CreatedAt:      dec.requiredInt("created_at"),
		UpdatedAt:      dec.requiredInt("updated_at"),
	}
	dec.check("role", m.Role.Valid())
	dec.check("status", m.Status.Valid())
	if dec.err != nil {
		return nil, dec.err
	}
	return m, nil
}
