// Package provider defines the backend the core talks to: an identity service
// plus schemaless collection CRUD. The core never depends on how a provider
// stores data, only on these operation contracts.
package provider

import (
	"context"
	"errors"

	"taskhub/internal/platform/models"
)

// Collections consumed by the core.
const (
	Profiles      = "profiles"
	Organizations = "organizations"
	Members       = "organization_members"
	Invitations   = "invitations"
	Projects      = "projects"
	Tasks         = "tasks"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by Create and Update when the write would
	// break a uniqueness constraint of the collection.
	ErrDuplicate = errors.New("record already exists")
)

// Filter matches documents whose fields equal the given values. A nil value
// matches a null field.
type Filter map[string]interface{}

type Records interface {
	Read(ctx context.Context, collection string, filter Filter) ([]models.Document, error)
	// ReadOne returns nil, nil when the id does not resolve.
	ReadOne(ctx context.Context, collection, id string) (models.Document, error)
	// Create stores fields and returns the document id, generating one unless
	// fields carries an "id".
	Create(ctx context.Context, collection string, fields models.Document) (string, error)
	// Update and Delete return ErrNotFound when the id does not resolve.
	Update(ctx context.Context, collection, id string, fields models.Document) error
	Delete(ctx context.Context, collection, id string) error

	// ClaimInvitationUse atomically counts one use of a pending invitation
	// that has not expired at now and has uses left. It returns ErrNotFound
	// when no use could be claimed.
	ClaimInvitationUse(ctx context.Context, id string, now int64) error
	// ReleaseInvitationUse gives back a use taken by ClaimInvitationUse.
	ReleaseInvitationUse(ctx context.Context, id string, now int64) error
}

// Grant is the result of a successful authentication.
type Grant struct {
	Identity  models.Identity
	SessionID string
}

// FederatedClaims are the verified attributes of an external identity.
type FederatedClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type Identities interface {
	Register(ctx context.Context, email, password string) (*Grant, error)
	Authenticate(ctx context.Context, email, password string) (*Grant, error)
	AuthenticateFederated(ctx context.Context, claims FederatedClaims) (*Grant, error)
	Deauthenticate(ctx context.Context, sessionID string) error
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

type Provider interface {
	Identities
	Records
}
