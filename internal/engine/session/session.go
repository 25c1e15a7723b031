// Package session holds the authenticated identity of one client and the
// transitions between signed-out and signed-in.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Gate is the decision a protected route takes for the current session.
type Gate int

const (
	// GateLoading means a provider call is in flight; no redirect decision
	// may be taken yet.
	GateLoading Gate = iota
	GateSignIn
	GateAllow
)

// ProfileFields are the optional profile attributes captured at sign-up.
type ProfileFields struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}

// TokenVerifier turns a federated id token into verified claims.
type TokenVerifier interface {
	VerifyIDToken(idToken string) (provider.FederatedClaims, error)
}

type SignOutListener func(ctx context.Context, identity models.Identity)

type Store struct {
	provider provider.Provider
	verifier TokenVerifier

	mu        sync.RWMutex
	grant     *provider.Grant
	loading   int
	listeners []SignOutListener
}

func NewStore(p provider.Provider, verifier TokenVerifier) *Store {
	return &Store{provider: p, verifier: verifier}
}

// OnSignOut registers fn to run after every sign-out with the identity that
// was signed out.
func (s *Store) OnSignOut(fn SignOutListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grant == nil {
		return Unauthenticated
	}
	return Authenticated
}

// Identity returns the signed-in identity, if any.
func (s *Store) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grant == nil {
		return models.Identity{}, false
	}
	return s.grant.Identity, true
}

// Grant returns the identity together with its provider session id.
func (s *Store) Grant() (provider.Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grant == nil {
		return provider.Grant{}, false
	}
	return *s.grant, true
}

func (s *Store) Gate() Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.loading > 0:
		return GateLoading
	case s.grant == nil:
		return GateSignIn
	default:
		return GateAllow
	}
}

func (s *Store) signedIn(grant *provider.Grant) models.Identity {
	s.mu.Lock()
	s.grant = grant
	s.mu.Unlock()

	log.Debug().Str("user_id", grant.Identity.ID).Msg("session authenticated")
	return grant.Identity
}

func (s *Store) SignUp(ctx context.Context, email, password string, fields ProfileFields) (models.Identity, error) {
	s.begin()
	defer s.end()

	grant, err := s.provider.Register(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}

	now := time.Now().Unix()
	profile := models.Document{
		"id":         grant.Identity.ID,
		"first_name": nullable(fields.FirstName),
		"last_name":  nullable(fields.LastName),
		"avatar_url": nullable(fields.AvatarURL),
		"created_at": now,
		"updated_at": now,
	}
	if _, err := s.provider.Create(ctx, provider.Profiles, profile); err != nil {
		log.Warn().Err(err).Str("user_id", grant.Identity.ID).Msg("failed to create profile after sign-up")
	}

	return s.signedIn(grant), nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	s.begin()
	defer s.end()

	grant, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	return s.signedIn(grant), nil
}

// SignInWithProvider signs in with a federated id token. The first sign-in
// of an account seeds its profile from the token's display name and picture.
func (s *Store) SignInWithProvider(ctx context.Context, idToken string) (models.Identity, error) {
	if s.verifier == nil {
		return models.Identity{}, errors.NewAuthError(errors.ReasonInvalidToken, nil)
	}
	claims, err := s.verifier.VerifyIDToken(idToken)
	if err != nil {
		return models.Identity{}, errors.NewAuthError(errors.ReasonInvalidToken, err)
	}

	s.begin()
	defer s.end()

	grant, err := s.provider.AuthenticateFederated(ctx, claims)
	if err != nil {
		return models.Identity{}, err
	}

	s.ensureProfile(ctx, grant.Identity.ID, claims)
	return s.signedIn(grant), nil
}

func (s *Store) ensureProfile(ctx context.Context, userID string, claims provider.FederatedClaims) {
	existing, err := s.provider.ReadOne(ctx, provider.Profiles, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to look up profile")
		return
	}
	if existing != nil {
		return
	}

	first, last := splitName(claims.Name)
	now := time.Now().Unix()
	profile := models.Document{
		"id":         userID,
		"first_name": first,
		"last_name":  last,
		"avatar_url": nullable(&claims.Picture),
		"created_at": now,
		"updated_at": now,
	}
	if _, err := s.provider.Create(ctx, provider.Profiles, profile); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to create profile after federated sign-in")
	}
}

// Resume enters the authenticated state for a session that was established
// earlier, without a provider round-trip.
func (s *Store) Resume(grant provider.Grant) {
	s.signedIn(&grant)
}

// SignOut ends the provider session and notifies listeners. The local state
// is cleared even when the provider call fails.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	grant := s.grant
	s.grant = nil
	listeners := append([]SignOutListener(nil), s.listeners...)
	s.mu.Unlock()

	if grant == nil {
		return nil
	}

	s.begin()
	err := s.provider.Deauthenticate(ctx, grant.SessionID)
	s.end()
	if err != nil {
		log.Warn().Err(err).Str("user_id", grant.Identity.ID).Msg("provider sign-out failed")
	}

	for _, fn := range listeners {
		fn(ctx, grant.Identity)
	}

	log.Debug().Str("user_id", grant.Identity.ID).Msg("session signed out")
	return err
}

// splitName splits a display name on its first whitespace.
func splitName(name string) (interface{}, interface{}) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	i := strings.IndexAny(name, " \t")
	if i < 0 {
		return name, nil
	}
	last := strings.TrimSpace(name[i+1:])
	if last == "" {
		return name[:i], nil
	}
	return name[:i], last
}

func nullable(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
