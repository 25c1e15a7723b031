// Package selector tracks the organization a user is currently working in on
// one device. It stores whatever it is told; validation against memberships
// is the caller's job.
package selector

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/preferences"
)

// IdentitySource reports the signed-in identity the selection belongs to.
type IdentitySource interface {
	Identity() (models.Identity, bool)
}

type SwitchListener func(ctx context.Context, orgID string)

type Selector struct {
	prefs    preferences.Store
	identity IdentitySource
	deviceID string

	mu        sync.RWMutex
	listeners []SwitchListener
}

func New(prefs preferences.Store, identity IdentitySource, deviceID string) *Selector {
	if deviceID == "" {
		deviceID = "default"
	}
	return &Selector{prefs: prefs, identity: identity, deviceID: deviceID}
}

func (s *Selector) DeviceID() string {
	return s.deviceID
}

// OnSwitch registers fn to run after every SwitchTo.
func (s *Selector) OnSwitch(fn SwitchListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Selector) key() (string, bool) {
	id, ok := s.identity.Identity()
	if !ok {
		return "", false
	}
	return preferences.CurrentOrganizationKey(id.ID, s.deviceID), true
}

// GetCurrent returns the persisted organization id. Storage failures read as
// unset so that bootstrap re-resolves.
func (s *Selector) GetCurrent() (string, bool) {
	key, ok := s.key()
	if !ok {
		return "", false
	}
	v, ok, err := s.prefs.Get(key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read current organization")
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *Selector) SetCurrent(orgID string) error {
	key, ok := s.key()
	if !ok {
		return &errors.StateError{Op: "select organization", Missing: "identity"}
	}
	if orgID == "" {
		return s.prefs.Delete(key)
	}
	return s.prefs.Set(key, orgID)
}

// SwitchTo persists orgID and then runs the switch listeners in
// registration order.
func (s *Selector) SwitchTo(ctx context.Context, orgID string) error {
	if err := s.SetCurrent(orgID); err != nil {
		return err
	}

	s.mu.RLock()
	listeners := append([]SwitchListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, orgID)
	}

	log.Debug().Str("organization_id", orgID).Str("device_id", s.deviceID).Msg("switched organization")
	return nil
}

func (s *Selector) Clear() error {
	key, ok := s.key()
	if !ok {
		return nil
	}
	return s.prefs.Delete(key)
}

// ClearFor drops the selection of a user who is no longer signed in.
func (s *Selector) ClearFor(userID string) error {
	return s.prefs.Delete(preferences.CurrentOrganizationKey(userID, s.deviceID))
}
