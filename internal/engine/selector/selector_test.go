package selector

import (
	"context"
	"testing"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/preferences"
)

type fixedIdentity struct {
	id *models.Identity
}

func (f *fixedIdentity) Identity() (models.Identity, bool) {
	if f.id == nil {
		return models.Identity{}, false
	}
	return *f.id, true
}

func TestSelector_PerUserAndDevice(t *testing.T) {
	prefs := preferences.NewMemoryStore()
	who := &fixedIdentity{id: &models.Identity{ID: "usr_1"}}

	laptop := New(prefs, who, "laptop")
	phone := New(prefs, who, "phone")

	if _, ok := laptop.GetCurrent(); ok {
		t.Fatal("expected no selection")
	}
	if err := laptop.SetCurrent("org_a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if id, ok := laptop.GetCurrent(); !ok || id != "org_a" {
		t.Errorf("expected org_a, got %q", id)
	}
	if _, ok := phone.GetCurrent(); ok {
		t.Error("expected devices to keep separate selections")
	}

	who.id = &models.Identity{ID: "usr_2"}
	if _, ok := laptop.GetCurrent(); ok {
		t.Error("expected selections to be per user")
	}
	who.id = &models.Identity{ID: "usr_1"}

	if err := laptop.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := laptop.GetCurrent(); ok {
		t.Error("expected selection to be cleared")
	}
}

func TestSelector_RequiresIdentity(t *testing.T) {
	s := New(preferences.NewMemoryStore(), &fixedIdentity{}, "")

	var stateErr *errors.StateError
	if err := s.SetCurrent("org_a"); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError, got %v", err)
	}
	if _, ok := s.GetCurrent(); ok {
		t.Error("expected no selection without identity")
	}
	if s.DeviceID() != "default" {
		t.Errorf("expected default device, got %s", s.DeviceID())
	}
}

func TestSelector_SwitchToRunsListenersAfterPersisting(t *testing.T) {
	s := New(preferences.NewMemoryStore(), &fixedIdentity{id: &models.Identity{ID: "usr_1"}}, "laptop")

	var seen []string
	s.OnSwitch(func(ctx context.Context, orgID string) {
		current, _ := s.GetCurrent()
		seen = append(seen, orgID+"="+current)
	})

	if err := s.SwitchTo(context.Background(), "org_b"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if len(seen) != 1 || seen[0] != "org_b=org_b" {
		t.Errorf("expected listener to observe persisted selection, got %v", seen)
	}
}
