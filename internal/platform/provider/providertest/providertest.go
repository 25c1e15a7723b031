// Package providertest supplies record providers for tests: a real SQLite
// provider on an in-memory database and a wrapper that injects failures.
package providertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskhub/internal/platform/database"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

// New returns a provider backed by a freshly migrated in-memory database that
// is closed when the test ends.
func New(t testing.TB) *provider.SQLProvider {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return provider.NewSQLProvider(db, 5*time.Second)
}

// Call identifies one provider operation.
type Call struct {
	Op         string // read, read_one, create, update, delete, claim, release
	Collection string
	ID         string
}

// Faulty wraps a provider and fails the calls selected by FailWhen.
type Faulty struct {
	provider.Provider

	mu       sync.Mutex
	failWhen func(Call) error
	calls    []Call
}

func NewFaulty(p provider.Provider) *Faulty {
	return &Faulty{Provider: p}
}

// FailWhen installs fn; a non-nil return fails the call with that error.
// Passing nil clears the fault.
func (f *Faulty) FailWhen(fn func(Call) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWhen = fn
}

// Calls returns every records call observed so far.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Faulty) check(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failWhen == nil {
		return nil
	}
	return f.failWhen(c)
}

func (f *Faulty) Read(ctx context.Context, collection string, filter provider.Filter) ([]models.Document, error) {
	if err := f.check(Call{Op: "read", Collection: collection}); err != nil {
		return nil, err
	}
	return f.Provider.Read(ctx, collection, filter)
}

func (f *Faulty) ReadOne(ctx context.Context, collection, id string) (models.Document, error) {
	if err := f.check(Call{Op: "read_one", Collection: collection, ID: id}); err != nil {
		return nil, err
	}
	return f.Provider.ReadOne(ctx, collection, id)
}

func (f *Faulty) Create(ctx context.Context, collection string, fields models.Document) (string, error) {
	if err := f.check(Call{Op: "create", Collection: collection}); err != nil {
		return "", err
	}
	return f.Provider.Create(ctx, collection, fields)
}

func (f *Faulty) Update(ctx context.Context, collection, id string, fields models.Document) error {
	if err := f.check(Call{Op: "update", Collection: collection, ID: id}); err != nil {
		return err
	}
	return f.Provider.Update(ctx, collection, id, fields)
}

func (f *Faulty) Delete(ctx context.Context, collection, id string) error {
	if err := f.check(Call{Op: "delete", Collection: collection, ID: id}); err != nil {
		return err
	}
	return f.Provider.Delete(ctx, collection, id)
}

func (f *Faulty) ClaimInvitationUse(ctx context.Context, id string, now int64) error {
	if err := f.check(Call{Op: "claim", Collection: provider.Invitations, ID: id}); err != nil {
		return err
	}
	return f.Provider.ClaimInvitationUse(ctx, id, now)
}

func (f *Faulty) ReleaseInvitationUse(ctx context.Context, id string, now int64) error {
	if err := f.check(Call{Op: "release", Collection: provider.Invitations, ID: id}); err != nil {
		return err
	}
	return f.Provider.ReleaseInvitationUse(ctx, id, now)
}
