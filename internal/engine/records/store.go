// Package records is the organization-scoped CRUD layer for tasks and
// projects. Every read is filtered by, and every create stamped with, the
// organization the store was last marked ready for, and only while that
// organization is still the user's persisted selection.
package records

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

// Fields is a raw create or patch payload keyed by document field.
type Fields = models.Document

// Record is implemented by every scoped record type.
type Record interface {
	RecordID() string
	OrgID() string
}

type IdentitySource interface {
	Identity() (models.Identity, bool)
}

// Selection reports the organization persisted as the user's current one.
type Selection interface {
	GetCurrent() (string, bool)
}

// Kind describes how one collection is decoded and which fields callers may
// write.
type Kind[T Record] struct {
	Collection string
	Decode     func(models.Document) (T, error)
	Rules      models.FieldRules
}

// writeOnce are set by the store at creation and never change afterwards.
var writeOnce = []string{"id", "organization_id", "created_by", "created_at", "updated_at"}

type snapshot[T Record] struct {
	org   string
	items []T
}

type Store[T Record] struct {
	records   provider.Records
	identity  IdentitySource
	selection Selection
	kind      Kind[T]

	mu       sync.RWMutex
	org      string
	gen      uint64
	snapshot *snapshot[T]
}

func NewStore[T Record](records provider.Records, identity IdentitySource, selection Selection, kind Kind[T]) *Store[T] {
	return &Store[T]{records: records, identity: identity, selection: selection, kind: kind}
}

// MarkReady scopes the store to a validated organization. Switching to a
// different organization drops the cached snapshot.
func (s *Store[T]) MarkReady(orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.org != orgID {
		s.invalidateLocked()
	}
	s.org = orgID
}

// Reset leaves the store not ready with no cached data.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.org = ""
	s.invalidateLocked()
}

func (s *Store[T]) Ready() bool {
	_, ok := s.Organization()
	return ok
}

// Organization returns the organization the store is scoped to. A store
// whose organization is no longer the persisted selection, because another
// session of the same user switched or left, reports not ready until it is
// bootstrapped again.
func (s *Store[T]) Organization() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopeLocked()
}

func (s *Store[T]) scopeLocked() (string, bool) {
	if s.org == "" {
		return "", false
	}
	if current, ok := s.selection.GetCurrent(); !ok || current != s.org {
		return "", false
	}
	return s.org, true
}

func (s *Store[T]) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

func (s *Store[T]) invalidateLocked() {
	s.gen++
	s.snapshot = nil
}

// List returns the records of the current organization, newest first. It
// returns nothing, without error, while the store is not ready.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	org, ok := s.scopeLocked()
	gen := s.gen
	s.mu.RUnlock()

	if !ok {
		return []T{}, nil
	}

	docs, err := s.records.Read(ctx, s.kind.Collection, provider.Filter{"organization_id": org})
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := s.kind.Decode(doc)
		if err != nil {
			log.Warn().Err(err).Str("organization_id", org).Msg("skipping malformed record")
			continue
		}
		items = append(items, item)
	}

	s.mu.Lock()
	if s.gen == gen && s.org == org {
		s.snapshot = &snapshot[T]{org: org, items: items}
	}
	s.mu.Unlock()

	return items, nil
}

// Snapshot returns the result of the latest List for the current
// organization, if one is cached.
func (s *Store[T]) Snapshot() ([]T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.scopeLocked()
	if !ok || s.snapshot == nil || s.snapshot.org != org {
		return nil, false
	}
	return s.snapshot.items, true
}

// Lookup finds a record in the cached snapshot.
func (s *Store[T]) Lookup(id string) (T, bool) {
	var zero T
	items, ok := s.Snapshot()
	if !ok {
		return zero, false
	}
	for _, item := range items {
		if item.RecordID() == id {
			return item, true
		}
	}
	return zero, false
}

// Filter returns the cached records that satisfy keep.
func (s *Store[T]) Filter(keep func(T) bool) []T {
	items, _ := s.Snapshot()
	out := make([]T, 0)
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func stripWriteOnce(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range writeOnce {
		delete(out, k)
	}
	return out
}

// Create stamps fields with the current organization, the signed-in user and
// timestamps, and stores the record.
func (s *Store[T]) Create(ctx context.Context, fields Fields) (T, error) {
	var zero T

	identity, ok := s.identity.Identity()
	if !ok {
		return zero, &errors.StateError{Op: "create " + s.kind.Collection, Missing: "identity"}
	}
	org, ok := s.Organization()
	if !ok {
		return zero, &errors.StateError{Op: "create " + s.kind.Collection, Missing: "current organization"}
	}

	doc := stripWriteOnce(fields)
	if err := s.kind.Rules.Validate(doc); err != nil {
		return zero, err
	}

	now := time.Now().Unix()
	doc["organization_id"] = org
	doc["created_by"] = identity.ID
	doc["created_at"] = now
	doc["updated_at"] = now

	id, err := s.records.Create(ctx, s.kind.Collection, doc)
	s.invalidate()
	if err != nil {
		return zero, err
	}
	doc["id"] = id

	return s.kind.Decode(doc)
}

// load returns the stored document for id when it belongs to the current
// organization.
func (s *Store[T]) load(ctx context.Context, op, id string) (models.Document, error) {
	org, ok := s.Organization()
	if !ok {
		return nil, &errors.StateError{Op: op, Missing: "current organization"}
	}

	doc, err := s.records.ReadOne(ctx, s.kind.Collection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &errors.NotFoundError{Collection: s.kind.Collection, ID: id}
	}
	if owner, _ := doc["organization_id"].(string); owner != org {
		return nil, &errors.NotFoundError{Collection: s.kind.Collection, ID: id}
	}
	return doc, nil
}

// GetByID returns the record when it exists in the current organization.
func (s *Store[T]) GetByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if !s.Ready() {
		return zero, false, nil
	}

	doc, err := s.load(ctx, "get "+s.kind.Collection, id)
	if err != nil {
		var nf *errors.NotFoundError
		if errors.As(err, &nf) {
			return zero, false, nil
		}
		return zero, false, err
	}

	item, err := s.kind.Decode(doc)
	if err != nil {
		return zero, false, err
	}
	return item, true, nil
}

// Update applies patch to the record and refreshes its updatedAt. Ownership
// fields in patch are ignored.
func (s *Store[T]) Update(ctx context.Context, id string, patch Fields) (T, error) {
	var zero T

	doc, err := s.load(ctx, "update "+s.kind.Collection, id)
	if err != nil {
		return zero, err
	}

	changes := stripWriteOnce(patch)
	if err := s.kind.Rules.Validate(changes); err != nil {
		return zero, err
	}
	changes["updated_at"] = time.Now().Unix()

	err = s.records.Update(ctx, s.kind.Collection, id, changes)
	s.invalidate()
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return zero, &errors.NotFoundError{Collection: s.kind.Collection, ID: id}
		}
		return zero, err
	}

	for k, v := range changes {
		doc[k] = v
	}
	return s.kind.Decode(doc)
}

// Delete removes the record from the current organization.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, "delete "+s.kind.Collection, id); err != nil {
		return err
	}

	err := s.records.Delete(ctx, s.kind.Collection, id)
	s.invalidate()
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return &errors.NotFoundError{Collection: s.kind.Collection, ID: id}
		}
		return err
	}
	return nil
}
