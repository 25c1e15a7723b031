package provider

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"taskhub/internal/platform/models"
)

type collectionSchema struct {
	idPrefix string
	columns  []string
}

var schemas = map[string]collectionSchema{
	Profiles: {
		columns: []string{"id", "first_name", "last_name", "avatar_url", "created_at", "updated_at"},
	},
	Organizations: {
		idPrefix: "org_",
		columns:  []string{"id", "name", "team_size", "plan", "subscription_status", "created_at", "updated_at"},
	},
	Members: {
		idPrefix: "mem_",
		columns:  []string{"id", "organization_id", "user_id", "role", "status", "created_at", "updated_at"},
	},
	Invitations: {
		idPrefix: "inv_",
		columns: []string{"id", "organization_id", "code", "email", "role", "invited_by", "status",
			"max_uses", "uses", "expires_at", "created_at", "updated_at"},
	},
	Projects: {
		idPrefix: "prj_",
		columns: []string{"id", "name", "description", "status", "progress", "due_date",
			"organization_id", "created_by", "created_at", "updated_at"},
	},
	Tasks: {
		idPrefix: "task_",
		columns: []string{"id", "title", "description", "status", "priority", "due_date", "project_id",
			"organization_id", "created_by", "created_at", "updated_at"},
	},
}

func (s collectionSchema) has(column string) bool {
	for _, c := range s.columns {
		if c == column {
			return true
		}
	}
	return false
}

// SQLProvider implements Provider on top of the SQLite schema in
// internal/platform/database/migrations.
type SQLProvider struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLProvider(db *sql.DB, timeout time.Duration) *SQLProvider {
	return &SQLProvider{db: db, timeout: timeout}
}

// bound caps a provider round-trip so a hung backend surfaces as an error.
func (p *SQLProvider) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func lookupSchema(collection string) (collectionSchema, error) {
	s, ok := schemas[collection]
	if !ok {
		return collectionSchema{}, fmt.Errorf("unknown collection %q", collection)
	}
	return s, nil
}

func (p *SQLProvider) Read(ctx context.Context, collection string, filter Filter) ([]models.Document, error) {
	schema, err := lookupSchema(collection)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(schema, filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at DESC, id ASC",
		strings.Join(schema.columns, ", "), collection, where)

	ctx, cancel := p.bound(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows, schema.columns)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return docs, nil
}

func (p *SQLProvider) ReadOne(ctx context.Context, collection, id string) (models.Document, error) {
	docs, err := p.Read(ctx, collection, Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (p *SQLProvider) Create(ctx context.Context, collection string, fields models.Document) (string, error) {
	schema, err := lookupSchema(collection)
	if err != nil {
		return "", err
	}

	doc := make(models.Document, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	id := doc.ID()
	if id == "" {
		id = schema.idPrefix + uuid.NewString()
		doc["id"] = id
	}

	columns := sortedKeys(doc)
	for _, c := range columns {
		if !schema.has(c) {
			return "", fmt.Errorf("create %s: unknown field %q", collection, c)
		}
	}

	args := make([]interface{}, len(columns))
	for i, c := range columns {
		args[i] = doc[c]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", collection, strings.Join(columns, ", "), placeholders)

	ctx, cancel := p.bound(ctx)
	defer cancel()

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("create %s: %w", collection, ErrDuplicate)
		}
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

func (p *SQLProvider) Update(ctx context.Context, collection, id string, fields models.Document) error {
	schema, err := lookupSchema(collection)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	columns := sortedKeys(fields)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, c := range columns {
		if c == "id" || !schema.has(c) {
			return fmt.Errorf("update %s: field %q is not updatable", collection, c)
		}
		sets[i] = c + " = ?"
		args = append(args, fields[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", collection, strings.Join(sets, ", "))

	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update %s: %w", collection, ErrDuplicate)
		}
		return fmt.Errorf("update %s: %w", collection, err)
	}
	return requireAffected(res)
}

func (p *SQLProvider) Delete(ctx context.Context, collection, id string) error {
	if _, err := lookupSchema(collection); err != nil {
		return err
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", collection), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return requireAffected(res)
}

func (p *SQLProvider) ClaimInvitationUse(ctx context.Context, id string, now int64) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx, `UPDATE invitations SET uses = uses + 1, updated_at = ?
		WHERE id = ? AND status = ? AND uses < max_uses AND expires_at > ?`,
		now, id, string(models.InvitationPending), now)
	if err != nil {
		return fmt.Errorf("claim invitation: %w", err)
	}
	return requireAffected(res)
}

func (p *SQLProvider) ReleaseInvitationUse(ctx context.Context, id string, now int64) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx, `UPDATE invitations SET uses = uses - 1, updated_at = ? WHERE id = ? AND uses > 0`, now, id)
	if err != nil {
		return fmt.Errorf("release invitation: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(schema collectionSchema, filter Filter) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	var args []interface{}
	for _, k := range keys {
		if !schema.has(k) {
			return "", nil, fmt.Errorf("cannot filter on unknown field %q", k)
		}
		if filter[k] == nil {
			clauses = append(clauses, k+" IS NULL")
			continue
		}
		clauses = append(clauses, k+" = ?")
		args = append(args, filter[k])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanDocument(rows *sql.Rows, columns []string) (models.Document, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	doc := make(models.Document, len(columns))
	for i, c := range columns {
		if b, ok := values[i].([]byte); ok {
			doc[c] = string(b)
			continue
		}
		doc[c] = values[i]
	}
	return doc, nil
}

func sortedKeys(doc models.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
