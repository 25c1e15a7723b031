// Package audit records organization lifecycle events such as members
// joining and invitations being issued.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"taskhub/internal/pkg/parser"
)

const (
	ActionOrganizationCreated = "organization.created"
	ActionMemberJoined        = "member.joined"
	ActionMemberLeft          = "member.left"
	ActionInvitationCreated   = "invitation.created"
	ActionInvitationRevoked   = "invitation.revoked"
)

// Event is what callers report; Log fills in the rest.
type Event struct {
	OrganizationID string
	UserID         string
	Action         string
	ResourceType   string
	ResourceID     string
	Metadata       map[string]interface{}
}

type Entry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id,omitempty"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	Client         string                 `json:"client,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
}

type ctxKey int

const (
	requestKey ctxKey = iota
	actorKey
)

type requestInfo struct {
	ip     string
	client string
}

// WithRequest attaches the caller's address and a readable client
// description to ctx.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return context.WithValue(ctx, requestKey, requestInfo{ip: host, client: parser.Describe(r.UserAgent())})
}

// WithActor names the signed-in user responsible for events logged with ctx.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log stores e. A failed write is logged and otherwise ignored so that
// auditing never fails the operation being audited.
func (l *Logger) Log(ctx context.Context, e Event) {
	entry := Entry{
		ID:             "audit_" + uuid.NewString(),
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		Action:         e.Action,
		ResourceType:   e.ResourceType,
		ResourceID:     e.ResourceID,
		Metadata:       e.Metadata,
		CreatedAt:      time.Now().Unix(),
	}
	if entry.UserID == "" {
		entry.UserID, _ = ctx.Value(actorKey).(string)
	}
	if info, ok := ctx.Value(requestKey).(requestInfo); ok {
		entry.IPAddress = info.ip
		entry.Client = info.client
	}

	var meta interface{}
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			log.Warn().Err(err).Str("action", e.Action).Msg("dropping unencodable audit metadata")
		} else {
			meta = string(b)
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, client, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrganizationID, nullable(entry.UserID), entry.Action, entry.ResourceType, nullable(entry.ResourceID),
		meta, nullable(entry.IPAddress), nullable(entry.Client), entry.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("action", e.Action).Str("organization_id", e.OrganizationID).Msg("failed to write audit log")
	}
}

// List returns the newest entries of orgID, at most limit of them.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, client, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var userID, resourceID, meta, ip, client sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &userID, &e.Action, &e.ResourceType, &resourceID, &meta, &ip, &client, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("list audit logs: %w", err)
		}
		e.UserID = userID.String
		e.ResourceID = resourceID.String
		e.IPAddress = ip.String
		e.Client = client.String
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				log.Warn().Err(err).Str("audit_id", e.ID).Msg("unreadable audit metadata")
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
