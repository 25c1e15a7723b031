package models

import (
	"fmt"
	"strings"

	"taskhub/internal/pkg/errors"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "To Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskInReview   TaskStatus = "In Review"
	TaskDone       TaskStatus = "Done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskInReview, TaskDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        *int64     `json:"due_date,omitempty"`
	ProjectID      string     `json:"project_id,omitempty"`
	OrganizationID string     `json:"organization_id"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      int64      `json:"created_at"`
	UpdatedAt      int64      `json:"updated_at"`
}

func (t *Task) RecordID() string { return t.ID }
func (t *Task) OrgID() string    { return t.OrganizationID }

func DecodeTask(doc Document) (*Task, error) {
	dec := newDecoder("tasks", doc)
	t := &Task{
		ID:             dec.requiredString("id"),
		Title:          dec.requiredString("title"),
		Description:    dec.optionalString("description"),
		Status:         TaskStatus(dec.requiredString("status")),
		Priority:       Priority(dec.requiredString("priority")),
		DueDate:        dec.nullableInt("due_date"),
		ProjectID:      dec.optionalString("project_id"),
		OrganizationID: dec.requiredString("organization_id"),
		CreatedBy:      dec.requiredString("created_by"),
		CreatedAt:      dec.requiredInt("created_at"),
		UpdatedAt:      dec.requiredInt("updated_at"),
	}
	dec.check("status", t.Status.Valid())
	dec.check("priority", t.Priority.Valid())
	if dec.err != nil {
		return nil, dec.err
	}
	return t, nil
}

// TaskInput holds the caller-supplied fields of a new task. Ownership and
// timestamps are stamped by the scoped store.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *int64     `json:"due_date"`
	ProjectID   string     `json:"project_id"`
}

func (in TaskInput) Document() (Document, error) {
	if in.Status == "" {
		in.Status = TaskTodo
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}

	doc := Document{
		"title":       in.Title,
		"description": in.Description,
		"status":      string(in.Status),
		"priority":    string(in.Priority),
		"due_date":    nil,
		"project_id":  nullable(in.ProjectID),
	}
	if in.DueDate != nil {
		doc["due_date"] = *in.DueDate
	}

	if err := TaskFields.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// TaskPatch is a partial update; nil fields are left untouched. DueDate is
// cleared by an explicit null.
type TaskPatch struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Status      *TaskStatus `json:"status"`
	Priority    *Priority   `json:"priority"`
	DueDate     NullInt64   `json:"due_date"`
	ProjectID   *string     `json:"project_id"`
}

func (p TaskPatch) Fields() Document {
	doc := Document{}
	if p.Title != nil {
		doc["title"] = *p.Title
	}
	if p.Description != nil {
		doc["description"] = *p.Description
	}
	if p.Status != nil {
		doc["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		doc["priority"] = string(*p.Priority)
	}
	if p.DueDate.Set {
		doc["due_date"] = p.DueDate.value()
	}
	if p.ProjectID != nil {
		doc["project_id"] = nullable(*p.ProjectID)
	}
	return doc
}

// FieldRules validates the caller-writable fields of a collection.
type FieldRules map[string]func(v interface{}) error

// Validate checks every key of doc against its rule and rejects unknown keys.
func (r FieldRules) Validate(doc Document) error {
	for field, v := range doc {
		rule, ok := r[field]
		if !ok {
			return errors.NewValidationError(field, "is not writable")
		}
		if err := rule(v); err != nil {
			return errors.NewValidationError(field, err.Error())
		}
	}
	return nil
}

var TaskFields = FieldRules{
	"title":       nonEmptyString,
	"description": anyString,
	"status": func(v interface{}) error {
		s, _ := asString(v)
		if !TaskStatus(s).Valid() {
			return fmt.Errorf("must be one of %q, %q, %q, %q", TaskTodo, TaskInProgress, TaskInReview, TaskDone)
		}
		return nil
	},
	"priority": func(v interface{}) error {
		s, _ := asString(v)
		if !Priority(s).Valid() {
			return fmt.Errorf("must be one of %q, %q, %q", PriorityLow, PriorityMedium, PriorityHigh)
		}
		return nil
	},
	"due_date":   nullableInt,
	"project_id": nullableString,
}

func nonEmptyString(v interface{}) error {
	s, ok := asString(v)
	if !ok {
		return fmt.Errorf("must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

func anyString(v interface{}) error {
	if _, ok := asString(v); !ok {
		return fmt.Errorf("must be a string")
	}
	return nil
}

func nullableString(v interface{}) error {
	if v == nil {
		return nil
	}
	return anyString(v)
}

func nullableInt(v interface{}) error {
	if v == nil {
		return nil
	}
	if _, ok := asInt(v); !ok {
		return fmt.Errorf("must be an integer")
	}
	return nil
}
