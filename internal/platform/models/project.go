package models

import "fmt"

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "Planning"
	ProjectActive    ProjectStatus = "Active"
	ProjectOnHold    ProjectStatus = "On Hold"
	ProjectCompleted ProjectStatus = "Completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ProjectStatus `json:"status"`
	Progress       int           `json:"progress"`
	DueDate        *int64        `json:"due_date,omitempty"`
	OrganizationID string        `json:"organization_id"`
	CreatedBy      string        `json:"created_by"`
	CreatedAt      int64         `json:"created_at"`
	UpdatedAt      int64         `json:"updated_at"`
}

func (p *Project) RecordID() string { return p.ID }
func (p *Project) OrgID() string    { return p.OrganizationID }

func DecodeProject(doc Document) (*Project, error) {
	dec := newDecoder("projects", doc)
	p := &Project{
		ID:             dec.requiredString("id"),
		Name:           dec.requiredString("name"),
		Description:    dec.optionalString("description"),
		Status:         ProjectStatus(dec.requiredString("status")),
		Progress:       int(dec.optionalInt("progress")),
		DueDate:        dec.nullableInt("due_date"),
		OrganizationID: dec.requiredString("organization_id"),
		CreatedBy:      dec.requiredString("created_by"),
		CreatedAt:      dec.requiredInt("created_at"),
		UpdatedAt:      dec.requiredInt("updated_at"),
	}
	dec.check("status", p.Status.Valid())
	dec.check("progress", p.Progress >= 0 && p.Progress <= 100)
	if dec.err != nil {
		return nil, dec.err
	}
	return p, nil
}

type ProjectInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	DueDate     *int64        `json:"due_date"`
}

func (in ProjectInput) Document() (Document, error) {
	if in.Status == "" {
		in.Status = ProjectPlanning
	}

	doc := Document{
		"name":        in.Name,
		"description": in.Description,
		"status":      string(in.Status),
		"progress":    int64(in.Progress),
		"due_date":    nil,
	}
	if in.DueDate != nil {
		doc["due_date"] = *in.DueDate
	}

	if err := ProjectFields.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type ProjectPatch struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Status      *ProjectStatus `json:"status"`
	Progress    *int           `json:"progress"`
	DueDate     NullInt64      `json:"due_date"`
}

func (p ProjectPatch) Fields() Document {
	doc := Document{}
	if p.Name != nil {
		doc["name"] = *p.Name
	}
	if p.Description != nil {
		doc["description"] = *p.Description
	}
	if p.Status != nil {
		doc["status"] = string(*p.Status)
	}
	if p.Progress != nil {
		doc["progress"] = int64(*p.Progress)
	}
	if p.DueDate.Set {
		doc["due_date"] = p.DueDate.value()
	}
	return doc
}

var ProjectFields = FieldRules{
	"name":        nonEmptyString,
	"description": anyString,
	"status": func(v interface{}) error {
		s, _ := asString(v)
		if !ProjectStatus(s).Valid() {
			return fmt.Errorf("must be one of %q, %q, %q, %q", ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted)
		}
		return nil
	},
	"progress": func(v interface{}) error {
		n, ok := asInt(v)
		if !ok || n < 0 || n > 100 {
			return fmt.Errorf("must be between 0 and 100")
		}
		return nil
	},
	"due_date": nullableInt,
}
