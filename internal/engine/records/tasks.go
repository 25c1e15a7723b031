package records

import (
	"context"

	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

var taskKind = Kind[*models.Task]{
	Collection: provider.Tasks,
	Decode:     models.DecodeTask,
	Rules:      models.TaskFields,
}

type Tasks struct {
	*Store[*models.Task]
}

func NewTasks(records provider.Records, identity IdentitySource, selection Selection) *Tasks {
	return &Tasks{Store: NewStore(records, identity, selection, taskKind)}
}

func (t *Tasks) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	doc, err := in.Document()
	if err != nil {
		return nil, err
	}
	return t.Create(ctx, doc)
}

func (t *Tasks) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	return t.Update(ctx, id, patch.Fields())
}

// ByProject returns the cached tasks of one project.
func (t *Tasks) ByProject(projectID string) []*models.Task {
	return t.Filter(func(task *models.Task) bool { return task.ProjectID == projectID })
}

// ByStatus groups the cached tasks by status. Every status has an entry.
func (t *Tasks) ByStatus() map[models.TaskStatus][]*models.Task {
	groups := map[models.TaskStatus][]*models.Task{
		models.TaskTodo:       {},
		models.TaskInProgress: {},
		models.TaskInReview:   {},
		models.TaskDone:       {},
	}
	items, _ := t.Snapshot()
	for _, task := range items {
		groups[task.Status] = append(groups[task.Status], task)
	}
	return groups
}

// ListByProject reads the tasks of one project from the provider.
func (t *Tasks) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	org, ok := t.Organization()
	if !ok {
		return []*models.Task{}, nil
	}

	docs, err := t.records.Read(ctx, provider.Tasks, provider.Filter{"organization_id": org, "project_id": projectID})
	if err != nil {
		return nil, err
	}
	tasks := make([]*models.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := models.DecodeTask(doc)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
