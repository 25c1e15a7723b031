package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
	"taskhub/internal/platform/provider"
)

var projectKind = Kind[*models.Project]{
	Collection: provider.Projects,
	Decode:     models.DecodeProject,
	Rules:      models.ProjectFields,
}

// cascadeWorkers caps concurrent task deletions when a project is deleted.
const cascadeWorkers = 8

type Projects struct {
	*Store[*models.Project]
	tasks *Tasks
}

func NewProjects(records provider.Records, identity IdentitySource, selection Selection, tasks *Tasks) *Projects {
	return &Projects{Store: NewStore(records, identity, selection, projectKind), tasks: tasks}
}

func (p *Projects) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	doc, err := in.Document()
	if err != nil {
		return nil, err
	}
	return p.Create(ctx, doc)
}

func (p *Projects) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	return p.Update(ctx, id, patch.Fields())
}

// ByStatus groups the cached projects by status. Every status has an entry.
func (p *Projects) ByStatus() map[models.ProjectStatus][]*models.Project {
	groups := map[models.ProjectStatus][]*models.Project{
		models.ProjectPlanning:  {},
		models.ProjectActive:    {},
		models.ProjectOnHold:    {},
		models.ProjectCompleted: {},
	}
	items, _ := p.Snapshot()
	for _, project := range items {
		groups[project.Status] = append(groups[project.Status], project)
	}
	return groups
}

// Delete removes the project and then its tasks. Task deletions run
// concurrently, at most cascadeWorkers at a time, and every one is attempted;
// if any fail the project stays deleted and a *errors.PartialFailureError
// names the failed tasks.
func (p *Projects) Delete(ctx context.Context, id string) error {
	if err := p.Store.Delete(ctx, id); err != nil {
		return err
	}
	defer p.tasks.invalidate()

	org, _ := p.Organization()
	docs, err := p.records.Read(ctx, provider.Tasks, provider.Filter{"organization_id": org, "project_id": id})
	if err != nil {
		return &errors.PartialFailureError{
			Op:     "delete project " + id,
			Failed: map[string]error{"tasks": fmt.Errorf("list tasks: %w", err)},
		}
	}

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cascadeWorkers)
	for _, doc := range docs {
		taskID := doc.ID()
		g.Go(func() error {
			err := p.records.Delete(gctx, provider.Tasks, taskID)
			if err != nil && !errors.Is(err, provider.ErrNotFound) {
				mu.Lock()
				failed[taskID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers record failures in failed and never return one, so Wait only
	// joins them.
	_ = g.Wait()

	if len(failed) > 0 {
		log.Warn().Str("project_id", id).Int("failed", len(failed)).Msg("project deleted with orphaned tasks")
		return &errors.PartialFailureError{Op: "delete project " + id, Failed: failed}
	}

	log.Debug().Str("project_id", id).Int("tasks", len(docs)).Msg("project deleted")
	return nil
}

// Progress returns the share of a project's cached tasks that are done, as
// a percentage. It is zero for a project without tasks.
func (p *Projects) Progress(projectID string) int {
	tasks := p.tasks.ByProject(projectID)
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Status == models.TaskDone {
			done++
		}
	}
	return done * 100 / len(tasks)
}
