package handlers

import (
	"net/http"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
)

type TaskHandler struct{}

func NewTaskHandler() *TaskHandler {
	return &TaskHandler{}
}

// List returns the tasks of the current organization, optionally narrowed by
// ?status= and ?project_id=.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks := workspaceFrom(r).Tasks

	all, err := tasks.List(r.Context())
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	status := models.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown status", nil)
		return
	}
	projectID := r.URL.Query().Get("project_id")

	out := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		out = append(out, t)
	}

	writeJSON(w, http.StatusOK, map[string][]*models.Task{"tasks": out})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.TaskInput
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := workspaceFrom(r).Tasks.CreateTask(r.Context(), req)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")

	task, ok, err := workspaceFrom(r).Tasks.GetByID(r.Context(), id)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Task not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	task, err := workspaceFrom(r).Tasks.Update(r.Context(), param(r, "id"), fields)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := workspaceFrom(r).Tasks.Delete(r.Context(), param(r, "id")); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
