package handlers

import (
	"net/http"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/models"
)

type ProjectHandler struct{}

func NewProjectHandler() *ProjectHandler {
	return &ProjectHandler{}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := workspaceFrom(r).Projects.List(r.Context())
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	if status := models.ProjectStatus(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown status", nil)
			return
		}
		filtered := make([]*models.Project, 0, len(projects))
		for _, p := range projects {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	writeJSON(w, http.StatusOK, map[string][]*models.Project{"projects": projects})
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ProjectInput
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := workspaceFrom(r).Projects.CreateProject(r.Context(), req)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok, err := workspaceFrom(r).Projects.GetByID(r.Context(), param(r, "id"))
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Project not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	project, err := workspaceFrom(r).Projects.Update(r.Context(), param(r, "id"), fields)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete removes a project and its tasks. When some tasks could not be
// removed the project is still gone and the reply lists the failed ids.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := workspaceFrom(r).Projects.Delete(r.Context(), param(r, "id")); err != nil {
		errors.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r)
	id := param(r, "id")

	if _, ok, err := ws.Projects.GetByID(r.Context(), id); err != nil {
		errors.WriteAppError(w, err)
		return
	} else if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Project not found", nil)
		return
	}

	tasks, err := ws.Tasks.ListByProject(r.Context(), id)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*models.Task{"tasks": tasks})
}
