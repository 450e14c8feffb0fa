package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

type projectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing required field: name")
		return
	}

	project, err := s.store.CreateProject(r.Context(), id.OwnerID, *req.Name, deref(req.Description), deref(req.Color))
	if err != nil {
		s.logger.Error("create project failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "create project failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	projects, err := s.store.ListProjects(r.Context(), id.OwnerID)
	if err != nil {
		s.logger.Error("list projects failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "list projects failed")
		return
	}
	if projects == nil {
		projects = []chat.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid project id")
		return
	}

	project, err := s.store.GetProject(r.Context(), id.OwnerID, projectID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "project not found")
			return
		}
		s.logger.Error("get project failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "get project failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid project id")
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}

	project, err := s.store.UpdateProject(r.Context(), id.OwnerID, projectID, req.Name, req.Description, req.Color)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "project not found")
			return
		}
		s.logger.Error("update project failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "update project failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid project id")
		return
	}

	if err := s.store.DeleteProject(r.Context(), id.OwnerID, projectID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "project not found")
			return
		}
		s.logger.Error("delete project failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "delete project failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) projectStats(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid project id")
		return
	}

	stats, err := s.store.GetProjectStats(r.Context(), id.OwnerID, projectID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "project not found")
			return
		}
		s.logger.Error("project stats failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "project stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type assignProjectRequest struct {
	// ProjectID null (or absent) unassigns the conversation.
	ProjectID *uuid.UUID `json:"projectId"`
}

func (s *Server) assignConversationProject(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid conversation id")
		return
	}

	var req assignProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}

	if err := s.store.AssignConversationProject(r.Context(), id.OwnerID, conversationID, req.ProjectID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation or project not found")
			return
		}
		s.logger.Error("assign project failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "assign project failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
