package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
	"github.com/akshtjain/unifychatsmono/internal/store"
)

type exportRequest struct {
	ConversationIDs []uuid.UUID       `json:"conversationIds"`
	Format          chat.ExportFormat `json:"format"`
}

// createExport records the request, renders the document synchronously, and
// returns both. Generation is cheap enough that no background job is needed.
func (s *Server) createExport(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if len(req.ConversationIDs) == 0 {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing required field: conversationIds")
		return
	}
	if !chat.ValidExportFormat(req.Format) {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid export format: "+string(req.Format))
		return
	}

	rec, err := s.store.CreateExport(r.Context(), id.OwnerID, req.ConversationIDs, req.Format)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation not found")
			return
		}
		s.logger.Error("create export failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "create export failed")
		return
	}

	bundles, err := s.store.ExportData(r.Context(), id.OwnerID, req.ConversationIDs)
	if err != nil {
		s.logger.Error("export data failed", "owner", id.OwnerID, "export", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "export generation failed")
		return
	}
	content, err := chat.RenderExport(req.Format, bundles)
	if err != nil {
		s.logger.Error("export render failed", "owner", id.OwnerID, "export", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "export generation failed")
		return
	}
	if err := s.store.CompleteExport(r.Context(), id.OwnerID, rec.ID); err != nil {
		s.logger.Error("complete export failed", "owner", id.OwnerID, "export", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "export generation failed")
		return
	}
	rec.Status = "completed"

	s.logger.Info("export generated",
		"owner", id.OwnerID,
		"export", rec.ID,
		"format", req.Format,
		"conversations", len(req.ConversationIDs),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"export":  rec,
		"content": content,
	})
}

func (s *Server) listExports(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	exports, err := s.store.ListExports(r.Context(), id.OwnerID)
	if err != nil {
		s.logger.Error("list exports failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "list exports failed")
		return
	}
	if exports == nil {
		exports = []store.ExportRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": exports})
}
