package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
	"github.com/akshtjain/unifychatsmono/internal/events"
	"github.com/akshtjain/unifychatsmono/internal/store"
)

// sync is the push endpoint: verify the bearer credential, validate the
// snapshot, and hand it to the reconcile path. The owner identity always
// comes from the verified token, never from the body.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var snap chat.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if err := snap.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	conversationID, err := s.store.Reconcile(r.Context(), id.OwnerID, &snap)
	if err != nil {
		s.logger.Error("reconcile failed",
			"owner", id.OwnerID,
			"provider", snap.Provider,
			"external_id", snap.ExternalID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, CodeSyncFailed, "sync failed")
		return
	}

	s.logger.Info("conversation synced",
		"owner", id.OwnerID,
		"provider", snap.Provider,
		"external_id", snap.ExternalID,
		"messages", len(snap.Messages),
	)
	s.events.Publish(events.SubjectConversationSynced, events.ConversationSynced{
		OwnerID:        id.OwnerID,
		ConversationID: conversationID.String(),
		Provider:       snap.Provider,
		ExternalID:     snap.ExternalID,
		MessageCount:   len(snap.Messages),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"conversationId": conversationID,
	})
}

type bookmarkRequest struct {
	Provider     chat.Provider `json:"provider"`
	ExternalID   string        `json:"externalId"`
	MessageIndex *int          `json:"messageIndex,omitempty"`
}

// toggleBookmark flips saved state for a message addressed by position.
func (s *Server) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if req.Provider == "" || req.ExternalID == "" || req.MessageIndex == nil || *req.MessageIndex < 0 {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing required fields: provider, externalId, or messageIndex")
		return
	}
	if !chat.ValidProvider(req.Provider) {
		writeError(w, http.StatusBadRequest, CodeInvalidProvider, "invalid provider: "+string(req.Provider))
		return
	}

	bookmarked, err := s.store.ToggleBookmark(r.Context(), id.OwnerID, req.Provider, req.ExternalID, *req.MessageIndex)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation not synced yet - sync first")
			return
		}
		s.logger.Error("bookmark toggle failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeBookmarkFailed, "bookmark toggle failed")
		return
	}

	s.events.Publish(events.SubjectBookmarkToggled, events.BookmarkToggled{
		OwnerID:    id.OwnerID,
		Provider:   req.Provider,
		ExternalID: req.ExternalID,
		Position:   *req.MessageIndex,
		Bookmarked: bookmarked,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"bookmarked":   bookmarked,
		"messageIndex": *req.MessageIndex,
	})
}

type bookmarkNoteRequest struct {
	Provider     chat.Provider `json:"provider"`
	ExternalID   string        `json:"externalId"`
	MessageIndex *int          `json:"messageIndex,omitempty"`
	Note         *string       `json:"note,omitempty"`
}

// updateBookmarkNote attaches or rewrites the note on an existing bookmark.
func (s *Server) updateBookmarkNote(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req bookmarkNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if req.Provider == "" || req.ExternalID == "" || req.MessageIndex == nil || *req.MessageIndex < 0 || req.Note == nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing required fields: provider, externalId, messageIndex, or note")
		return
	}

	err = s.store.UpdateBookmarkNote(r.Context(), id.OwnerID, req.Provider, req.ExternalID, *req.MessageIndex, *req.Note)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "bookmark not found")
			return
		}
		s.logger.Error("bookmark note update failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeBookmarkFailed, "bookmark note update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// bookmarkStatus returns the bookmarked positions of one conversation.
func (s *Server) bookmarkStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "malformed request body")
		return
	}
	if req.Provider == "" || req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing required fields: provider or externalId")
		return
	}

	positions, err := s.store.BookmarkedPositions(r.Context(), id.OwnerID, req.Provider, req.ExternalID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation not synced yet - sync first")
			return
		}
		s.logger.Error("bookmark status failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeBookmarkFailed, "bookmark status failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"bookmarkedIndices": positions,
	})
}

func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	items, err := s.store.ListBookmarks(r.Context(), id.OwnerID)
	if err != nil {
		s.logger.Error("list bookmarks failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "list bookmarks failed")
		return
	}
	if items == nil {
		items = []store.BookmarkListItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookmarks": items})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeMissingFields, "missing query parameter")
		return
	}
	provider := chat.Provider(r.URL.Query().Get("provider"))
	if provider != "" && !chat.ValidProvider(provider) {
		writeError(w, http.StatusBadRequest, CodeInvalidProvider, "invalid provider: "+string(provider))
		return
	}
	role := chat.Role(r.URL.Query().Get("role"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.store.SearchMessages(r.Context(), id.OwnerID, q, provider, role, limit)
	if err != nil {
		s.logger.Error("search failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "search failed")
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) recentMessages(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	provider := chat.Provider(r.URL.Query().Get("provider"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.store.RecentMessages(r.Context(), id.OwnerID, provider, limit)
	if err != nil {
		s.logger.Error("recent messages failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "recent messages failed")
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	provider := chat.Provider(r.URL.Query().Get("provider"))
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("project"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeMissingFields, "invalid project id")
			return
		}
		projectID = &parsed
	}

	conversations, err := s.store.ListConversations(r.Context(), id.OwnerID, provider, projectID)
	if err != nil {
		s.logger.Error("list conversations failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "list conversations failed")
		return
	}
	if conversations == nil {
		conversations = []chat.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

// getConversation returns one conversation with its ordered messages, the
// dashboard's detail view.
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
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

	conv, err := s.store.GetConversationByID(r.Context(), id.OwnerID, conversationID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation not found")
			return
		}
		s.logger.Error("get conversation failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "get conversation failed")
		return
	}

	messages, err := s.store.ConversationMessages(r.Context(), id.OwnerID, conversationID)
	if err != nil {
		s.logger.Error("conversation messages failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "get conversation failed")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
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

	if err := s.store.DeleteConversation(r.Context(), id.OwnerID, conversationID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, CodeNotSynced, "conversation not found")
			return
		}
		s.logger.Error("delete conversation failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	st, err := s.store.GetStats(r.Context(), id.OwnerID)
	if err != nil {
		s.logger.Error("stats failed", "owner", id.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
