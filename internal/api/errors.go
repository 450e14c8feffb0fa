package api

import (
	"errors"
	"net/http"

	"github.com/akshtjain/unifychatsmono/internal/auth"
	"github.com/akshtjain/unifychatsmono/internal/chat"
	"github.com/akshtjain/unifychatsmono/internal/store"
)

// Error codes carried in failure responses. The extension switches on these.
const (
	CodeMissingToken    = "MISSING_TOKEN"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeMissingUserID   = "MISSING_USER_ID"
	CodeMissingFields   = "MISSING_FIELDS"
	CodeInvalidProvider = "INVALID_PROVIDER"
	CodeSyncFailed      = "SYNC_FAILED"
	CodeNotSynced       = "NOT_SYNCED"
	CodeBookmarkFailed  = "BOOKMARK_FAILED"
	CodeInternal        = "INTERNAL"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeAuthError maps Auth Gate failures onto 401 responses.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, CodeMissingToken, "missing bearer token")
	case errors.Is(err, auth.ErrMissingSubject):
		writeError(w, http.StatusUnauthorized, CodeMissingUserID, "token has no user id")
	default:
		writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid or expired token")
	}
}

// writeValidationError maps snapshot validation failures onto 400 responses.
func writeValidationError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrInvalidProvider) {
		writeError(w, http.StatusBadRequest, CodeInvalidProvider, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, CodeMissingFields, err.Error())
}

// isNotFound reports whether err is the store's missing-row sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
