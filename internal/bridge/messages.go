// Package bridge carries typed messages between the scheduler (and CLI
// surfaces) and the background executor that owns the credential and the
// backend connection. The contract mirrors the extension's runtime
// messaging: every message is a named request/response pair except the
// beacon, which expects no response.
package bridge

import (
	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// Type names a message in the scheduler/executor contract.
type Type string

const (
	TypeSyncConversation       Type = "SYNC_CONVERSATION"
	TypeSyncConversationBeacon Type = "SYNC_CONVERSATION_BEACON"
	TypeGetAuthStatus          Type = "GET_AUTH_STATUS"
	TypeToggleBookmark         Type = "TOGGLE_BOOKMARK"
	TypeGetBookmarkStatus      Type = "GET_BOOKMARK_STATUS"
	TypeSetAuthToken           Type = "SET_AUTH_TOKEN"
	TypeLogout                 Type = "LOGOUT"
)

// Request is one message to the executor. Only the fields relevant to the
// message type are set.
type Request struct {
	Type Type

	// SYNC_CONVERSATION / SYNC_CONVERSATION_BEACON
	Snapshot *chat.Snapshot

	// TOGGLE_BOOKMARK / GET_BOOKMARK_STATUS
	Provider   chat.Provider
	ExternalID string
	Position   int

	// SET_AUTH_TOKEN
	Token      string
	BackendURL string
}

// Response is the executor's typed answer.
type Response struct {
	Err error

	// SYNC_CONVERSATION
	ConversationID string

	// GET_AUTH_STATUS
	Authenticated bool

	// TOGGLE_BOOKMARK
	Bookmarked bool

	// GET_BOOKMARK_STATUS
	Positions []int
}
