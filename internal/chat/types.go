package chat

import (
	"time"

	"github.com/google/uuid"
)

// PreviewLen is how much of a message's content is stored as its preview.
const PreviewLen = 100

// Provider identifies which AI chat platform a conversation came from.
type Provider string

const (
	ProviderChatGPT    Provider = "chatgpt"
	ProviderClaude     Provider = "claude"
	ProviderGemini     Provider = "gemini"
	ProviderGrok       Provider = "grok"
	ProviderPerplexity Provider = "perplexity"
)

// Providers lists every supported provider.
var Providers = []Provider{
	ProviderChatGPT,
	ProviderClaude,
	ProviderGemini,
	ProviderGrok,
	ProviderPerplexity,
}

// ValidProvider reports whether p is one of the supported providers.
func ValidProvider(p Provider) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Role is the author of a single conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SnapshotMessage is one turn in a snapshot as collected from the live page.
type SnapshotMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// Snapshot is one complete, ordered capture of a conversation at push time.
// It is never persisted as-is; the reconcile path replaces the stored message
// set with its contents.
type Snapshot struct {
	Provider   Provider          `json:"provider"`
	ExternalID string            `json:"externalId"`
	Title      string            `json:"title,omitempty"`
	URL        string            `json:"url,omitempty"`
	Messages   []SnapshotMessage `json:"messages"`
}

// Conversation is one externally-owned chat thread known to one owner.
// (OwnerID, Provider, ExternalID) is the natural key used for upsert.
type Conversation struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Provider     Provider   `json:"provider"`
	ExternalID   string     `json:"externalId"`
	Title        string     `json:"title,omitempty"`
	URL          string     `json:"url,omitempty"`
	ProjectID    *uuid.UUID `json:"projectId,omitempty"`
	MessageCount int        `json:"messageCount"`
	LastSyncedAt time.Time  `json:"lastSyncedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Project is an owner-defined folder for grouping conversations. Deleting a
// project unassigns its conversations rather than deleting them.
type Project struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is one stored turn. Storage identity is not stable across pushes:
// reconcile deletes and reinserts every row, so Position is the only
// cross-push address.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	OwnerID        string    `json:"ownerId"`
	Provider       Provider  `json:"provider"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Preview        string    `json:"preview"`
	Position       int       `json:"position"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// Bookmark marks one message position in a conversation. Keying by position
// rather than message id is what keeps bookmarks resolvable after every
// reconcile replaces the message rows.
type Bookmark struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        string    `json:"ownerId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Position       int       `json:"position"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Preview returns the first PreviewLen characters of content, respecting
// rune boundaries.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLen {
		return content
	}
	return string(runes[:PreviewLen])
}
