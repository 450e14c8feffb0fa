package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// Reconcile merges one snapshot into storage for the given owner: upsert the
// conversation by natural key, replace its full message set in array order,
// and prune bookmarks that now point past the end of the conversation.
// Everything runs in one transaction so a crash mid-replace never leaves a
// partial message set behind.
func (s *Store) Reconcile(ctx context.Context, ownerID string, snap *chat.Snapshot) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Empty title/url from a later push keeps the previously stored value.
	var conversationID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id, owner_id, provider, external_id, title, url, message_count, last_synced_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (owner_id, provider, external_id) DO UPDATE SET
			title          = COALESCE(NULLIF(EXCLUDED.title, ''), conversations.title),
			url            = COALESCE(NULLIF(EXCLUDED.url, ''), conversations.url),
			message_count  = EXCLUDED.message_count,
			last_synced_at = now()
		RETURNING id`,
		uuid.New(), ownerID, snap.Provider, snap.ExternalID, snap.Title, snap.URL, len(snap.Messages),
	).Scan(&conversationID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
		return uuid.Nil, fmt.Errorf("delete messages: %w", err)
	}

	for i, msg := range snap.Messages {
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, owner_id, provider, role, content, preview, position, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
			uuid.New(), conversationID, ownerID, snap.Provider, msg.Role, msg.Content, chat.Preview(msg.Content), i,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	// A shorter snapshot invalidates bookmarks past its end.
	if _, err := tx.Exec(ctx, `
		DELETE FROM bookmarks WHERE conversation_id = $1 AND position >= $2`,
		conversationID, len(snap.Messages),
	); err != nil {
		return uuid.Nil, fmt.Errorf("prune bookmarks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return conversationID, nil
}

// GetConversation resolves a conversation by natural key.
func (s *Store) GetConversation(ctx context.Context, ownerID string, provider chat.Provider, externalID string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, provider, external_id, title, url, project_id, message_count, last_synced_at, created_at
		FROM conversations
		WHERE owner_id = $1 AND provider = $2 AND external_id = $3`,
		ownerID, provider, externalID,
	)
	return scanConversation(row)
}

// GetConversationByID resolves a conversation by storage id, owner-scoped.
func (s *Store) GetConversationByID(ctx context.Context, ownerID string, conversationID uuid.UUID) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, provider, external_id, title, url, project_id, message_count, last_synced_at, created_at
		FROM conversations
		WHERE id = $1 AND owner_id = $2`,
		conversationID, ownerID,
	)
	return scanConversation(row)
}

// ListConversations returns the owner's conversations, most recently synced
// first, optionally filtered by provider and project.
func (s *Store) ListConversations(ctx context.Context, ownerID string, provider chat.Provider, projectID *uuid.UUID) ([]chat.Conversation, error) {
	query := `
		SELECT id, owner_id, provider, external_id, title, url, project_id, message_count, last_synced_at, created_at
		FROM conversations
		WHERE owner_id = $1`
	args := []any{ownerID}
	if provider != "" {
		args = append(args, provider)
		query += fmt.Sprintf(" AND provider = $%d", len(args))
	}
	if projectID != nil {
		args = append(args, *projectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	query += ` ORDER BY last_synced_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation the owner controls; messages and
// bookmarks go with it via cascade.
func (s *Store) DeleteConversation(ctx context.Context, ownerID string, conversationID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM conversations WHERE id = $1 AND owner_id = $2`,
		conversationID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarises an owner's synced data for the dashboard.
type Stats struct {
	TotalConversations int            `json:"totalConversations"`
	TotalMessages      int            `json:"totalMessages"`
	TotalBookmarks     int            `json:"totalBookmarks"`
	ByProvider         map[string]int `json:"byProvider"`
}

// GetStats computes conversation/message/bookmark totals for one owner.
func (s *Store) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	stats := &Stats{ByProvider: make(map[string]int)}
	for _, p := range chat.Providers {
		stats.ByProvider[string(p)] = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT provider, count(*), COALESCE(sum(message_count), 0)
		FROM conversations WHERE owner_id = $1 GROUP BY provider`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var convs, msgs int
		if err := rows.Scan(&provider, &convs, &msgs); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByProvider[provider] = convs
		stats.TotalConversations += convs
		stats.TotalMessages += msgs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM bookmarks WHERE owner_id = $1`, ownerID,
	).Scan(&stats.TotalBookmarks)
	if err != nil {
		return nil, fmt.Errorf("bookmark stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.ExternalID, &c.Title, &c.URL, &c.ProjectID, &c.MessageCount, &c.LastSyncedAt, &c.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}
