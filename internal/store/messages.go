package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// SearchResult is one message hit with its conversation context attached.
type SearchResult struct {
	Message           chat.Message `json:"message"`
	ConversationTitle string       `json:"conversationTitle"`
	ConversationURL   string       `json:"conversationUrl"`
}

// escapeLike neutralizes LIKE metacharacters so a query of "%" matches a
// literal percent sign instead of every message.
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}

// SearchMessages finds messages whose content matches the query, scoped to
// one owner and optionally filtered by provider and role.
func (s *Store) SearchMessages(ctx context.Context, ownerID, query string, provider chat.Provider, role chat.Role, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sql := `
		SELECT m.id, m.conversation_id, m.owner_id, m.provider, m.role, m.content,
		       m.preview, m.position, m.captured_at, c.title, c.url
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.owner_id = $1 AND m.content ILIKE '%' || $2 || '%' ESCAPE '\'`
	args := []any{ownerID, escapeLike(query)}
	if provider != "" {
		args = append(args, provider)
		sql += fmt.Sprintf(" AND m.provider = $%d", len(args))
	}
	if role != "" {
		args = append(args, role)
		sql += fmt.Sprintf(" AND m.role = $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY m.captured_at DESC, m.position LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.Message.ID, &r.Message.ConversationID, &r.Message.OwnerID, &r.Message.Provider,
			&r.Message.Role, &r.Message.Content, &r.Message.Preview, &r.Message.Position,
			&r.Message.CapturedAt, &r.ConversationTitle, &r.ConversationURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentMessages returns the owner's most recently captured messages across
// all conversations.
func (s *Store) RecentMessages(ctx context.Context, ownerID string, provider chat.Provider, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `
		SELECT m.id, m.conversation_id, m.owner_id, m.provider, m.role, m.content,
		       m.preview, m.position, m.captured_at, c.title, c.url
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.owner_id = $1`
	args := []any{ownerID}
	if provider != "" {
		args = append(args, provider)
		sql += fmt.Sprintf(" AND m.provider = $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY m.captured_at DESC, m.position DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(
			&r.Message.ID, &r.Message.ConversationID, &r.Message.OwnerID, &r.Message.Provider,
			&r.Message.Role, &r.Message.Content, &r.Message.Preview, &r.Message.Position,
			&r.Message.CapturedAt, &r.ConversationTitle, &r.ConversationURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ConversationMessages returns the stored messages of one conversation in
// positional order, after checking owner access.
func (s *Store) ConversationMessages(ctx context.Context, ownerID string, conversationID uuid.UUID) ([]chat.Message, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `
		SELECT owner_id FROM conversations WHERE id = $1`, conversationID,
	).Scan(&owner)
	if err != nil || owner != ownerID {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, owner_id, provider, role, content, preview, position, captured_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY position`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		err := rows.Scan(&m.ID, &m.ConversationID, &m.OwnerID, &m.Provider, &m.Role, &m.Content, &m.Preview, &m.Position, &m.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
