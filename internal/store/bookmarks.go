package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// ToggleBookmark flips the saved state of the message at the given position.
// The conversation is resolved by natural key and the message by position,
// never by a client-cached row id, since reconcile replaces every message row.
// Returns the new bookmarked state.
func (s *Store) ToggleBookmark(ctx context.Context, ownerID string, provider chat.Provider, externalID string, position int) (bool, error) {
	conv, err := s.GetConversation(ctx, ownerID, provider, externalID)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages WHERE conversation_id = $1 AND position = $2
		)`, conv.ID, position,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("resolve message: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM bookmarks
		WHERE owner_id = $1 AND conversation_id = $2 AND position = $3`,
		ownerID, conv.ID, position,
	)
	if err != nil {
		return false, fmt.Errorf("delete bookmark: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	// ON CONFLICT DO NOTHING keeps a racing double-toggle from erroring; the
	// winner's insert stands.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bookmarks (id, owner_id, conversation_id, position, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (owner_id, conversation_id, position) DO NOTHING`,
		uuid.New(), ownerID, conv.ID, position,
	)
	if err != nil {
		return false, fmt.Errorf("insert bookmark: %w", err)
	}
	return true, nil
}

// UpdateBookmarkNote sets the note on an existing bookmark, addressed the
// same way toggles are: natural key plus position.
func (s *Store) UpdateBookmarkNote(ctx context.Context, ownerID string, provider chat.Provider, externalID string, position int, note string) error {
	conv, err := s.GetConversation(ctx, ownerID, provider, externalID)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bookmarks SET note = $4
		WHERE owner_id = $1 AND conversation_id = $2 AND position = $3`,
		ownerID, conv.ID, position, note,
	)
	if err != nil {
		return fmt.Errorf("update bookmark note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BookmarkedPositions returns the set of bookmarked positions for one
// conversation, resolved by natural key.
func (s *Store) BookmarkedPositions(ctx context.Context, ownerID string, provider chat.Provider, externalID string) ([]int, error) {
	conv, err := s.GetConversation(ctx, ownerID, provider, externalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT position FROM bookmarks
		WHERE owner_id = $1 AND conversation_id = $2
		ORDER BY position`,
		ownerID, conv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	positions := []int{}
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// BookmarkListItem is one bookmark joined with its current message and
// conversation, for the dashboard bookmark list.
type BookmarkListItem struct {
	Bookmark          chat.Bookmark `json:"bookmark"`
	Role              chat.Role     `json:"role"`
	Preview           string        `json:"preview"`
	ConversationTitle string        `json:"conversationTitle"`
	ConversationURL   string        `json:"conversationUrl"`
	Provider          chat.Provider `json:"provider"`
}

// ListBookmarks returns every bookmark for the owner, newest first, joined by
// position to whatever message currently occupies that slot.
func (s *Store) ListBookmarks(ctx context.Context, ownerID string) ([]BookmarkListItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.owner_id, b.conversation_id, b.position, b.note, b.created_at,
		       m.role, m.preview, c.title, c.url, c.provider
		FROM bookmarks b
		JOIN conversations c ON c.id = b.conversation_id
		JOIN messages m ON m.conversation_id = b.conversation_id AND m.position = b.position
		WHERE b.owner_id = $1
		ORDER BY b.created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []BookmarkListItem
	for rows.Next() {
		var item BookmarkListItem
		err := rows.Scan(
			&item.Bookmark.ID, &item.Bookmark.OwnerID, &item.Bookmark.ConversationID,
			&item.Bookmark.Position, &item.Bookmark.Note, &item.Bookmark.CreatedAt,
			&item.Role, &item.Preview, &item.ConversationTitle, &item.ConversationURL, &item.Provider,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
