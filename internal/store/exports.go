package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// ExportRecord tracks one export request through its lifecycle.
type ExportRecord struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         string            `json:"ownerId"`
	ConversationIDs []uuid.UUID       `json:"conversationIds"`
	Format          chat.ExportFormat `json:"format"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
}

// CreateExport records a pending export after verifying every requested
// conversation belongs to the owner.
func (s *Store) CreateExport(ctx context.Context, ownerID string, conversationIDs []uuid.UUID, format chat.ExportFormat) (*ExportRecord, error) {
	var owned int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM conversations
		WHERE owner_id = $1 AND id = ANY($2)`,
		ownerID, conversationIDs,
	).Scan(&owned)
	if err != nil {
		return nil, fmt.Errorf("verify conversations: %w", err)
	}
	if owned != len(conversationIDs) {
		return nil, ErrNotFound
	}

	rec := &ExportRecord{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		ConversationIDs: conversationIDs,
		Format:          format,
		Status:          "pending",
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO exports (id, owner_id, conversation_ids, format, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', now())
		RETURNING created_at`,
		rec.ID, ownerID, conversationIDs, format,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert export: %w", err)
	}
	return rec, nil
}

// ExportData loads the conversations and ordered messages an export renders.
func (s *Store) ExportData(ctx context.Context, ownerID string, conversationIDs []uuid.UUID) ([]chat.ExportBundle, error) {
	bundles := make([]chat.ExportBundle, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		conv, err := s.GetConversationByID(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		messages, err := s.ConversationMessages(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, chat.ExportBundle{Conversation: *conv, Messages: messages})
	}
	return bundles, nil
}

// CompleteExport marks an export finished.
func (s *Store) CompleteExport(ctx context.Context, ownerID string, exportID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE exports SET status = 'completed', completed_at = now()
		WHERE id = $1 AND owner_id = $2`,
		exportID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("complete export: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExports returns the owner's export history, newest first.
func (s *Store) ListExports(ctx context.Context, ownerID string) ([]ExportRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, conversation_ids, format, status, created_at, completed_at
		FROM exports
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.ConversationIDs, &rec.Format, &rec.Status, &rec.CreatedAt, &rec.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
