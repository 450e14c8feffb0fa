package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// projectColors is the default palette; new projects without an explicit
// color get the first one the owner is not already using.
var projectColors = []string{
	"#6366f1", // Indigo
	"#8b5cf6", // Violet
	"#ec4899", // Pink
	"#f43f5e", // Rose
	"#f97316", // Orange
	"#eab308", // Yellow
	"#22c55e", // Green
	"#14b8a6", // Teal
	"#06b6d4", // Cyan
	"#3b82f6", // Blue
}

// CreateProject inserts a project for the owner. An empty color picks an
// unused palette color.
func (s *Store) CreateProject(ctx context.Context, ownerID, name, description, color string) (*chat.Project, error) {
	if color == "" {
		var err error
		color, err = s.pickProjectColor(ctx, ownerID)
		if err != nil {
			return nil, err
		}
	}

	p := &chat.Project{ID: uuid.New(), OwnerID: ownerID, Name: name, Description: description, Color: color}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, owner_id, name, description, color, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`,
		p.ID, ownerID, name, description, color,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *Store) pickProjectColor(ctx context.Context, ownerID string) (string, error) {
	rows, err := s.pool.Query(ctx, `SELECT color FROM projects WHERE owner_id = $1`, ownerID)
	if err != nil {
		return "", fmt.Errorf("query project colors: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return "", fmt.Errorf("scan color: %w", err)
		}
		used[c] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, c := range projectColors {
		if !used[c] {
			return c, nil
		}
	}
	return projectColors[0], nil
}

// ListProjects returns the owner's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]chat.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, color, created_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []chat.Project
	for rows.Next() {
		var p chat.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Color, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject resolves one project, owner-scoped.
func (s *Store) GetProject(ctx context.Context, ownerID string, projectID uuid.UUID) (*chat.Project, error) {
	var p chat.Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, color, created_at
		FROM projects
		WHERE id = $1 AND owner_id = $2`,
		projectID, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Color, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// UpdateProject patches name, description, and color; nil fields keep their
// stored value.
func (s *Store) UpdateProject(ctx context.Context, ownerID string, projectID uuid.UUID, name, description, color *string) (*chat.Project, error) {
	var p chat.Project
	err := s.pool.QueryRow(ctx, `
		UPDATE projects SET
			name        = COALESCE($3, name),
			description = COALESCE($4, description),
			color       = COALESCE($5, color)
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, name, description, color, created_at`,
		projectID, ownerID, name, description, color,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Color, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return &p, nil
}

// DeleteProject removes a project. Its conversations are unassigned by the
// ON DELETE SET NULL foreign key, never deleted.
func (s *Store) DeleteProject(ctx context.Context, ownerID string, projectID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM projects WHERE id = $1 AND owner_id = $2`,
		projectID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectStats counts what the project currently holds.
type ProjectStats struct {
	ConversationCount int `json:"conversationCount"`
	MessageCount      int `json:"messageCount"`
}

// GetProjectStats returns conversation and message totals for one project.
func (s *Store) GetProjectStats(ctx context.Context, ownerID string, projectID uuid.UUID) (*ProjectStats, error) {
	if _, err := s.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	var st ProjectStats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(message_count), 0)
		FROM conversations
		WHERE owner_id = $1 AND project_id = $2`,
		ownerID, projectID,
	).Scan(&st.ConversationCount, &st.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	return &st, nil
}

// AssignConversationProject moves a conversation into a project, or out of
// any project when projectID is nil. Both rows must belong to the owner.
func (s *Store) AssignConversationProject(ctx context.Context, ownerID string, conversationID uuid.UUID, projectID *uuid.UUID) error {
	if projectID != nil {
		if _, err := s.GetProject(ctx, ownerID, *projectID); err != nil {
			return err
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET project_id = $3
		WHERE id = $1 AND owner_id = $2`,
		conversationID, ownerID, projectID,
	)
	if err != nil {
		return fmt.Errorf("assign conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
