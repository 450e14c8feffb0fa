package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ExportFormat selects the rendering of an export.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "markdown"
)

// ErrInvalidFormat is returned for an unsupported export format.
var ErrInvalidFormat = errors.New("invalid export format")

// ValidExportFormat reports whether f is a supported export format.
func ValidExportFormat(f ExportFormat) bool {
	return f == ExportJSON || f == ExportMarkdown
}

// ExportBundle is one conversation with its full ordered message set, the
// unit an export is rendered from.
type ExportBundle struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// RenderExport produces the export document for the given bundles.
func RenderExport(format ExportFormat, bundles []ExportBundle) (string, error) {
	switch format {
	case ExportJSON:
		raw, err := json.MarshalIndent(bundles, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render json export: %w", err)
		}
		return string(raw), nil
	case ExportMarkdown:
		parts := make([]string, 0, len(bundles))
		for _, b := range bundles {
			parts = append(parts, renderMarkdown(b))
		}
		return strings.Join(parts, "\n\n"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

func renderMarkdown(b ExportBundle) string {
	var sb strings.Builder

	title := b.Conversation.Title
	if title == "" {
		title = "Untitled Conversation"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "**Provider:** %s\n", b.Conversation.Provider)
	url := b.Conversation.URL
	if url == "" {
		url = "N/A"
	}
	fmt.Fprintf(&sb, "**URL:** %s\n\n", url)
	sb.WriteString("---\n\n")

	for _, msg := range b.Messages {
		speaker := "**Assistant**"
		if msg.Role == RoleUser {
			speaker = "**You**"
		}
		fmt.Fprintf(&sb, "%s:\n\n%s\n\n---\n\n", speaker, msg.Content)
	}
	return sb.String()
}
