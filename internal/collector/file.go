package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// transcriptFile is the on-disk shape written by capture tooling. The index
// field is optional; array order is authoritative either way.
type transcriptFile struct {
	Provider   chat.Provider `json:"provider"`
	ExternalID string        `json:"externalId"`
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	Messages   []struct {
		Role    chat.Role `json:"role"`
		Content string    `json:"content"`
	} `json:"messages"`
}

// FileCollector reads snapshots from an exported transcript JSON file.
type FileCollector struct {
	path string
}

func NewFileCollector(path string) *FileCollector {
	return &FileCollector{path: path}
}

// Collect parses the transcript file into a snapshot. Empty-content turns
// are dropped; remaining turns are indexed in array order. A missing
// externalId falls back to extraction from the URL.
func (f *FileCollector) Collect(ctx context.Context) (*chat.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var tf transcriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	snap := &chat.Snapshot{
		Provider:   tf.Provider,
		ExternalID: tf.ExternalID,
		Title:      CleanTitle(tf.Title),
		URL:        tf.URL,
		Messages:   []chat.SnapshotMessage{},
	}
	if snap.ExternalID == "" && tf.URL != "" {
		snap.ExternalID = ExternalIDFromURL(tf.Provider, tf.URL)
	}
	if snap.Title == "" {
		snap.Title = "Untitled Conversation"
	}

	for _, m := range tf.Messages {
		if m.Content == "" {
			continue
		}
		snap.Messages = append(snap.Messages, chat.SnapshotMessage{
			Role:    m.Role,
			Content: m.Content,
			Index:   len(snap.Messages),
		})
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
