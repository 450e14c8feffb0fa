// Package backend is the agent's HTTP client for the unifychatsd API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// APIError is a structured failure response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Message)
}

// IsAuthError reports whether err is a 401 from the backend, which should
// force a local logout.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the backend with one owner's bearer credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SyncResult is the interactive push response.
type SyncResult struct {
	ConversationID string `json:"conversationId"`
}

// Sync pushes a snapshot and awaits the structured result.
func (c *Client) Sync(ctx context.Context, snap *chat.Snapshot) (*SyncResult, error) {
	var out struct {
		Success        bool   `json:"success"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.post(ctx, "/sync", snap, &out); err != nil {
		return nil, err
	}
	return &SyncResult{ConversationID: out.ConversationID}, nil
}

// ToggleBookmark flips saved state for a message position and returns the new
// state.
func (c *Client) ToggleBookmark(ctx context.Context, provider chat.Provider, externalID string, position int) (bool, error) {
	body := map[string]any{
		"provider":     provider,
		"externalId":   externalID,
		"messageIndex": position,
	}
	var out struct {
		Success    bool `json:"success"`
		Bookmarked bool `json:"bookmarked"`
	}
	if err := c.post(ctx, "/bookmark", body, &out); err != nil {
		return false, err
	}
	return out.Bookmarked, nil
}

// BookmarkStatus returns the bookmarked positions of one conversation.
func (c *Client) BookmarkStatus(ctx context.Context, provider chat.Provider, externalID string) ([]int, error) {
	body := map[string]any{
		"provider":   provider,
		"externalId": externalID,
	}
	var out struct {
		Success           bool  `json:"success"`
		BookmarkedIndices []int `json:"bookmarkedIndices"`
	}
	if err := c.post(ctx, "/bookmarks/status", body, &out); err != nil {
		return nil, err
	}
	return out.BookmarkedIndices, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &APIError{Status: resp.StatusCode, Code: failure.Code, Message: failure.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
