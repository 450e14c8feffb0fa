//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testSnapshot(externalID string, contents ...string) *chat.Snapshot {
	snap := &chat.Snapshot{
		Provider:   chat.ProviderChatGPT,
		ExternalID: externalID,
		Title:      "Test conversation",
		URL:        "https://chatgpt.com/c/" + externalID,
		Messages:   []chat.SnapshotMessage{},
	}
	for i, c := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		snap.Messages = append(snap.Messages, chat.SnapshotMessage{Role: role, Content: c, Index: i})
	}
	return snap
}

func TestIntegration_ReconcileIdempotentIdentity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	first, err := s.Reconcile(ctx, owner, testSnapshot(extID, "Hi", "Hello!"))
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	second, err := s.Reconcile(ctx, owner, testSnapshot(extID, "Hi", "Hello!", "More"))
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if first != second {
		t.Errorf("expected same conversation id, got %s and %s", first, second)
	}

	conv, err := s.GetConversation(ctx, owner, chat.ProviderChatGPT, extID)
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if conv.MessageCount != 3 {
		t.Errorf("expected message count 3, got %d", conv.MessageCount)
	}
}

func TestIntegration_ReconcilePositionalOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	contents := []string{"one", "two", "three", "four"}

	id, err := s.Reconcile(ctx, owner, testSnapshot(uuid.New().String(), contents...))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	msgs, err := s.ConversationMessages(ctx, owner, id)
	if err != nil {
		t.Fatalf("fetch messages failed: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, m := range msgs {
		if m.Position != i {
			t.Errorf("message %d: expected position %d, got %d", i, i, m.Position)
		}
		if m.Content != contents[i] {
			t.Errorf("position %d: expected content %q, got %q", i, contents[i], m.Content)
		}
	}
}

func TestIntegration_ReconcileFullReplacement(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	id, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b")); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	msgs, err := s.ConversationMessages(ctx, owner, id)
	if err != nil {
		t.Fatalf("fetch messages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected exactly 2 messages after shrinking push, got %d", len(msgs))
	}
}

func TestIntegration_TitlePatchKeepsExisting(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	snap := testSnapshot(extID, "Hi")
	snap.Title = "Original title"
	if _, err := s.Reconcile(ctx, owner, snap); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	snap2 := testSnapshot(extID, "Hi", "Hello!")
	snap2.Title = ""
	if _, err := s.Reconcile(ctx, owner, snap2); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	conv, err := s.GetConversation(ctx, owner, chat.ProviderChatGPT, extID)
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if conv.Title != "Original title" {
		t.Errorf("expected title kept, got %q", conv.Title)
	}
}

func TestIntegration_BookmarkRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b", "c", "d", "e")); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	on, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 2)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !on {
		t.Error("expected toggle on")
	}

	positions, err := s.BookmarkedPositions(ctx, owner, chat.ProviderChatGPT, extID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(positions) != 1 || positions[0] != 2 {
		t.Errorf("expected positions [2], got %v", positions)
	}

	off, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 2)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if off {
		t.Error("expected toggle off")
	}

	positions, err = s.BookmarkedPositions(ctx, owner, chat.ProviderChatGPT, extID)
	if err != nil {
		t.Fatalf("status after off failed: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("expected no positions, got %v", positions)
	}
}

func TestIntegration_BookmarkSurvivesResyncAndPrunes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b", "c", "d", "e")); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 1); err != nil {
		t.Fatalf("toggle 1 failed: %v", err)
	}
	if _, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 4); err != nil {
		t.Fatalf("toggle 4 failed: %v", err)
	}

	// Resync with fewer messages: position 1 survives, position 4 is pruned.
	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b", "c")); err != nil {
		t.Fatalf("shrinking reconcile failed: %v", err)
	}

	positions, err := s.BookmarkedPositions(ctx, owner, chat.ProviderChatGPT, extID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(positions) != 1 || positions[0] != 1 {
		t.Errorf("expected positions [1] after prune, got %v", positions)
	}
}

func TestIntegration_ToggleUnsyncedConversation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]

	_, err := s.ToggleBookmark(ctx, owner, chat.ProviderClaude, uuid.New().String(), 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_BookmarkNote(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b", "c")); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 1); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	if err := s.UpdateBookmarkNote(ctx, owner, chat.ProviderChatGPT, extID, 1, "worth rereading"); err != nil {
		t.Fatalf("note update failed: %v", err)
	}

	items, err := s.ListBookmarks(ctx, owner)
	if err != nil {
		t.Fatalf("list bookmarks failed: %v", err)
	}
	if len(items) != 1 || items[0].Bookmark.Note != "worth rereading" {
		t.Errorf("expected one bookmark with the note, got %+v", items)
	}

	// Position 0 is never bookmarked; the note has nothing to attach to.
	err = s.UpdateBookmarkNote(ctx, owner, chat.ProviderChatGPT, extID, 0, "stray")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unbookmarked position, got %v", err)
	}
}

func TestIntegration_ProjectLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	project, err := s.CreateProject(ctx, owner, "Research", "LLM papers", "")
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	if project.Color == "" {
		t.Error("expected a palette color to be picked")
	}

	convID, err := s.Reconcile(ctx, owner, testSnapshot(extID, "Hi", "Hello!"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if err := s.AssignConversationProject(ctx, owner, convID, &project.ID); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// Assignment survives a resync of the conversation.
	if _, err := s.Reconcile(ctx, owner, testSnapshot(extID, "Hi", "Hello!", "More")); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	conv, err := s.GetConversationByID(ctx, owner, convID)
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if conv.ProjectID == nil || *conv.ProjectID != project.ID {
		t.Fatalf("expected project assignment to survive resync, got %v", conv.ProjectID)
	}

	filtered, err := s.ListConversations(ctx, owner, "", &project.ID)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != convID {
		t.Errorf("expected only the assigned conversation, got %+v", filtered)
	}

	stats, err := s.GetProjectStats(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("project stats failed: %v", err)
	}
	if stats.ConversationCount != 1 || stats.MessageCount != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// Deleting the project unassigns the conversation instead of deleting it.
	if err := s.DeleteProject(ctx, owner, project.ID); err != nil {
		t.Fatalf("delete project failed: %v", err)
	}
	conv, err = s.GetConversationByID(ctx, owner, convID)
	if err != nil {
		t.Fatalf("conversation lost after project delete: %v", err)
	}
	if conv.ProjectID != nil {
		t.Errorf("expected conversation unassigned, got %v", conv.ProjectID)
	}
}

func TestIntegration_ProjectOwnerScoped(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]

	project, err := s.CreateProject(ctx, owner, "Private", "", "#6366f1")
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	if _, err := s.GetProject(ctx, "other-owner", project.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign project read, got %v", err)
	}

	otherConv, err := s.Reconcile(ctx, "other-owner", testSnapshot(uuid.New().String(), "Hi"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	err = s.AssignConversationProject(ctx, "other-owner", otherConv, &project.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound assigning to a foreign project, got %v", err)
	}
}

func TestIntegration_ExportLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]

	convID, err := s.Reconcile(ctx, owner, testSnapshot(uuid.New().String(), "What is Go?", "A language."))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	rec, err := s.CreateExport(ctx, owner, []uuid.UUID{convID}, chat.ExportMarkdown)
	if err != nil {
		t.Fatalf("create export failed: %v", err)
	}
	if rec.Status != "pending" {
		t.Errorf("expected pending status on create, got %q", rec.Status)
	}

	bundles, err := s.ExportData(ctx, owner, []uuid.UUID{convID})
	if err != nil {
		t.Fatalf("export data failed: %v", err)
	}
	if len(bundles) != 1 || len(bundles[0].Messages) != 2 {
		t.Fatalf("unexpected export data: %+v", bundles)
	}

	if err := s.CompleteExport(ctx, owner, rec.ID); err != nil {
		t.Fatalf("complete export failed: %v", err)
	}
	exports, err := s.ListExports(ctx, owner)
	if err != nil {
		t.Fatalf("list exports failed: %v", err)
	}
	if len(exports) != 1 || exports[0].Status != "completed" {
		t.Errorf("expected one completed export, got %+v", exports)
	}

	// A foreign conversation id fails the ownership check up front.
	_, err = s.CreateExport(ctx, "other-owner", []uuid.UUID{convID}, chat.ExportJSON)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign export, got %v", err)
	}
}

func TestIntegration_SearchEscapesLikeMeta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]

	snap := testSnapshot(uuid.New().String(), "progress is 100% done", "plain percent-free text")
	if _, err := s.Reconcile(ctx, owner, snap); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// A literal % in the query must not act as a wildcard.
	results, err := s.SearchMessages(ctx, owner, "100% done", "", "", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly the literal match, got %d results", len(results))
	}

	results, err = s.SearchMessages(ctx, owner, "100%", "", "", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected %% to match only literally, got %d results", len(results))
	}
}

func TestIntegration_DeleteConversationCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()[:8]
	extID := uuid.New().String()

	id, err := s.Reconcile(ctx, owner, testSnapshot(extID, "a", "b"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, err := s.ToggleBookmark(ctx, owner, chat.ProviderChatGPT, extID, 0); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	// Deleting someone else's conversation is a NotFound, not a silent no-op.
	if err := s.DeleteConversation(ctx, "other-owner", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign delete, got %v", err)
	}

	if err := s.DeleteConversation(ctx, owner, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetConversation(ctx, owner, chat.ProviderChatGPT, extID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected conversation gone, got %v", err)
	}
}
