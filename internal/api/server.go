package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/akshtjain/unifychatsmono/internal/auth"
	"github.com/akshtjain/unifychatsmono/internal/chat"
	"github.com/akshtjain/unifychatsmono/internal/events"
	"github.com/akshtjain/unifychatsmono/internal/store"
)

// Store is the persistence surface the API depends on. *store.Store
// implements it; tests substitute a stub.
type Store interface {
	Reconcile(ctx context.Context, ownerID string, snap *chat.Snapshot) (uuid.UUID, error)
	ToggleBookmark(ctx context.Context, ownerID string, provider chat.Provider, externalID string, position int) (bool, error)
	BookmarkedPositions(ctx context.Context, ownerID string, provider chat.Provider, externalID string) ([]int, error)
	ListBookmarks(ctx context.Context, ownerID string) ([]store.BookmarkListItem, error)
	SearchMessages(ctx context.Context, ownerID, query string, provider chat.Provider, role chat.Role, limit int) ([]store.SearchResult, error)
	RecentMessages(ctx context.Context, ownerID string, provider chat.Provider, limit int) ([]store.SearchResult, error)
	UpdateBookmarkNote(ctx context.Context, ownerID string, provider chat.Provider, externalID string, position int, note string) error
	ListConversations(ctx context.Context, ownerID string, provider chat.Provider, projectID *uuid.UUID) ([]chat.Conversation, error)
	GetConversationByID(ctx context.Context, ownerID string, conversationID uuid.UUID) (*chat.Conversation, error)
	ConversationMessages(ctx context.Context, ownerID string, conversationID uuid.UUID) ([]chat.Message, error)
	DeleteConversation(ctx context.Context, ownerID string, conversationID uuid.UUID) error
	GetStats(ctx context.Context, ownerID string) (*store.Stats, error)
	CreateProject(ctx context.Context, ownerID, name, description, color string) (*chat.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]chat.Project, error)
	GetProject(ctx context.Context, ownerID string, projectID uuid.UUID) (*chat.Project, error)
	UpdateProject(ctx context.Context, ownerID string, projectID uuid.UUID, name, description, color *string) (*chat.Project, error)
	DeleteProject(ctx context.Context, ownerID string, projectID uuid.UUID) error
	GetProjectStats(ctx context.Context, ownerID string, projectID uuid.UUID) (*store.ProjectStats, error)
	AssignConversationProject(ctx context.Context, ownerID string, conversationID uuid.UUID, projectID *uuid.UUID) error
	CreateExport(ctx context.Context, ownerID string, conversationIDs []uuid.UUID, format chat.ExportFormat) (*store.ExportRecord, error)
	ExportData(ctx context.Context, ownerID string, conversationIDs []uuid.UUID) ([]chat.ExportBundle, error)
	CompleteExport(ctx context.Context, ownerID string, exportID uuid.UUID) error
	ListExports(ctx context.Context, ownerID string) ([]store.ExportRecord, error)
}

// Verifier authenticates bearer credentials at the trust boundary.
type Verifier interface {
	VerifyHeader(header string) (*auth.Identity, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	store    Store
	verifier Verifier
	events   *events.Publisher
	logger   *slog.Logger
}

func NewServer(port int, st Store, verifier Verifier, pub *events.Publisher, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	s := &Server{
		router:   router,
		port:     port,
		store:    st,
		verifier: verifier,
		events:   pub,
		logger:   logger,
	}

	router.Get("/health", s.health)

	router.Post("/sync", s.sync)
	router.Options("/sync", s.preflight)

	router.Post("/bookmark", s.toggleBookmark)
	router.Options("/bookmark", s.preflight)
	router.Post("/bookmark/note", s.updateBookmarkNote)
	router.Post("/bookmarks/status", s.bookmarkStatus)
	router.Options("/bookmarks/status", s.preflight)
	router.Get("/bookmarks", s.listBookmarks)

	router.Get("/search", s.search)
	router.Get("/messages/recent", s.recentMessages)
	router.Get("/conversations", s.listConversations)
	router.Get("/conversations/{id}", s.getConversation)
	router.Delete("/conversations/{id}", s.deleteConversation)
	router.Post("/conversations/{id}/project", s.assignConversationProject)
	router.Get("/stats", s.stats)

	router.Get("/projects", s.listProjects)
	router.Post("/projects", s.createProject)
	router.Get("/projects/{id}", s.getProject)
	router.Put("/projects/{id}", s.updateProject)
	router.Delete("/projects/{id}", s.deleteProject)
	router.Get("/projects/{id}/stats", s.projectStats)

	router.Get("/exports", s.listExports)
	router.Post("/exports", s.createExport)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
