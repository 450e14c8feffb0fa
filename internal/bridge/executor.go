package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/akshtjain/unifychatsmono/internal/agentstate"
	"github.com/akshtjain/unifychatsmono/internal/backend"
	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// beaconTimeout bounds the teardown push so a dying agent never hangs on it.
const beaconTimeout = 5 * time.Second

// backendClient is the slice of backend.Client the executor uses; tests
// substitute a fake.
type backendClient interface {
	Sync(ctx context.Context, snap *chat.Snapshot) (*backend.SyncResult, error)
	ToggleBookmark(ctx context.Context, provider chat.Provider, externalID string, position int) (bool, error)
	BookmarkStatus(ctx context.Context, provider chat.Provider, externalID string) ([]int, error)
}

// Executor is the receiving half of the bridge: it owns the stored
// credential and is the only component that talks to the backend.
type Executor struct {
	bridge    *Bridge
	state     *agentstate.Store
	logger    *slog.Logger
	newClient func(baseURL, token string) backendClient
}

func NewExecutor(b *Bridge, state *agentstate.Store, logger *slog.Logger) *Executor {
	return &Executor{
		bridge: b,
		state:  state,
		logger: logger,
		newClient: func(baseURL, token string) backendClient {
			return backend.NewClient(baseURL, token)
		},
	}
}

// Run consumes bridge messages until ctx is done.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.bridge.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-e.bridge.requests:
			resp := e.handle(ctx, env.req)
			if env.reply != nil {
				env.reply <- resp
			}
		}
	}
}

func (e *Executor) handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case TypeSyncConversation:
		return e.handleSync(ctx, req.Snapshot)
	case TypeSyncConversationBeacon:
		e.handleBeacon(ctx, req.Snapshot)
		return Response{}
	case TypeGetAuthStatus:
		token, url, err := e.state.Credentials()
		if err != nil {
			return Response{Err: err}
		}
		return Response{Authenticated: token != "" && url != ""}
	case TypeToggleBookmark:
		client, err := e.client()
		if err != nil {
			return Response{Err: err}
		}
		bookmarked, err := client.ToggleBookmark(ctx, req.Provider, req.ExternalID, req.Position)
		if err != nil {
			e.forceLogoutOnAuthError(err)
			return Response{Err: err}
		}
		return Response{Bookmarked: bookmarked}
	case TypeGetBookmarkStatus:
		client, err := e.client()
		if err != nil {
			return Response{Err: err}
		}
		positions, err := client.BookmarkStatus(ctx, req.Provider, req.ExternalID)
		if err != nil {
			e.forceLogoutOnAuthError(err)
			return Response{Err: err}
		}
		return Response{Positions: positions}
	case TypeSetAuthToken:
		return Response{Err: e.state.SetCredentials(req.Token, req.BackendURL)}
	case TypeLogout:
		return Response{Err: e.state.ClearCredentials()}
	default:
		e.logger.Warn("unknown bridge message", "type", req.Type)
		return Response{}
	}
}

func (e *Executor) handleSync(ctx context.Context, snap *chat.Snapshot) Response {
	client, err := e.client()
	if err != nil {
		return Response{Err: err}
	}
	res, err := client.Sync(ctx, snap)
	if err != nil {
		e.forceLogoutOnAuthError(err)
		return Response{Err: err}
	}
	return Response{ConversationID: res.ConversationID}
}

// handleBeacon is the fire-and-forget push: errors are logged, never
// surfaced, and no state changes on failure.
func (e *Executor) handleBeacon(ctx context.Context, snap *chat.Snapshot) {
	client, err := e.client()
	if err != nil {
		e.logger.Debug("beacon skipped", "error", err)
		return
	}
	bctx, cancel := context.WithTimeout(ctx, beaconTimeout)
	defer cancel()
	if _, err := client.Sync(bctx, snap); err != nil {
		e.logger.Debug("beacon push failed", "error", err)
	}
}

func (e *Executor) client() (backendClient, error) {
	token, url, err := e.state.Credentials()
	if err != nil {
		return nil, err
	}
	if token == "" || url == "" {
		return nil, ErrNotAuthenticated
	}
	return e.newClient(url, token), nil
}

// forceLogoutOnAuthError clears the stored credential after a 401 so the
// owner is prompted to sign in again rather than retrying a dead token.
func (e *Executor) forceLogoutOnAuthError(err error) {
	if !backend.IsAuthError(err) {
		return
	}
	e.logger.Info("credential rejected by backend, clearing local session")
	if clearErr := e.state.ClearCredentials(); clearErr != nil {
		e.logger.Warn("failed to clear credentials", "error", clearErr)
	}
}
