package bridge

import (
	"context"
	"time"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// Transport adapts the bridge to the scheduler's transport contract: an
// interactive push that awaits its result, a best-effort beacon, and an
// auth-status check.
type Transport struct {
	bridge  *Bridge
	timeout time.Duration
}

func NewTransport(b *Bridge, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transport{bridge: b, timeout: timeout}
}

// Sync pushes interactively and returns the backend's conversation id.
func (t *Transport) Sync(ctx context.Context, snap *chat.Snapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	resp, err := t.bridge.Send(ctx, Request{Type: TypeSyncConversation, Snapshot: snap})
	if err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}

// SyncBeacon pushes without awaiting any result.
func (t *Transport) SyncBeacon(snap *chat.Snapshot) {
	t.bridge.Beacon(snap)
}

// AuthStatus reports whether a credential is stored.
func (t *Transport) AuthStatus(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	resp, err := t.bridge.Send(ctx, Request{Type: TypeGetAuthStatus})
	if err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}
