package bridge

import (
	"context"
	"errors"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// ErrBridgeClosed means the executor is gone; callers treat it like an
// invalidated host runtime and skip silently.
var ErrBridgeClosed = errors.New("bridge closed")

// ErrNotAuthenticated is the executor's answer to any message that needs a
// credential when none is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

type envelope struct {
	req   Request
	reply chan Response // nil for beacons
}

// Bridge is the sending half of the message contract.
type Bridge struct {
	requests chan envelope
	done     chan struct{}
}

func New() *Bridge {
	return &Bridge{
		// Room for a handful of queued beacons; interactive sends block on
		// the executor anyway.
		requests: make(chan envelope, 16),
		done:     make(chan struct{}),
	}
}

// Send delivers a request and awaits its typed response. ctx bounds the
// whole round trip.
func (b *Bridge) Send(ctx context.Context, req Request) (Response, error) {
	reply := make(chan Response, 1)
	select {
	case b.requests <- envelope{req: req, reply: reply}:
	case <-b.done:
		return Response{}, ErrBridgeClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-reply:
		return resp, resp.Err
	case <-b.done:
		return Response{}, ErrBridgeClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Beacon enqueues a push without waiting for any response. It never blocks:
// if the queue is full the beacon is dropped, matching the best-effort
// teardown contract.
func (b *Bridge) Beacon(snap *chat.Snapshot) {
	select {
	case b.requests <- envelope{req: Request{Type: TypeSyncConversationBeacon, Snapshot: snap}}:
	case <-b.done:
	default:
	}
}
