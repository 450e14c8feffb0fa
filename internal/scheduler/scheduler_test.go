package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeTransport struct {
	mu            sync.Mutex
	authenticated bool
	syncErr       error
	syncs         []*chat.Snapshot
	beacons       []*chat.Snapshot
	block         chan struct{} // when set, Sync waits on it
}

func (f *fakeTransport) Sync(_ context.Context, snap *chat.Snapshot) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return "", f.syncErr
	}
	f.syncs = append(f.syncs, snap)
	return "conv-1", nil
}

func (f *fakeTransport) SyncBeacon(snap *chat.Snapshot) {
	f.mu.Lock()
	f.beacons = append(f.beacons, snap)
	f.mu.Unlock()
}

func (f *fakeTransport) AuthStatus(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated, nil
}

func (f *fakeTransport) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncs)
}

func (f *fakeTransport) beaconCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beacons)
}

// memCollector serves a mutable in-memory snapshot.
type memCollector struct {
	mu   sync.Mutex
	snap chat.Snapshot
}

func newMemCollector() *memCollector {
	return &memCollector{snap: chat.Snapshot{
		Provider:   chat.ProviderChatGPT,
		ExternalID: "abc",
		Title:      "Greetings",
		Messages: []chat.SnapshotMessage{
			{Role: chat.RoleUser, Content: "Hi", Index: 0},
			{Role: chat.RoleAssistant, Content: "Hello!", Index: 1},
		},
	}}
}

func (m *memCollector) Collect(_ context.Context) (*chat.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.snap
	cp.Messages = append([]chat.SnapshotMessage(nil), m.snap.Messages...)
	return &cp, nil
}

func (m *memCollector) appendMessage(content string) {
	m.mu.Lock()
	m.snap.Messages = append(m.snap.Messages, chat.SnapshotMessage{
		Role:    chat.RoleAssistant,
		Content: content,
		Index:   len(m.snap.Messages),
	})
	m.mu.Unlock()
}

func newTestScheduler(t *testing.T, enabled bool) (*Scheduler, *fakeTransport, *memCollector, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	transport := &fakeTransport{authenticated: true}
	col := newMemCollector()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(DefaultConfig(), transport, col, enabled, logger, WithClock(clock.Now))
	return s, transport, col, clock
}

func TestDisabledSkipsExceptManual(t *testing.T) {
	s, transport, _, _ := newTestScheduler(t, false)
	ctx := context.Background()

	if _, err := s.Trigger(ctx, TriggerActivity); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if transport.syncCount() != 0 {
		t.Fatal("disabled scheduler must not push")
	}

	id, err := s.Trigger(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("manual trigger should bypass the enabled guard: %v", err)
	}
	if id != "conv-1" {
		t.Errorf("expected conv-1, got %q", id)
	}
}

func TestMinIntervalGuard(t *testing.T) {
	s, transport, col, clock := newTestScheduler(t, true)
	ctx := context.Background()

	if _, err := s.Trigger(ctx, TriggerActivity); err != nil {
		t.Fatalf("first push failed: %v", err)
	}
	col.appendMessage("more")

	clock.Advance(10 * time.Second)
	if _, err := s.Trigger(ctx, TriggerActivity); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon at +10s, got %v", err)
	}
	if transport.syncCount() != 1 {
		t.Fatalf("expected exactly one push, got %d", transport.syncCount())
	}

	// Manual ignores the floor.
	if _, err := s.Trigger(ctx, TriggerManual); err != nil {
		t.Fatalf("manual trigger should bypass min interval: %v", err)
	}

	col.appendMessage("even more")
	clock.Advance(31 * time.Second)
	if _, err := s.Trigger(ctx, TriggerPeriodic); err != nil {
		t.Fatalf("push after interval elapsed failed: %v", err)
	}
	if transport.syncCount() != 3 {
		t.Fatalf("expected three pushes, got %d", transport.syncCount())
	}
}

func TestFingerprintSuppressesUnchanged(t *testing.T) {
	s, transport, col, clock := newTestScheduler(t, true)
	ctx := context.Background()

	if _, err := s.Trigger(ctx, TriggerActivity); err != nil {
		t.Fatalf("first push failed: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := s.Trigger(ctx, TriggerActivity); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges for identical snapshot, got %v", err)
	}
	if transport.syncCount() != 1 {
		t.Fatalf("unchanged snapshot must not push, got %d pushes", transport.syncCount())
	}

	col.appendMessage("fresh reply")
	clock.Advance(time.Minute)
	if _, err := s.Trigger(ctx, TriggerActivity); err != nil {
		t.Fatalf("changed snapshot should push: %v", err)
	}
	if transport.syncCount() != 2 {
		t.Fatalf("expected second push after change, got %d", transport.syncCount())
	}
}

func TestHostTriggersUseGuardChain(t *testing.T) {
	// Navigation and hidden are for embedding hosts; they behave like any
	// non-manual trigger.
	s, transport, col, clock := newTestScheduler(t, true)
	ctx := context.Background()

	if _, err := s.Trigger(ctx, TriggerNavigation); err != nil {
		t.Fatalf("navigation trigger failed: %v", err)
	}
	if transport.syncCount() != 1 {
		t.Fatalf("expected one push, got %d", transport.syncCount())
	}

	col.appendMessage("more")
	if _, err := s.Trigger(ctx, TriggerHidden); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("hidden trigger must honor min interval, got %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := s.Trigger(ctx, TriggerHidden); err != nil {
		t.Fatalf("hidden trigger after interval failed: %v", err)
	}

	s.SetEnabled(false)
	if _, err := s.Trigger(ctx, TriggerNavigation); !errors.Is(err, ErrDisabled) {
		t.Fatalf("navigation trigger must honor the enabled guard, got %v", err)
	}
}

func TestUnauthenticatedSkips(t *testing.T) {
	s, transport, _, _ := newTestScheduler(t, true)
	transport.authenticated = false

	if _, err := s.Trigger(context.Background(), TriggerActivity); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if transport.syncCount() != 0 {
		t.Fatal("unauthenticated scheduler must not push")
	}
}

func TestSingleFlight(t *testing.T) {
	s, transport, _, _ := newTestScheduler(t, true)
	ctx := context.Background()

	transport.block = make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Trigger(ctx, TriggerManual)
		firstDone <- err
	}()

	// Wait until the first trigger holds the in-flight flag.
	deadline := time.After(2 * time.Second)
	for {
		_, err := s.Trigger(ctx, TriggerManual)
		if errors.Is(err, ErrSyncInFlight) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second trigger never observed the in-flight sync")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(transport.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("blocked push should complete cleanly: %v", err)
	}
	if transport.syncCount() != 1 {
		t.Fatalf("expected one push, got %d", transport.syncCount())
	}
}

func TestTeardownBeaconOnlyWhenChanged(t *testing.T) {
	s, transport, col, _ := newTestScheduler(t, true)
	ctx := context.Background()

	if _, err := s.Trigger(ctx, TriggerActivity); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	s.Teardown(ctx)
	if transport.beaconCount() != 0 {
		t.Fatal("teardown must not beacon when nothing changed")
	}

	col.appendMessage("said at the last second")
	s.Teardown(ctx)
	if transport.beaconCount() != 1 {
		t.Fatalf("expected one beacon after change, got %d", transport.beaconCount())
	}
}

func TestNeverPushedAlwaysBeacons(t *testing.T) {
	s, transport, _, _ := newTestScheduler(t, true)
	s.Teardown(context.Background())
	if transport.beaconCount() != 1 {
		t.Fatalf("first teardown should beacon, got %d", transport.beaconCount())
	}
}

func TestRunActivityDebounce(t *testing.T) {
	clock := newFakeClock()
	transport := &fakeTransport{authenticated: true}
	col := newMemCollector()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{
		ActivityDebounce: 20 * time.Millisecond,
		PeriodicInterval: time.Hour,
		MinPushInterval:  time.Millisecond,
	}
	s := New(cfg, transport, col, true, logger, WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	activity := make(chan struct{}, 4)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, activity)
		close(done)
	}()

	// A burst of signals collapses into one push after the quiet window.
	activity <- struct{}{}
	activity <- struct{}{}
	activity <- struct{}{}

	deadline := time.After(2 * time.Second)
	for transport.syncCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced activity never produced a push")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if got := transport.syncCount(); got != 1 {
		t.Errorf("expected the burst to collapse into one push, got %d", got)
	}

	cancel()
	<-done

	// Cancellation with an unchanged snapshot must not beacon.
	if transport.beaconCount() != 0 {
		t.Errorf("expected no teardown beacon, got %d", transport.beaconCount())
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	a := &chat.Snapshot{Provider: chat.ProviderChatGPT, ExternalID: "abc",
		Messages: []chat.SnapshotMessage{{Role: chat.RoleUser, Content: "Hi"}}}
	b := &chat.Snapshot{Provider: chat.ProviderChatGPT, ExternalID: "abc",
		Messages: []chat.SnapshotMessage{{Role: chat.RoleUser, Content: "Hi there"}}}
	c := &chat.Snapshot{Provider: chat.ProviderClaude, ExternalID: "abc",
		Messages: []chat.SnapshotMessage{{Role: chat.RoleUser, Content: "Hi"}}}

	if Fingerprint(a) != Fingerprint(a) {
		t.Error("fingerprint must be deterministic")
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("content change must alter the fingerprint")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("provider change must alter the fingerprint")
	}
}
