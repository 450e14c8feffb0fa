// Package scheduler decides when a captured conversation snapshot is worth
// pushing. Triggers arrive from the watcher, a periodic tick, or an explicit
// user request; a guard chain filters out pushes that would be redundant,
// overlapping, or unauthenticated.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/akshtjain/unifychatsmono/internal/chat"
	"github.com/akshtjain/unifychatsmono/internal/collector"
)

// Skip sentinels. Every guard failure maps to one of these so callers can
// tell a deliberate no-op from a real failure. Only manual triggers surface
// them to the user; everything else logs at debug and moves on.
var (
	ErrDisabled         = errors.New("auto-sync disabled")
	ErrSyncInFlight     = errors.New("a sync is already in flight")
	ErrTooSoon          = errors.New("minimum push interval not elapsed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoChanges        = errors.New("snapshot unchanged since last push")
)

// Transport is the slice of the bridge the scheduler needs.
type Transport interface {
	Sync(ctx context.Context, snap *chat.Snapshot) (string, error)
	SyncBeacon(snap *chat.Snapshot)
	AuthStatus(ctx context.Context) (bool, error)
}

// Trigger names the event that asked for a push. Run fires activity and
// periodic itself; manual comes from the CLI sync command. Navigation and
// hidden have no analog in the file-watching agent and exist for embedding
// hosts that observe page context: fire them through Trigger and they pass
// the same guard chain as activity.
type Trigger string

const (
	TriggerActivity   Trigger = "activity"
	TriggerPeriodic   Trigger = "periodic"
	TriggerManual     Trigger = "manual"
	TriggerNavigation Trigger = "navigation"
	TriggerHidden     Trigger = "hidden"
	TriggerTeardown   Trigger = "teardown"
)

// Config holds the tunable intervals. All three are operator knobs, not
// policy baked into the guard chain.
type Config struct {
	ActivityDebounce time.Duration
	PeriodicInterval time.Duration
	MinPushInterval  time.Duration
}

// DefaultConfig mirrors the stock tuning: react to activity after 5s of
// quiet, re-check every 5 minutes, and never push more than once per 30s.
func DefaultConfig() Config {
	return Config{
		ActivityDebounce: 5 * time.Second,
		PeriodicInterval: 5 * time.Minute,
		MinPushInterval:  30 * time.Second,
	}
}

// Scheduler owns the push eligibility state for one conversation source.
// Construct one per source; shared use across sources would cross-contaminate
// the fingerprint.
type Scheduler struct {
	cfg       Config
	transport Transport
	collector collector.Collector
	logger    *slog.Logger
	now       func() time.Time

	mu              sync.Mutex
	enabled         bool
	syncing         bool
	lastPushAt      time.Time
	lastFingerprint uint64
	fingerprinted   bool
}

// Option tweaks a Scheduler at construction.
type Option func(*Scheduler)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(cfg Config, transport Transport, col collector.Collector, enabled bool, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.ActivityDebounce <= 0 {
		cfg.ActivityDebounce = DefaultConfig().ActivityDebounce
	}
	if cfg.PeriodicInterval <= 0 {
		cfg.PeriodicInterval = DefaultConfig().PeriodicInterval
	}
	if cfg.MinPushInterval <= 0 {
		cfg.MinPushInterval = DefaultConfig().MinPushInterval
	}
	s := &Scheduler{
		cfg:       cfg,
		transport: transport,
		collector: col,
		logger:    logger,
		now:       time.Now,
		enabled:   enabled,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEnabled flips the auto-sync switch. Persisting the choice is the
// caller's job.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Fingerprint is a cheap change detector, not an integrity check. A
// collision costs one skipped push, which the next edit recovers.
func Fingerprint(snap *chat.Snapshot) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s|%s|%d|%s",
		snap.Provider, snap.ExternalID, len(snap.Messages), snap.LastPreview()))
}

// Trigger runs the guard chain and, if every guard passes, pushes the
// current snapshot. It returns the conversation id on success and a skip
// sentinel (or transport error) otherwise.
//
// Guard order: enabled, single-flight, min interval, auth, fingerprint.
// Manual triggers bypass the enabled and min-interval guards so "sync now"
// always gets a chance to run.
func (s *Scheduler) Trigger(ctx context.Context, trig Trigger) (string, error) {
	s.mu.Lock()
	if !s.enabled && trig != TriggerManual {
		s.mu.Unlock()
		return "", ErrDisabled
	}
	if s.syncing {
		s.mu.Unlock()
		return "", ErrSyncInFlight
	}
	if trig != TriggerManual && s.now().Sub(s.lastPushAt) < s.cfg.MinPushInterval {
		s.mu.Unlock()
		return "", ErrTooSoon
	}
	s.syncing = true
	s.mu.Unlock()

	id, err := s.push(ctx, trig)

	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
	return id, err
}

func (s *Scheduler) push(ctx context.Context, trig Trigger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ok, err := s.transport.AuthStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("auth status: %w", err)
	}
	if !ok {
		return "", ErrNotAuthenticated
	}

	snap, err := s.collector.Collect(ctx)
	if err != nil {
		return "", fmt.Errorf("collect snapshot: %w", err)
	}

	fp := Fingerprint(snap)
	s.mu.Lock()
	unchanged := s.fingerprinted && fp == s.lastFingerprint
	s.mu.Unlock()
	if unchanged {
		return "", ErrNoChanges
	}

	id, err := s.transport.Sync(ctx, snap)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lastPushAt = s.now()
	s.lastFingerprint = fp
	s.fingerprinted = true
	s.mu.Unlock()

	s.logger.Info("conversation pushed",
		"trigger", trig,
		"provider", snap.Provider,
		"external_id", snap.ExternalID,
		"messages", len(snap.Messages),
		"conversation_id", id)
	return id, nil
}

// Teardown fires a best-effort beacon if an unpushed change is pending. It
// never blocks and never reports errors; the unload path cannot wait.
func (s *Scheduler) Teardown(ctx context.Context) {
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		s.logger.Debug("teardown collect failed", "error", err)
		return
	}
	fp := Fingerprint(snap)

	s.mu.Lock()
	pending := !s.fingerprinted || fp != s.lastFingerprint
	s.mu.Unlock()
	if !pending {
		return
	}
	s.transport.SyncBeacon(snap)
	s.logger.Debug("teardown beacon fired", "provider", snap.Provider, "external_id", snap.ExternalID)
}

// Run is the event loop: activity signals are debounced, a ticker drives the
// periodic trigger, and context cancellation fires the teardown beacon.
func (s *Scheduler) Run(ctx context.Context, activity <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PeriodicInterval)
	defer ticker.Stop()

	var debounceC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			// A fresh short-lived context: ctx itself is already dead.
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Teardown(tctx)
			cancel()
			return
		case _, open := <-activity:
			if !open {
				activity = nil
				continue
			}
			// Restart the quiet window on every signal. A replaced timer's
			// stale fire is ignored because we only read the latest channel.
			debounceC = time.After(s.cfg.ActivityDebounce)
		case <-debounceC:
			debounceC = nil
			s.trigger(ctx, TriggerActivity)
		case <-ticker.C:
			s.trigger(ctx, TriggerPeriodic)
		}
	}
}

// trigger logs skips at debug and real failures at warn. Nothing here is
// user-visible; manual syncs go through Trigger directly.
func (s *Scheduler) trigger(ctx context.Context, trig Trigger) {
	_, err := s.Trigger(ctx, trig)
	switch {
	case err == nil:
	case errors.Is(err, ErrDisabled), errors.Is(err, ErrSyncInFlight),
		errors.Is(err, ErrTooSoon), errors.Is(err, ErrNoChanges),
		errors.Is(err, ErrNotAuthenticated):
		s.logger.Debug("sync skipped", "trigger", trig, "reason", err)
	default:
		s.logger.Warn("sync failed", "trigger", trig, "error", err)
	}
}
