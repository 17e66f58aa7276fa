package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const defaultEventBuffer = 64

// Config wires one engine instance to its collaborators. Baseline,
// Transport and Writeback are required; Releases and Preferences are
// optional (without them the version gate and persisted mute state are
// disabled).
type Config struct {
	UserID      uint
	Baseline    Baseline
	Transport   Transport
	Writeback   Writeback
	Releases    ReleaseSource
	Preferences Preferences
	EventBuffer int
}

// Engine is the per-session notification pipeline. One instance exists
// per active session, created on session start and stopped on teardown;
// nothing outside the engine mutates notification state.
type Engine struct {
	cfg    Config
	store  *Store
	recon  *Reconciler
	router *Router
	ack    *AckMachine
	gate   *VersionGate

	events chan Event

	mu         sync.Mutex
	muted      bool
	permission PermissionState

	storeUnsub func()
}

// New assembles an engine. Call Start to begin ingesting events.
func New(cfg Config) (*Engine, error) {
	if cfg.Baseline == nil || cfg.Transport == nil || cfg.Writeback == nil {
		return nil, fmt.Errorf("engine requires baseline, transport and writeback collaborators")
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	e := &Engine{
		cfg:        cfg,
		events:     make(chan Event, buffer),
		permission: PermissionDefault,
	}
	e.store = NewStore(cfg.Writeback)
	e.ack = NewAckMachine(e.store, cfg.Writeback, e.emitEvent)
	e.router = &Router{
		ack:        e.ack,
		emit:       e.emitEvent,
		muted:      e.isMuted,
		permission: e.Permission,
	}
	e.recon = NewReconciler(e.store, cfg.Baseline, cfg.Transport,
		[]string{UserChannel(cfg.UserID), BroadcastChannel}, e.router.Route)
	if cfg.Releases != nil && cfg.Preferences != nil {
		e.gate = NewVersionGate(cfg.Preferences, cfg.Releases, e.emitEvent)
	}
	return e, nil
}

// Start loads preferences, opens the subscriptions, reconciles the
// baseline, recovers unacknowledged criticals into the modal queue and
// evaluates the version gate. Only a failed subscription is fatal.
func (e *Engine) Start(ctx context.Context) error {
	if e.cfg.Preferences != nil {
		if prefs, err := e.cfg.Preferences.Load(ctx); err != nil {
			log.Printf("WARNING: Failed to load preferences, using defaults: %v", err)
		} else {
			e.mu.Lock()
			e.muted = prefs.Muted
			e.mu.Unlock()
			if e.gate != nil {
				e.gate.setLastSeen(prefs.LastSeenVersion)
			}
		}
	}

	if err := e.recon.Start(ctx); err != nil {
		return err
	}

	// The store subscription opens only after the baseline reconciled.
	// Subscribing earlier would emit one state event per baseline row
	// and fill the buffer before any recovered modal directive gets in.
	e.storeUnsub = e.store.Subscribe(func(snap Snapshot) {
		// Acknowledgments reconciled from another tab or the REST path
		// close the modal here without a local confirm.
		e.ack.Sync(snap.PendingCritical)
		e.emitEvent(Event{Kind: EventState, State: &snap})
	})

	// Recovery: pending criticals are re-derived from the reconciled
	// store, never trusted to an in-memory buffer.
	e.ack.Reseed(e.store.PendingCritical())

	// One state event covering everything the reconciliation produced
	snap := e.store.Snapshot()
	e.emitEvent(Event{Kind: EventState, State: &snap})

	if e.gate != nil {
		if err := e.gate.Check(ctx); err != nil {
			log.Printf("ERROR: Version gate check failed: %v", err)
		}
	}
	return nil
}

// Resync refetches the baseline and re-enters recovery, for use after a
// transport reconnect.
func (e *Engine) Resync(ctx context.Context) error {
	if err := e.recon.Resync(ctx); err != nil {
		return err
	}
	e.ack.Reseed(e.store.PendingCritical())
	return nil
}

// Stop tears the session down: subscriptions are closed so a remount
// cannot double-register handlers.
func (e *Engine) Stop() {
	e.recon.Stop()
	if e.storeUnsub != nil {
		e.storeUnsub()
		e.storeUnsub = nil
	}
}

// Events exposes the presentation directive stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Snapshot returns the current read-only store view.
func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// MarkAsRead marks one notification read (local-first, remote in background).
func (e *Engine) MarkAsRead(id string) {
	e.store.MarkAsRead(id)
}

// MarkAllAsRead marks every notification read.
func (e *Engine) MarkAllAsRead() {
	e.store.MarkAllAsRead()
}

// Acknowledge confirms the currently displayed critical notification.
// The error is surfaced so the UI can re-enable the confirm control.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	return e.ack.Confirm(ctx, id)
}

// CurrentCritical exposes the displayed critical notification, if any.
func (e *Engine) CurrentCritical() (Notification, AckState, bool) {
	return e.ack.Current()
}

// CloseWhatsNew persists the version marker and dismisses the release modal.
func (e *Engine) CloseWhatsNew(ctx context.Context) error {
	if e.gate == nil {
		return nil
	}
	return e.gate.Close(ctx)
}

// RequestPermission records the native-permission outcome reported by the
// UI. Denied is a supported steady state, not an error.
func (e *Engine) RequestPermission(result PermissionState) {
	e.mu.Lock()
	e.permission = result
	e.mu.Unlock()
}

// Permission returns the last reported native-permission state.
func (e *Engine) Permission() PermissionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.permission
}

// SetMuted toggles the audio cue preference and persists it in the
// background; the local value applies immediately.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()

	if e.cfg.Preferences != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.cfg.Preferences.SetMuted(ctx, muted); err != nil {
				log.Printf("ERROR: Failed to persist muted preference: %v", err)
			}
		}()
	}
}

func (e *Engine) isMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// emitEvent never blocks the pipeline. When the consumer falls behind
// the buffered stream, droppable directives are discarded with a log;
// state events are recoverable from Snapshot at any time. Modal
// directives are never dropped: the blocking-acknowledgment guarantee
// depends on critical_show and critical_close reaching the consumer, so
// a full buffer sheds its oldest event to make room for them.
func (e *Engine) emitEvent(ev Event) {
	for {
		select {
		case e.events <- ev:
			return
		default:
		}

		if ev.Kind != EventCriticalShow && ev.Kind != EventCriticalClose {
			log.Printf("WARNING: Event stream full, dropping %s event", ev.Kind)
			return
		}

		select {
		case dropped := <-e.events:
			log.Printf("WARNING: Event stream full, dropping buffered %s event to deliver %s", dropped.Kind, ev.Kind)
		default:
		}
	}
}
