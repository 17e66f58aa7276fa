package engine

import (
	"context"
	"fmt"
	"sync"
)

// VersionGate shows the what's-new presentation at most once per release.
// The persisted last_seen_version marker is written only by Close, and
// only before the modal dismisses: an interrupted write leaves the gate
// open to show again next session - shown-twice beats never-shown.
type VersionGate struct {
	prefs    Preferences
	releases ReleaseSource
	emit     func(Event)

	mu       sync.Mutex
	lastSeen string
	pending  *Release
}

// NewVersionGate wires the gate for one session.
func NewVersionGate(prefs Preferences, releases ReleaseSource, emit func(Event)) *VersionGate {
	return &VersionGate{prefs: prefs, releases: releases, emit: emit}
}

// setLastSeen seeds the marker from the loaded preferences.
func (g *VersionGate) setLastSeen(version string) {
	g.mu.Lock()
	g.lastSeen = version
	g.mu.Unlock()
}

// Check compares the latest release against the marker and presents the
// modal when they differ.
func (g *VersionGate) Check(ctx context.Context) error {
	release, err := g.releases.LatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("latest release: %w", err)
	}
	if release == nil {
		return nil
	}

	g.mu.Lock()
	if release.Version == g.lastSeen || g.pending != nil {
		g.mu.Unlock()
		return nil
	}
	g.pending = release
	g.mu.Unlock()

	g.emit(Event{Kind: EventWhatsNew, Release: release})
	return nil
}

// Close persists the presented version as last_seen_version and then
// dismisses the modal. On a failed persist the modal stays pending and
// the caller may retry.
func (g *VersionGate) Close(ctx context.Context) error {
	g.mu.Lock()
	release := g.pending
	g.mu.Unlock()
	if release == nil {
		return nil
	}

	if err := g.prefs.SetLastSeenVersion(ctx, release.Version); err != nil {
		return fmt.Errorf("persist last_seen_version: %w", err)
	}

	g.mu.Lock()
	g.lastSeen = release.Version
	g.pending = nil
	g.mu.Unlock()

	g.emit(Event{Kind: EventWhatsNewClose, Release: release})
	return nil
}
