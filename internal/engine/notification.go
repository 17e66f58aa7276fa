// Package engine implements the client-side notification pipeline: it
// ingests events from the Redis pub/sub transport and the REST baseline,
// reconciles them into a single per-session store, routes each admitted
// notification to its presentation channels, and drives the blocking
// acknowledgment flow for critical notifications.
package engine

import (
	"context"
	"time"
)

// Priority is the severity of a notification. It determines which
// presentation channels fire and whether acknowledgment is required.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityImportant Priority = "important"
	PriorityCritical  Priority = "critical"
)

// PermissionState mirrors the native notification permission of the
// consuming UI. The engine functions fully in the denied state.
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Notification is the engine-side representation of a notification event.
// ID is the sole deduplication key; is_read and is_acknowledged are the
// only mutable fields and only ever move from false to true.
type Notification struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	Priority       Priority  `json:"priority"`
	Link           string    `json:"link,omitempty"`
	Sound          string    `json:"sound,omitempty"`
	IsRead         bool      `json:"is_read"`
	IsAcknowledged bool      `json:"is_acknowledged"`
	CreatedAt      time.Time `json:"created_at"`
}

// SoundCue returns the audio cue identifier, falling back to the generic cue.
func (n Notification) SoundCue() string {
	if n.Sound != "" {
		return n.Sound
	}
	return "default"
}

// Release describes a published product release for the what's-new gate.
type Release struct {
	Version    string    `json:"version"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes"`
	ReleasedAt time.Time `json:"released_at"`
}

// Prefs holds the cross-session persisted per-user preferences.
type Prefs struct {
	LastSeenVersion string `json:"last_seen_version"`
	Muted           bool   `json:"muted"`
}

// Baseline fetches the authoritative notification snapshot for the
// session's user, most-recent-first, bounded count.
type Baseline interface {
	FetchBaseline(ctx context.Context) ([]Notification, error)
}

// Transport delivers live notification events. Reconnection and delivery
// retry are the transport's responsibility; the engine only guarantees
// idempotent consumption of whatever it redelivers. The returned function
// tears the subscription down.
type Transport interface {
	Subscribe(ctx context.Context, channels []string, handler func(Notification)) (func(), error)
}

// Writeback performs the remote read/acknowledge mutations. All calls are
// idempotent from the engine's perspective: repeating a call for an
// already-updated record must not error.
type Writeback interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Acknowledge(ctx context.Context, id string) error
}

// ReleaseSource reports the latest known release, or nil if none exists.
type ReleaseSource interface {
	LatestRelease(ctx context.Context) (*Release, error)
}

// Preferences loads and persists the per-user preference markers. Each
// setter is the single writer path for its field.
type Preferences interface {
	Load(ctx context.Context) (Prefs, error)
	SetLastSeenVersion(ctx context.Context, version string) error
	SetMuted(ctx context.Context, muted bool) error
}
