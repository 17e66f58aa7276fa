package engine

// EventKind identifies a presentation channel directive.
type EventKind string

const (
	// EventToast shows a transient toast. DurationMS 0 means the toast
	// must be manually dismissed.
	EventToast EventKind = "toast"
	// EventSound plays an audio cue. Playback failure must be swallowed
	// by the consumer and never block the pipeline.
	EventSound EventKind = "sound"
	// EventNative shows a native OS notification. Emitted only when the
	// reported permission state is granted.
	EventNative EventKind = "native"
	// EventCriticalShow displays the blocking acknowledgment modal.
	EventCriticalShow EventKind = "critical_show"
	// EventCriticalClose unmounts the modal after a successful acknowledgment.
	EventCriticalClose EventKind = "critical_close"
	// EventWhatsNew shows the once-per-version release modal.
	EventWhatsNew EventKind = "whats_new"
	// EventWhatsNewClose dismisses the release modal after the marker persisted.
	EventWhatsNewClose EventKind = "whats_new_close"
	// EventState carries the refreshed store snapshot after any change.
	EventState EventKind = "state"
)

// Event is a presentation directive streamed to the consuming UI.
type Event struct {
	Kind         EventKind     `json:"kind"`
	Notification *Notification `json:"notification,omitempty"`
	DurationMS   int           `json:"duration_ms,omitempty"`
	Sound        string        `json:"sound,omitempty"`
	Release      *Release      `json:"release,omitempty"`
	State        *Snapshot     `json:"state,omitempty"`
}
