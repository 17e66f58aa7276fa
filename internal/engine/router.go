package engine

import "time"

// DefaultToastDuration bounds the on-screen time of a normal-priority toast.
const DefaultToastDuration = 8 * time.Second

// Router maps a newly-admitted notification to its presentation channels.
// Critical notifications route exclusively through the acknowledgment
// machine; the modal owns its own visual treatment, so no independent
// toast or sound fires for them.
type Router struct {
	ack        *AckMachine
	emit       func(Event)
	muted      func() bool
	permission func() PermissionState
}

// Route dispatches one notification. First match wins.
func (r *Router) Route(n Notification) {
	cp := n

	switch n.Priority {
	case PriorityCritical:
		r.ack.Enqueue(n)
		return
	case PriorityImportant:
		// Indefinite toast: dismissed manually, never affects is_read.
		r.emit(Event{Kind: EventToast, Notification: &cp})
	default:
		r.emit(Event{Kind: EventToast, Notification: &cp, DurationMS: int(DefaultToastDuration.Milliseconds())})
	}

	if !r.muted() {
		r.emit(Event{Kind: EventSound, Notification: &cp, Sound: n.SoundCue()})
	}
	if r.permission() == PermissionGranted {
		r.emit(Event{Kind: EventNative, Notification: &cp})
	}
}
