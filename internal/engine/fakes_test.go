package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// base time for deterministic created_at ordering in tests
var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func notif(id string, priority Priority, offset time.Duration) Notification {
	return Notification{
		ID:        id,
		Title:     "title " + id,
		Message:   "message " + id,
		Type:      "message",
		Priority:  priority,
		CreatedAt: testEpoch.Add(offset),
	}
}

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// fakeWriteback records mutation calls and fails a configurable number
// of times per operation before succeeding.
type fakeWriteback struct {
	mu           sync.Mutex
	markReadIDs  []string
	markAllCalls int
	ackIDs       []string

	failMarkRead int
	failAck      int

	done chan string // receives op name on each successful call, if set
}

func (f *fakeWriteback) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.failMarkRead > 0 {
		f.failMarkRead--
		f.mu.Unlock()
		return errors.New("mark-read unavailable")
	}
	f.markReadIDs = append(f.markReadIDs, id)
	done := f.done
	f.mu.Unlock()
	if done != nil {
		done <- "mark-read"
	}
	return nil
}

func (f *fakeWriteback) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	f.markAllCalls++
	done := f.done
	f.mu.Unlock()
	if done != nil {
		done <- "mark-all-read"
	}
	return nil
}

func (f *fakeWriteback) Acknowledge(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAck > 0 {
		f.failAck--
		return errors.New("acknowledge unavailable")
	}
	f.ackIDs = append(f.ackIDs, id)
	return nil
}

func (f *fakeWriteback) readIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.markReadIDs))
	copy(out, f.markReadIDs)
	return out
}

func (f *fakeWriteback) acknowledged() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ackIDs))
	copy(out, f.ackIDs)
	return out
}

// fakeBaseline serves a fixed snapshot, optionally failing first.
type fakeBaseline struct {
	mu      sync.Mutex
	records []Notification
	err     error
	calls   int
}

func (f *fakeBaseline) FetchBaseline(ctx context.Context) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Notification, len(f.records))
	copy(out, f.records)
	return out, nil
}

// fakeTransport hands the subscription handler back to the test so it
// can inject live deliveries.
type fakeTransport struct {
	mu           sync.Mutex
	handler      func(Notification)
	channels     []string
	subscribeErr error
	unsubscribed bool
}

func (f *fakeTransport) Subscribe(ctx context.Context, channels []string, handler func(Notification)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.handler = handler
	f.channels = channels
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.handler = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeTransport) deliver(n Notification) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(n)
	}
}

// racingBaseline pushes its records through the live transport before
// answering the fetch, reproducing a delivery that races ahead of the
// baseline response.
type racingBaseline struct {
	transport *fakeTransport
	records   []Notification
}

func (b *racingBaseline) FetchBaseline(ctx context.Context) ([]Notification, error) {
	for _, n := range b.records {
		b.transport.deliver(n)
	}
	out := make([]Notification, len(b.records))
	copy(out, b.records)
	return out, nil
}

// fakeReleases serves one latest release.
type fakeReleases struct {
	mu      sync.Mutex
	release *Release
	err     error
}

func (f *fakeReleases) LatestRelease(ctx context.Context) (*Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.release, f.err
}

// fakePrefs persists preference markers in memory.
type fakePrefs struct {
	mu         sync.Mutex
	prefs      Prefs
	setVersErr error
}

func (f *fakePrefs) Load(ctx context.Context) (Prefs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs, nil
}

func (f *fakePrefs) SetLastSeenVersion(ctx context.Context, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setVersErr != nil {
		return f.setVersErr
	}
	f.prefs.LastSeenVersion = version
	return nil
}

func (f *fakePrefs) SetMuted(ctx context.Context, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs.Muted = muted
	return nil
}

func (f *fakePrefs) lastSeen() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs.LastSeenVersion
}
