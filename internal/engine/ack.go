package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// AckState is the lifecycle state of the currently displayed critical
// notification.
type AckState string

const (
	AckPending       AckState = "pending"
	AckDisplayed     AckState = "displayed"
	AckAcknowledging AckState = "acknowledging"
	AckAcknowledged  AckState = "acknowledged"
)

// AckMachine owns the blocking-modal lifecycle for critical notifications.
// At most one notification is displayed or acknowledging at a time; the
// rest wait in a FIFO queue ordered by created_at. The modal only closes
// through a successful remote acknowledgment - there is no timeout or
// outside-click path.
type AckMachine struct {
	mu        sync.Mutex
	store     *Store
	writeback Writeback
	emit      func(Event)

	queue   []Notification
	current *Notification
	state   AckState
}

// NewAckMachine creates the machine for one session.
func NewAckMachine(store *Store, wb Writeback, emit func(Event)) *AckMachine {
	return &AckMachine{store: store, writeback: wb, emit: emit}
}

// Enqueue admits a critical notification. Already-acknowledged or
// already-queued ids are ignored, which makes redelivery and recovery
// reseeding harmless. If nothing is displayed the notification is
// promoted immediately, otherwise it waits its turn.
func (m *AckMachine) Enqueue(n Notification) {
	if n.Priority != PriorityCritical || n.IsAcknowledged {
		return
	}

	m.mu.Lock()
	if m.current != nil && m.current.ID == n.ID {
		m.mu.Unlock()
		return
	}
	for _, queued := range m.queue {
		if queued.ID == n.ID {
			m.mu.Unlock()
			return
		}
	}

	m.queue = append(m.queue, n)
	sort.SliceStable(m.queue, func(i, j int) bool {
		return m.queue[i].CreatedAt.Before(m.queue[j].CreatedAt)
	})

	var show *Notification
	if m.current == nil {
		show = m.promoteLocked()
	}
	m.mu.Unlock()

	if show != nil {
		m.emit(Event{Kind: EventCriticalShow, Notification: show})
	}
}

// Reseed re-enters the queue for every still-unacknowledged critical
// notification. Called on session start after the baseline reconciled:
// this is how a critical alert survives a reload - it is re-derived from
// the durable baseline, never buffered only in memory.
func (m *AckMachine) Reseed(pending []Notification) {
	for _, n := range pending {
		m.Enqueue(n)
	}
}

// Confirm runs the displayed -> acknowledging -> acknowledged transition
// for the given id. On remote failure the machine returns to displayed so
// the user can retry; on success the store flag flips, the modal closes
// and the next queued critical (if any) is promoted.
func (m *AckMachine) Confirm(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return fmt.Errorf("notification %s is not currently displayed", id)
	}
	if m.state != AckDisplayed {
		m.mu.Unlock()
		return fmt.Errorf("acknowledgment already in progress for %s", id)
	}
	m.state = AckAcknowledging
	m.mu.Unlock()

	if err := m.writeback.Acknowledge(ctx, id); err != nil {
		m.mu.Lock()
		m.state = AckDisplayed
		m.mu.Unlock()
		return fmt.Errorf("acknowledge %s: %w", id, err)
	}

	m.mu.Lock()
	done := *m.current
	done.IsAcknowledged = true
	m.current = nil
	m.state = AckAcknowledged
	next := m.promoteLocked()
	m.mu.Unlock()

	m.store.markAcknowledged(id)
	m.emit(Event{Kind: EventCriticalClose, Notification: &done})
	if next != nil {
		m.emit(Event{Kind: EventCriticalShow, Notification: next})
	}
	return nil
}

// Sync reconciles the machine against the store's pending-critical set.
// When an acknowledgment arrives through another path (another tab, the
// REST API), the corresponding modal closes and queued entries drop
// without a local confirm.
func (m *AckMachine) Sync(pending []Notification) {
	stillPending := make(map[string]bool, len(pending))
	for _, n := range pending {
		stillPending[n.ID] = true
	}

	m.mu.Lock()
	kept := m.queue[:0]
	for _, n := range m.queue {
		if stillPending[n.ID] {
			kept = append(kept, n)
		}
	}
	m.queue = kept

	var closed *Notification
	var next *Notification
	if m.current != nil && m.state == AckDisplayed && !stillPending[m.current.ID] {
		done := *m.current
		done.IsAcknowledged = true
		closed = &done
		m.current = nil
		next = m.promoteLocked()
	}
	m.mu.Unlock()

	if closed != nil {
		m.emit(Event{Kind: EventCriticalClose, Notification: closed})
	}
	if next != nil {
		m.emit(Event{Kind: EventCriticalShow, Notification: next})
	}
}

// Current returns the displayed notification and its state, if any.
func (m *AckMachine) Current() (Notification, AckState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Notification{}, "", false
	}
	return *m.current, m.state, true
}

// QueueDepth returns the number of criticals waiting behind the current one.
func (m *AckMachine) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *AckMachine) promoteLocked() *Notification {
	if len(m.queue) == 0 {
		return nil
	}
	head := m.queue[0]
	m.queue = m.queue[1:]
	m.current = &head
	m.state = AckDisplayed
	cp := head
	return &cp
}
