package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAckFixture(wb *fakeWriteback) (*AckMachine, *Store, *eventRecorder) {
	rec := &eventRecorder{}
	store := NewStore(wb)
	return NewAckMachine(store, wb, rec.emit), store, rec
}

func TestEnqueueDisplaysFirstQueuesRest(t *testing.T) {
	m, _, rec := newAckFixture(&fakeWriteback{})

	m.Enqueue(notif("c1", PriorityCritical, 0))
	m.Enqueue(notif("c2", PriorityCritical, time.Minute))

	current, state, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c1", current.ID)
	assert.Equal(t, AckDisplayed, state)
	assert.Equal(t, 1, m.QueueDepth())

	shows := rec.ofKind(EventCriticalShow)
	require.Len(t, shows, 1, "only one modal visible at a time")
	assert.Equal(t, "c1", shows[0].Notification.ID)
}

func TestEnqueueIgnoresNonCriticalAndAcknowledged(t *testing.T) {
	m, _, rec := newAckFixture(&fakeWriteback{})

	m.Enqueue(notif("n1", PriorityNormal, 0))
	acked := notif("c1", PriorityCritical, 0)
	acked.IsAcknowledged = true
	m.Enqueue(acked)

	_, _, ok := m.Current()
	assert.False(t, ok)
	assert.Empty(t, rec.all())
}

func TestEnqueueOrdersQueueByCreatedAt(t *testing.T) {
	m, _, _ := newAckFixture(&fakeWriteback{})

	m.Enqueue(notif("c1", PriorityCritical, 0)) // displayed
	m.Enqueue(notif("c3", PriorityCritical, 2*time.Minute))
	m.Enqueue(notif("c2", PriorityCritical, time.Minute))

	require.NoError(t, m.Confirm(context.Background(), "c1"))

	current, _, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c2", current.ID, "queue drains oldest-first regardless of arrival order")
}

func TestEnqueueDeduplicates(t *testing.T) {
	m, _, rec := newAckFixture(&fakeWriteback{})

	c1 := notif("c1", PriorityCritical, 0)
	m.Enqueue(c1)
	m.Enqueue(c1) // redelivery of the displayed record
	c2 := notif("c2", PriorityCritical, time.Minute)
	m.Enqueue(c2)
	m.Enqueue(c2) // redelivery of a queued record

	assert.Equal(t, 1, m.QueueDepth())
	assert.Len(t, rec.ofKind(EventCriticalShow), 1)
}

func TestConfirmAcknowledgesAndPromotes(t *testing.T) {
	wb := &fakeWriteback{}
	m, store, rec := newAckFixture(wb)

	store.Upsert(notif("c1", PriorityCritical, 0))
	store.Upsert(notif("c2", PriorityCritical, time.Minute))
	m.Reseed(store.PendingCritical())

	require.NoError(t, m.Confirm(context.Background(), "c1"))

	assert.Equal(t, []string{"c1"}, wb.acknowledged(), "remote call happens before the local flag flips")
	assert.Len(t, store.PendingCritical(), 1)

	closes := rec.ofKind(EventCriticalClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "c1", closes[0].Notification.ID)
	assert.True(t, closes[0].Notification.IsAcknowledged)

	current, state, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c2", current.ID)
	assert.Equal(t, AckDisplayed, state)
}

func TestConfirmFailureKeepsModalDisplayed(t *testing.T) {
	wb := &fakeWriteback{failAck: 1}
	m, store, rec := newAckFixture(wb)

	store.Upsert(notif("c1", PriorityCritical, 0))
	m.Reseed(store.PendingCritical())

	err := m.Confirm(context.Background(), "c1")
	require.Error(t, err)

	current, state, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c1", current.ID)
	assert.Equal(t, AckDisplayed, state, "failed acknowledgment returns to displayed for retry")
	assert.Empty(t, rec.ofKind(EventCriticalClose))
	assert.Len(t, store.PendingCritical(), 1, "store flag untouched on failure")

	// retry succeeds
	require.NoError(t, m.Confirm(context.Background(), "c1"))
	assert.Empty(t, store.PendingCritical())
}

func TestConfirmRejectsUndisplayedID(t *testing.T) {
	m, _, _ := newAckFixture(&fakeWriteback{})

	m.Enqueue(notif("c1", PriorityCritical, 0))
	m.Enqueue(notif("c2", PriorityCritical, time.Minute))

	assert.Error(t, m.Confirm(context.Background(), "c2"), "only the displayed notification can be confirmed")
	assert.Error(t, m.Confirm(context.Background(), "missing"))
}

func TestReseedRecoversPendingCriticals(t *testing.T) {
	m, store, rec := newAckFixture(&fakeWriteback{})

	store.Upsert(notif("c1", PriorityCritical, 0))
	store.Upsert(notif("c2", PriorityCritical, time.Minute))
	acked := notif("c3", PriorityCritical, 2*time.Minute)
	acked.IsAcknowledged = true
	store.Upsert(acked)

	m.Reseed(store.PendingCritical())
	m.Reseed(store.PendingCritical()) // reseeding twice changes nothing

	current, _, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "c1", current.ID)
	assert.Equal(t, 1, m.QueueDepth())
	assert.Len(t, rec.ofKind(EventCriticalShow), 1)
}

func TestSyncClosesExternallyAcknowledgedModal(t *testing.T) {
	m, store, rec := newAckFixture(&fakeWriteback{})

	store.Upsert(notif("c1", PriorityCritical, 0))
	store.Upsert(notif("c2", PriorityCritical, time.Minute))
	m.Reseed(store.PendingCritical())

	// c1 acknowledged in another tab; the merged record lands in the store
	external := notif("c1", PriorityCritical, 0)
	external.IsAcknowledged = true
	store.Upsert(external)

	m.Sync(store.PendingCritical())

	closes := rec.ofKind(EventCriticalClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "c1", closes[0].Notification.ID)

	current, _, ok := m.Current()
	require.True(t, ok, "next queued critical promotes after the external close")
	assert.Equal(t, "c2", current.ID)
}

func TestSyncDropsQueuedEntries(t *testing.T) {
	m, store, _ := newAckFixture(&fakeWriteback{})

	store.Upsert(notif("c1", PriorityCritical, 0))
	store.Upsert(notif("c2", PriorityCritical, time.Minute))
	m.Reseed(store.PendingCritical())

	external := notif("c2", PriorityCritical, time.Minute)
	external.IsAcknowledged = true
	store.Upsert(external)

	m.Sync(store.PendingCritical())

	current, _, ok := m.Current()
	require.True(t, ok, "displayed modal unaffected")
	assert.Equal(t, "c1", current.ID)
	assert.Equal(t, 0, m.QueueDepth())
}

func TestSyncNoopWhenNothingChanged(t *testing.T) {
	m, store, rec := newAckFixture(&fakeWriteback{})

	store.Upsert(notif("c1", PriorityCritical, 0))
	m.Reseed(store.PendingCritical())
	before := len(rec.all())

	m.Sync(store.PendingCritical())
	assert.Len(t, rec.all(), before)
}
