package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Writeback retry policy for non-critical marks: bounded backoff, then
// give up and keep the optimistic local state (eventual consistency).
const writebackAttempts = 3

// Snapshot is the read-only view exposed to the surrounding UI.
type Snapshot struct {
	Notifications   []Notification `json:"notifications"`
	UnreadCount     int            `json:"unread_count"`
	PendingCritical []Notification `json:"pending_critical"`
}

// Store holds the authoritative in-memory notification set for one
// session. All mutation goes through the named operations; unread count
// and the pending-critical queue are derived, never independently kept.
type Store struct {
	mu        sync.Mutex
	byID      map[string]*Notification
	writeback Writeback

	// notifyMu serializes subscriber dispatch so snapshots arrive in
	// mutation order. Always acquired while still holding mu.
	notifyMu sync.Mutex

	subs    map[int]func(Snapshot)
	nextSub int

	retryBase time.Duration
}

// NewStore creates an empty store. The writeback collaborator receives
// fire-and-forget mark-read calls; it may be nil for a read-only session.
func NewStore(wb Writeback) *Store {
	return &Store{
		byID:      make(map[string]*Notification),
		writeback: wb,
		subs:      make(map[int]func(Snapshot)),
		retryBase: time.Second,
	}
}

// Upsert inserts the notification if its id is unknown, otherwise merges:
// the read/acknowledged flags are OR-ed with the existing copy (never
// downgraded) and the newest copy of all other fields wins. It reports
// whether the id was newly admitted. Upsert is commutative and idempotent,
// so baseline and live delivery may interleave in any order.
func (s *Store) Upsert(n Notification) bool {
	s.mu.Lock()

	existing, known := s.byID[n.ID]
	changed := false
	if known {
		merged := n
		merged.IsRead = n.IsRead || existing.IsRead
		merged.IsAcknowledged = n.IsAcknowledged || existing.IsAcknowledged
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = existing.CreatedAt
		}
		if merged != *existing {
			*existing = merged
			changed = true
		}
	} else {
		cp := n
		s.byID[n.ID] = &cp
		changed = true
	}

	s.finishLocked(changed)
	return !known
}

// MarkAsRead sets is_read for one notification. The local state updates
// optimistically; the remote call runs in the background and is never
// rolled back on failure.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok || n.IsRead {
		s.mu.Unlock()
		return
	}
	n.IsRead = true
	s.finishLocked(true)

	if s.writeback != nil {
		go s.retryWriteback("mark-read", func(ctx context.Context) error {
			return s.writeback.MarkRead(ctx, id)
		})
	}
}

// MarkAllAsRead sets is_read on every held notification.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	changed := false
	for _, n := range s.byID {
		if !n.IsRead {
			n.IsRead = true
			changed = true
		}
	}
	s.finishLocked(changed)

	if changed && s.writeback != nil {
		go s.retryWriteback("mark-all-read", func(ctx context.Context) error {
			return s.writeback.MarkAllRead(ctx)
		})
	}
}

// markAcknowledged flips is_acknowledged locally. Only the acknowledgment
// machine calls this, and only after the remote call succeeded.
func (s *Store) markAcknowledged(id string) {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok || n.IsAcknowledged {
		s.mu.Unlock()
		return
	}
	n.IsAcknowledged = true
	s.finishLocked(true)
}

// Snapshot returns the current state: notifications most-recent-first,
// the derived unread count, and the pending-critical queue oldest-first.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// PendingCritical returns critical, unacknowledged notifications ordered
// by created_at. It is recomputed by filtering on every call.
func (s *Store) PendingCritical() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCriticalLocked()
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.byID {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Subscribe registers a change observer. The returned function removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// finishLocked releases the lock and, when the state changed, notifies
// subscribers with a consistent snapshot taken under the lock. notifyMu
// is taken before mu is released: a later mutation cannot deliver its
// snapshot ahead of an earlier one, so subscribers never observe state
// moving backwards.
func (s *Store) finishLocked(changed bool) {
	if !changed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	s.notifyMu.Unlock()
}

func (s *Store) snapshotLocked() Snapshot {
	all := make([]Notification, 0, len(s.byID))
	unread := 0
	for _, n := range s.byID {
		all = append(all, *n)
		if !n.IsRead {
			unread++
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return Snapshot{
		Notifications:   all,
		UnreadCount:     unread,
		PendingCritical: s.pendingCriticalLocked(),
	}
}

func (s *Store) pendingCriticalLocked() []Notification {
	var pending []Notification
	for _, n := range s.byID {
		if n.Priority == PriorityCritical && !n.IsAcknowledged {
			pending = append(pending, *n)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending
}

func (s *Store) retryWriteback(op string, fn func(context.Context) error) {
	delay := s.retryBase
	for attempt := 1; attempt <= writebackAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := fn(ctx)
		cancel()
		if err == nil {
			return
		}
		log.Printf("ERROR: %s writeback attempt %d/%d failed: %v", op, attempt, writebackAttempts, err)
		if attempt < writebackAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
}
