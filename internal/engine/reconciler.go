package engine

import (
	"context"
	"fmt"
	"log"
)

// Reconciler merges the REST baseline with the live event stream. Every
// record from either source passes through the one Store.Upsert funnel,
// so dedup-by-id lives in exactly one place regardless of event origin.
type Reconciler struct {
	store     *Store
	baseline  Baseline
	transport Transport
	channels  []string

	// onAdmit fires for notifications newly admitted from the live
	// stream. Baseline records populate the store silently; pending
	// criticals among them are recovered by reseeding the ack queue.
	onAdmit func(Notification)

	unsubscribe func()
}

// NewReconciler wires the reconciler for one session.
func NewReconciler(store *Store, baseline Baseline, transport Transport, channels []string, onAdmit func(Notification)) *Reconciler {
	return &Reconciler{
		store:     store,
		baseline:  baseline,
		transport: transport,
		channels:  channels,
		onAdmit:   onAdmit,
	}
}

// Start opens the subscriptions and fetches the baseline. A baseline
// failure is logged and tolerated: live events keep populating the store
// while the history is unavailable. Ordering between the fetch and live
// delivery is immaterial because Upsert is commutative and idempotent.
func (r *Reconciler) Start(ctx context.Context) error {
	unsubscribe, err := r.transport.Subscribe(ctx, r.channels, r.ingestLive)
	if err != nil {
		return fmt.Errorf("transport subscribe: %w", err)
	}
	r.unsubscribe = unsubscribe

	if err := r.Resync(ctx); err != nil {
		log.Printf("ERROR: baseline fetch failed (live delivery continues): %v", err)
	}
	return nil
}

// Resync refetches the baseline and upserts every record. Safe to call
// after a reconnect: re-upserting known records changes nothing because
// of the monotonic-flag merge rule.
func (r *Reconciler) Resync(ctx context.Context) error {
	records, err := r.baseline.FetchBaseline(ctx)
	if err != nil {
		return err
	}
	for _, n := range records {
		r.store.Upsert(n)
	}
	return nil
}

// Stop tears down the subscriptions. Required on session teardown:
// a leaked handler would double-deliver events after a remount.
func (r *Reconciler) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Reconciler) ingestLive(n Notification) {
	if r.store.Upsert(n) && r.onAdmit != nil {
		r.onAdmit(n)
	}
}
