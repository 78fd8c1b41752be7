package canvas

import "time"

// DefaultReconcileDelay is how long to wait after a local undo/redo before
// broadcasting the full shape set, letting the local visible state settle
// first. The delay sequences local work; it gives no protection against
// other clients.
const DefaultReconcileDelay = 50 * time.Millisecond

// Reconciler broadcasts the client's complete post-undo/redo shape set to
// the room. Undo and redo have no well-defined causal position in a
// multi-writer history, so the consistency model is deliberately
// last-writer-wins: if two participants undo concurrently, whichever
// shapes_sync the server relays last determines everyone's visible state,
// with no conflict signal to either user.
type Reconciler struct {
	adapter *Adapter
	delay   time.Duration
}

// NewReconciler wraps the adapter's undo/redo. A non-positive delay falls
// back to DefaultReconcileDelay.
func NewReconciler(adapter *Adapter, delay time.Duration) *Reconciler {
	if delay <= 0 {
		delay = DefaultReconcileDelay
	}
	return &Reconciler{adapter: adapter, delay: delay}
}

// Undo performs a local undo and schedules the reconciling broadcast.
func (r *Reconciler) Undo() {
	r.adapter.Undo()
	r.schedule()
}

// Redo performs a local redo and schedules the reconciling broadcast.
func (r *Reconciler) Redo() {
	r.adapter.Redo()
	r.schedule()
}

func (r *Reconciler) schedule() {
	if !r.adapter.Collaborating() {
		return
	}
	// The shape set is read when the timer fires, not now, so the broadcast
	// reflects whatever the collection has settled to.
	time.AfterFunc(r.delay, r.adapter.SyncShapesNow)
}
