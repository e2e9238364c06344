package chat

import (
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/vmsouza/conversa/internal/metrics"
)

// subscriberBuffer is the per-subscriber event queue depth. Deliver never
// blocks: when the buffer is full the event is dropped and counted. A client
// this far behind is effectively dead and resyncs via the message history on
// reconnect.
const subscriberBuffer = 64

// Subscriber is one user's live delivery channel. It is created by
// Registry.Connect and drained by the SSE session loop; the channel is closed
// when the subscriber is disconnected, superseded, or the registry shuts down.
type Subscriber struct {
	id     string // ULID, for log correlation only
	userID int64
	events chan Event
	closed bool // guarded by the registry mutex
}

// Events returns the channel the session loop drains. It is closed when the
// subscriber is no longer current; the loop must treat a closed channel as
// end of session.
func (s *Subscriber) Events() <-chan Event { return s.events }

// UserID returns the user this subscriber delivers to.
func (s *Subscriber) UserID() int64 { return s.userID }

// ID returns the subscriber's instance id.
func (s *Subscriber) ID() string { return s.id }

// Registry is the authoritative map from user id to their single live
// subscriber. All operations are safe for concurrent use; callers never need
// external locking. The registry holds its lock only across map updates and
// non-blocking channel operations, never across I/O.
//
// Channel closes happen exclusively under the write lock and sends
// exclusively under the read lock, so a close can never race a send.
type Registry struct {
	mu     sync.RWMutex
	subs   map[int64]*Subscriber
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[int64]*Subscriber),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Connect registers a new subscriber for userID, superseding any prior one.
// The superseded subscriber's channel is closed immediately so its session
// loop observes end of stream instead of lingering until a failed write.
func (r *Registry) Connect(userID int64) *Subscriber {
	sub := &Subscriber{
		id:     ulid.Make().String(),
		userID: userID,
		events: make(chan Event, subscriberBuffer),
	}

	r.mu.Lock()
	if prev, ok := r.subs[userID]; ok {
		r.closeLocked(prev)
		r.logger.Debug().
			Int64("usuario_id", userID).
			Str("sub", prev.id).
			Msg("subscriber superseded by new connection")
	}
	r.subs[userID] = sub
	total := len(r.subs)
	r.mu.Unlock()

	metrics.LiveConnections.Set(float64(total))
	r.logger.Info().
		Int64("usuario_id", userID).
		Str("sub", sub.id).
		Int("total", total).
		Msg("user connected")
	return sub
}

// Disconnect removes userID's subscriber, whichever it is, and closes its
// channel. Calling it for a user with no subscriber is a no-op.
func (r *Registry) Disconnect(userID int64) {
	r.mu.Lock()
	sub, ok := r.subs[userID]
	if ok {
		delete(r.subs, userID)
		r.closeLocked(sub)
	}
	total := len(r.subs)
	r.mu.Unlock()

	if ok {
		metrics.LiveConnections.Set(float64(total))
		r.logger.Info().
			Int64("usuario_id", userID).
			Str("sub", sub.id).
			Int("total", total).
			Msg("user disconnected")
	}
}

// Release is the session loop's cleanup path. Unlike Disconnect it only
// removes sub if it is still the registered subscriber, so a superseded
// session tearing itself down never evicts its successor. Idempotent.
func (r *Registry) Release(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	if cur, ok := r.subs[sub.userID]; ok && cur == sub {
		delete(r.subs, sub.userID)
	}
	r.closeLocked(sub)
	total := len(r.subs)
	r.mu.Unlock()

	metrics.LiveConnections.Set(float64(total))
}

// Deliver enqueues ev for userID's subscriber. It returns false when the user
// has no live subscriber, which is a normal offline outcome, not an error.
// The enqueue is non-blocking: a stalled consumer costs the sender nothing.
func (r *Registry) Deliver(userID int64, ev Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[userID]
	if !ok || sub.closed {
		return false
	}
	select {
	case sub.events <- ev:
	default:
		metrics.DeliveriesTotal.WithLabelValues("dropped").Inc()
		r.logger.Warn().
			Int64("usuario_id", userID).
			Str("sub", sub.id).
			Msg("subscriber queue full, event dropped")
	}
	return true
}

// IsConnected reports whether userID currently has a live subscriber. The
// answer is advisory: it may be stale by the time the caller acts on it.
func (r *Registry) IsConnected(userID int64) bool {
	r.mu.RLock()
	_, ok := r.subs[userID]
	r.mu.RUnlock()
	return ok
}

// Len returns the number of live subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.subs)
	r.mu.RUnlock()
	return n
}

// Shutdown disconnects every subscriber. Session loops observe their channel
// closing and terminate; in-flight events are abandoned.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	n := len(r.subs)
	for userID, sub := range r.subs {
		r.closeLocked(sub)
		delete(r.subs, userID)
	}
	r.mu.Unlock()

	metrics.LiveConnections.Set(0)
	r.logger.Info().Int("closed", n).Msg("registry shut down, all subscribers closed")
}

// closeLocked closes a subscriber's channel exactly once. Callers must hold
// the write lock.
func (r *Registry) closeLocked(sub *Subscriber) {
	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
}
