package push

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
)

// connectionSet is the ordered list of outboxes for one user. Its lock is the only lock taken by
// registry operations on that user.
type connectionSet struct {
	mu       sync.Mutex
	outboxes []*Outbox
}

// Registry maps a user ID to the outboxes of that user's live connections. Operations on different
// users never contend. An entry is created on first Register and is kept after it becomes empty.
type Registry struct {
	sets    sync.Map // uuid.UUID -> *connectionSet
	metrics *metrics.PushMetrics
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *metrics.PushMetrics) *Registry {
	return &Registry{metrics: m}
}

func (r *Registry) setFor(userID uuid.UUID) *connectionSet {
	if v, ok := r.sets.Load(userID); ok {
		return v.(*connectionSet)
	}
	v, _ := r.sets.LoadOrStore(userID, &connectionSet{})
	return v.(*connectionSet)
}

// Register appends outbox to the user's set.
func (r *Registry) Register(userID uuid.UUID, outbox *Outbox) {
	set := r.setFor(userID)
	set.mu.Lock()
	set.outboxes = append(set.outboxes, outbox)
	set.mu.Unlock()
}

// Unregister removes outbox from the user's set by identity. Unknown users and outboxes that are not
// registered are ignored.
func (r *Registry) Unregister(userID uuid.UUID, outbox *Outbox) {
	v, ok := r.sets.Load(userID)
	if !ok {
		return
	}
	set := v.(*connectionSet)

	set.mu.Lock()
	defer set.mu.Unlock()
	if i := slices.Index(set.outboxes, outbox); i >= 0 {
		set.outboxes = slices.Delete(set.outboxes, i, i+1)
	}
}

// Broadcast enqueues payload on every outbox of userID, in registration order, and returns how many
// accepted it. Outboxes that reject the payload are removed. Broadcasting to a user with no
// connections does nothing.
func (r *Registry) Broadcast(userID uuid.UUID, payload []byte) int {
	v, ok := r.sets.Load(userID)
	if !ok {
		return 0
	}
	set := v.(*connectionSet)

	set.mu.Lock()
	defer set.mu.Unlock()

	delivered, dropped := 0, 0
	set.outboxes = slices.DeleteFunc(set.outboxes, func(o *Outbox) bool {
		if o.Enqueue(payload) {
			delivered++
			return false
		}
		dropped++
		return true
	})

	if r.metrics != nil {
		r.metrics.FramesDelivered.Add(float64(delivered))
		r.metrics.SendersDropped.Add(float64(dropped))
	}
	return delivered
}

// Count returns the number of registered outboxes for userID.
func (r *Registry) Count(userID uuid.UUID) int {
	v, ok := r.sets.Load(userID)
	if !ok {
		return 0
	}
	set := v.(*connectionSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.outboxes)
}

// Users returns the number of user entries, including entries whose set is empty.
func (r *Registry) Users() int {
	n := 0
	r.sets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
