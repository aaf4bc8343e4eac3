// Package registry tracks the last-seen wall-clock time of every producer
// currently considered alive, and drives expiry of producers that have
// gone silent.
package registry

import (
	"sync"
	"time"
)

// Tracker is the per-producer bookkeeping kept by the Registry.
type Tracker struct {
	ProducerId   string
	LastSeen     time.Time
	LastLamport  int64
	LastRecordId string
}

// Registry is the set of currently-alive producer trackers. Safe for
// concurrent use; in practice it is only ever touched by the single
// ResponseService worker.
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	now      func() time.Time // overridable for tests
}

// New creates an empty Registry.
func New() *Registry {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Registry using now as its wall-clock source,
// letting tests control the passage of time deterministically.
func NewWithClock(now func() time.Time) *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
		now:      now,
	}
}

// Observe creates a tracker for producerId if absent, or updates it in
// place, always refreshing LastSeen to the current wall-clock time.
func (r *Registry) Observe(producerId, recordId string, lamport int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[producerId]
	if !ok {
		t = &Tracker{ProducerId: producerId}
		r.trackers[producerId] = t
	}
	t.LastSeen = r.now()
	t.LastLamport = lamport
	t.LastRecordId = recordId
}

// Expire returns and removes every tracker whose idle time exceeds
// maxIdleSeconds, along with the id of the record each one last
// reported.
func (r *Registry) Expire(maxIdleSeconds int) []ExpiredProducer {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := time.Duration(maxIdleSeconds) * time.Second
	now := r.now()

	var expired []ExpiredProducer
	for id, t := range r.trackers {
		if now.Sub(t.LastSeen) > threshold {
			expired = append(expired, ExpiredProducer{
				ProducerId: id,
				RecordId:   t.LastRecordId,
			})
			delete(r.trackers, id)
		}
	}
	return expired
}

// ExpiredProducer names a producer that was just removed by Expire and
// the id of the record it last reported, which the caller must also
// remove from the RecordStore.
type ExpiredProducer struct {
	ProducerId string
	RecordId   string
}

// Len returns the number of currently tracked producers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
