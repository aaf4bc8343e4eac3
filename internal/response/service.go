// Package response implements the ResponseService: the aggregation
// node's single worker. It dequeues WorkItems in Lamport order, mutates
// the RecordStore/ProducerRegistry, writes the JSON response, and closes
// the socket.
package response

import (
	"log"
	"net"
	"time"

	"weather-aggregator/internal/lamport"
	"weather-aggregator/internal/protocol"
	"weather-aggregator/internal/queue"
	"weather-aggregator/internal/registry"
	"weather-aggregator/internal/store"
)

// CacheFileState governs whether a successful PUSH reports 201 or 200.
type CacheFileState int

const (
	StateExists CacheFileState = iota
	StateCreated
	StateCreateFailed
)

// IsRunning reports whether the Orchestrator is still running, checked
// once per loop iteration so Stop() is honored promptly.
type IsRunning func() bool

// Service is the single ResponseService worker.
type Service struct {
	store          *store.Store
	registry       *registry.Registry
	queue          *queue.Queue
	clock          *lamport.Clock
	path           string
	maxIdleSeconds int
	idleBackoff    time.Duration
	isRunning      IsRunning

	cacheState CacheFileState
	syncFailed bool
	done       chan struct{}
}

// New builds a ResponseService. cacheState is the state computed by the
// Orchestrator at boot: EXISTS if path already existed,
// CREATED if it had to be created, CREATE_FAILED if creation failed.
func New(
	st *store.Store,
	reg *registry.Registry,
	q *queue.Queue,
	clock *lamport.Clock,
	path string,
	maxIdleSeconds int,
	idleBackoffMs int,
	cacheState CacheFileState,
	isRunning IsRunning,
) *Service {
	return &Service{
		store:          st,
		registry:       reg,
		queue:          q,
		clock:          clock,
		path:           path,
		maxIdleSeconds: maxIdleSeconds,
		idleBackoff:    time.Duration(idleBackoffMs) * time.Millisecond,
		cacheState:     cacheState,
		isRunning:      isRunning,
		done:           make(chan struct{}),
	}
}

// Run is the main worker loop: expire silent producers, flush pending
// writes, then drain the queue. It returns once isRunning reports false.
func (s *Service) Run() {
	defer close(s.done)

	for s.isRunning() {
		for _, exp := range s.registry.Expire(s.maxIdleSeconds) {
			s.store.Remove(exp.RecordId)
		}

		if s.store.HasPendingWrites() {
			if err := s.store.SyncToFile(s.path); err != nil {
				log.Printf("response: background sync failed, will retry: %v", err)
				s.syncFailed = true
			} else {
				s.syncFailed = false
			}
		}

		item := s.queue.Poll()
		if item == nil {
			time.Sleep(s.idleBackoff)
			continue
		}
		s.dispatch(item)
	}
}

// Wait blocks until Run has returned.
func (s *Service) Wait() {
	<-s.done
}

func (s *Service) dispatch(item *queue.WorkItem) {
	switch item.Kind {
	case queue.Push:
		s.handlePush(item)
	case queue.Fetch:
		s.handleFetch(item)
	case queue.Reject:
		s.handleReject(item)
	}
}

func (s *Service) handlePush(item *queue.WorkItem) {
	var rec store.Record
	if err := rec.UnmarshalJSON(item.RecordJSON); err != nil || rec.Id == "" {
		s.respond(item.Conn, 400, "missing or empty id", s.clock.Now(), nil)
		return
	}

	s.registry.Observe(item.ProducerId, rec.Id, item.RemoteLamport)
	s.store.Put(rec.Id, rec)

	status := 200
	msg := "stored"
	switch s.cacheState {
	case StateCreated:
		status = 201
		msg = "stored (cache file created)"
		s.cacheState = StateExists
	case StateCreateFailed:
		status = 500
		msg = "stored, but cache file is unavailable"
	}

	// A failed background sync is advisory only: the in-memory accept
	// already succeeded, so the client still gets its success status.
	if status == 200 && s.syncFailed {
		msg = "stored (File sync failed)"
	}

	s.respond(item.Conn, status, msg, s.clock.Now(), nil)
}

func (s *Service) handleFetch(item *queue.WorkItem) {
	rec, ok := s.store.Get(item.TargetId)
	if !ok {
		s.respond(item.Conn, 404, "unknown id", s.clock.Now(), nil)
		return
	}
	data, err := rec.MarshalJSON()
	if err != nil {
		s.respond(item.Conn, 500, "internal error", s.clock.Now(), nil)
		return
	}
	s.respond(item.Conn, 200, "ok", s.clock.Now(), data)
}

func (s *Service) handleReject(item *queue.WorkItem) {
	s.respond(item.Conn, item.RejectStatus, item.RejectReason, s.clock.Now(), nil)
}

// respond writes the JSON response and closes the socket on every exit
// path.
func (s *Service) respond(conn net.Conn, status int, msg string, lamportValue int64, weatherData []byte) {
	defer conn.Close()

	resp := protocol.Response{
		StatusCode:   status,
		Msg:          msg,
		LamportClock: lamportValue,
		WeatherData:  weatherData,
	}
	data, err := protocol.Encode(resp)
	if err != nil {
		log.Printf("response: failed to encode response: %v", err)
		return
	}
	// A client that disconnected before we got here fails this write
	// benignly; the socket still gets closed above and the worker moves
	// on to the next item.
	_, _ = conn.Write(data)
}
