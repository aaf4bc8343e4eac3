// Package orchestrator wires LamportClock, Store, Registry, Queue,
// ConnectionService and ResponseService together and owns the node's
// lifecycle.
package orchestrator

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"weather-aggregator/internal/connection"
	"weather-aggregator/internal/lamport"
	"weather-aggregator/internal/queue"
	"weather-aggregator/internal/registry"
	"weather-aggregator/internal/response"
	"weather-aggregator/internal/store"
)

// Config holds everything the Orchestrator needs to start a node.
type Config struct {
	Port            string // e.g. "4567"
	Path            string // cache document path
	MaxIdleSeconds  int
	SelectTimeoutMs int
	IdleBackoffMs   int
}

// DefaultConfig returns the node's stock settings.
func DefaultConfig() Config {
	return Config{
		Port:            "4567",
		Path:            "cache.json",
		MaxIdleSeconds:  30,
		SelectTimeoutMs: 1000,
		IdleBackoffMs:   1,
	}
}

// Orchestrator owns the clock, store, registry, queue, and the two
// services built on top of them. There is no process-global mutable
// state; everything lives inside one instance, so multiple Orchestrators
// can run in the same process (useful for tests).
type Orchestrator struct {
	cfg Config

	clock    *lamport.Clock
	store    *store.Store
	registry *registry.Registry
	queue    *queue.Queue

	listener net.Listener
	conn     *connection.Service
	resp     *response.Service

	running atomic.Bool
	wg      sync.WaitGroup
}

// New constructs an Orchestrator. It does not bind a socket or start any
// goroutines yet; call Start for that.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		clock:    lamport.New(),
		store:    store.New(),
		registry: registry.New(),
		queue:    queue.New(),
	}
}

// Start loads any existing cache document, determines the cache-file
// state, binds the listening socket, and spawns ConnectionService and
// ResponseService. It gives both services roughly a second to come up,
// logs ready, and returns.
func (o *Orchestrator) Start() error {
	o.store.LoadFromFile(o.cfg.Path)

	cacheState := o.initCacheFile()

	ln, err := net.Listen("tcp", ":"+o.cfg.Port)
	if err != nil {
		return fmt.Errorf("bind listener on port %s: %w", o.cfg.Port, err)
	}
	o.listener = ln

	o.running.Store(true)

	o.conn = connection.New(o, ln, o.cfg.SelectTimeoutMs)
	o.resp = response.New(
		o.store, o.registry, o.queue, o.clock,
		o.cfg.Path, o.cfg.MaxIdleSeconds, o.cfg.IdleBackoffMs,
		cacheState, o.IsRunning,
	)

	o.wg.Add(2)
	go func() { defer o.wg.Done(); o.conn.Run() }()
	go func() { defer o.wg.Done(); o.resp.Run() }()

	time.Sleep(time.Second)
	log.Printf("aggregation node ready on port %s (cache=%s)", o.cfg.Port, o.cfg.Path)
	return nil
}

// initCacheFile resolves the boot-time cache-file state: EXISTS
// if the path already existed at boot, CREATED if it had to be created,
// CREATE_FAILED if creation failed (all further PUSHes then respond 500
// until a later reinitialization succeeds).
func (o *Orchestrator) initCacheFile() response.CacheFileState {
	if _, err := os.Stat(o.cfg.Path); err == nil {
		return response.StateExists
	} else if !os.IsNotExist(err) {
		log.Printf("orchestrator: cannot stat cache file %s: %v", o.cfg.Path, err)
		return response.StateCreateFailed
	}

	f, err := os.Create(o.cfg.Path)
	if err != nil {
		log.Printf("orchestrator: cannot create cache file %s: %v", o.cfg.Path, err)
		return response.StateCreateFailed
	}
	_ = f.Close()
	return response.StateCreated
}

// Stop clears the running flag, closes the listener, waits for both
// services to finish their current tick, and performs a final sync.
func (o *Orchestrator) Stop() {
	o.running.Store(false)
	if o.listener != nil {
		_ = o.listener.Close()
	}
	o.wg.Wait()

	if err := o.store.SyncToFile(o.cfg.Path); err != nil {
		log.Printf("orchestrator: final sync failed: %v", err)
	}
	log.Printf("aggregation node stopped")
}

// IsRunning reports whether the node is still accepting and processing
// requests. Implements connection.Core and response.IsRunning.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// EnqueuePush performs the clock merge+tick a received request counts
// for and enqueues a PUSH WorkItem.
func (o *Orchestrator) EnqueuePush(producerId string, body []byte, remoteLamport int64, conn net.Conn) {
	local := o.receive(remoteLamport)
	o.queue.Enqueue(&queue.WorkItem{
		Kind:          queue.Push,
		ProducerId:    producerId,
		RecordJSON:    body,
		RemoteLamport: remoteLamport,
		LocalLamport:  local,
		Conn:          conn,
	})
}

// EnqueueFetch enqueues a FETCH WorkItem for targetId.
func (o *Orchestrator) EnqueueFetch(targetId string, remoteLamport int64, conn net.Conn) {
	local := o.receive(remoteLamport)
	o.queue.Enqueue(&queue.WorkItem{
		Kind:          queue.Fetch,
		TargetId:      targetId,
		RemoteLamport: remoteLamport,
		LocalLamport:  local,
		Conn:          conn,
	})
}

// EnqueueReject enqueues a REJECT WorkItem carrying the status/reason
// the front end determined: 400 for malformed headers or an unknown
// verb, 204 for a bodyless PUT.
func (o *Orchestrator) EnqueueReject(reason string, status int, remoteLamport int64, conn net.Conn) {
	local := o.receive(remoteLamport)
	o.queue.Enqueue(&queue.WorkItem{
		Kind:          queue.Reject,
		RejectReason:  reason,
		RejectStatus:  status,
		RemoteLamport: remoteLamport,
		LocalLamport:  local,
		Conn:          conn,
	})
}

// receive folds a remote Lamport value into the clock and ticks it once,
// the classic Lamport "receive event" rule, and returns the resulting
// local value.
func (o *Orchestrator) receive(remoteLamport int64) int64 {
	o.clock.Merge(remoteLamport)
	return o.clock.Tick()
}

// Clock exposes the Lamport clock for tests and diagnostics.
func (o *Orchestrator) Clock() *lamport.Clock { return o.clock }

// Store exposes the RecordStore for tests and diagnostics.
func (o *Orchestrator) Store() *store.Store { return o.store }

// Registry exposes the ProducerRegistry for tests and diagnostics.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }
