// Package queue implements the RequestQueue: a single-producer,
// single-consumer priority queue of WorkItems ordered by Lamport value
// ascending, FIFO on ties.
package queue

import "net"

// Kind tags which variant a WorkItem carries. The worker dispatches on
// this tag.
type Kind int

const (
	Push Kind = iota
	Fetch
	Reject
)

// WorkItem is the unit of work ConnectionService enqueues and
// ResponseService consumes exactly once.
type WorkItem struct {
	Kind Kind

	// Push fields. RecordJSON is the raw body as received; the worker
	// decodes and validates it at dispatch time.
	ProducerId string
	RecordJSON []byte

	// Fetch fields.
	TargetId string

	// Reject fields.
	RejectReason string
	RejectStatus int

	// Common fields.
	RemoteLamport int64 // Lamport value carried in the request header
	LocalLamport  int64 // local clock value at accept time; responses carry the live clock instead
	Conn          net.Conn

	seq int64 // arrival order, used to break Lamport ties FIFO
}
