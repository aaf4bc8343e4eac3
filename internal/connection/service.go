// Package connection implements the aggregation node's front end: it
// accepts TCP connections, reads each request, parses it off the wire,
// and hands off exactly one queue.WorkItem per connection to the
// Orchestrator.
//
// One goroutine owns Accept(), with an accept deadline so it notices
// shutdown within one selectTimeoutMs tick. Each accepted connection is
// handed to its own short-lived goroutine that reads with a read
// deadline of the same selectTimeoutMs, so no single peer can stall the
// front end for longer than one tick.
package connection

import (
	"bytes"
	"io"
	"log"
	"net"
	"time"

	"weather-aggregator/internal/protocol"
)

// Core is the narrow slice of the Orchestrator this service depends on.
// Holding an interface instead of the Orchestrator itself keeps the
// reference one-directional.
type Core interface {
	EnqueuePush(producerId string, body []byte, remoteLamport int64, conn net.Conn)
	EnqueueFetch(targetId string, remoteLamport int64, conn net.Conn)
	EnqueueReject(reason string, status int, remoteLamport int64, conn net.Conn)
	IsRunning() bool
}

// Service is the non-blocking connection front-end.
type Service struct {
	core          Core
	listener      net.Listener
	selectTimeout time.Duration
	done          chan struct{}
}

// New wraps an already-bound listener. The Orchestrator owns binding the
// socket so a bind failure is returned from its Start.
func New(core Core, listener net.Listener, selectTimeoutMs int) *Service {
	return &Service{
		core:          core,
		listener:      listener,
		selectTimeout: time.Duration(selectTimeoutMs) * time.Millisecond,
		done:          make(chan struct{}),
	}
}

// Run accepts connections until the Orchestrator stops running. It
// returns when the listener is closed or a fatal accept error occurs.
func (s *Service) Run() {
	defer close(s.done)

	for s.core.IsRunning() {
		if tc, ok := s.listener.(interface{ SetDeadline(time.Time) error }); ok {
			_ = tc.SetDeadline(time.Now().Add(s.selectTimeout))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // selector wait tick elapsed; re-check running
			}
			if !s.core.IsRunning() {
				return // listener closed during shutdown
			}
			log.Printf("connection: fatal accept error: %v", err)
			return
		}

		go s.handle(conn)
	}
}

// Wait blocks until Run has returned.
func (s *Service) Wait() {
	<-s.done
}

// handle owns conn until it has produced exactly one WorkItem (or failed
// trying to). Any error here cancels and closes only this peer; it never
// brings down the front end.
func (s *Service) handle(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.selectTimeout))

	raw, err := drain(conn)
	if err != nil {
		_ = conn.Close()
		return
	}

	parsed := protocol.Parse(raw)
	if parsed.Malformed {
		s.core.EnqueueReject(parsed.MalformedWhy, 400, 0, conn)
		return
	}

	switch parsed.Verb {
	case protocol.VerbPut:
		if len(parsed.Body) == 0 {
			s.core.EnqueueReject("PUT with no body", 204, parsed.Lamport, conn)
			return
		}
		s.core.EnqueuePush(parsed.AgentId, parsed.Body, parsed.Lamport, conn)
	case protocol.VerbGet:
		s.core.EnqueueFetch(parsed.AgentId, parsed.Lamport, conn)
	default:
		s.core.EnqueueReject("unknown verb", 400, parsed.Lamport, conn)
	}
}

// drain reads conn until it returns EOF, a timeout, or would block.
func drain(conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				return buf.Bytes(), nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// A short-lived stateless client has usually already
				// written its whole request and half-closed; treat a
				// read timeout with data in hand as end of message.
				if buf.Len() > 0 {
					return buf.Bytes(), nil
				}
			}
			return nil, err
		}
	}
}
