// Package wireclient provides a Go SDK for talking to an aggregation
// node over its raw line protocol.
//
// Big idea:
//
// Instead of hand-assembling "PUT /data HTTP/1.1\nUser-Agent: ..." strings
// and parsing the JSON response everywhere a producer or reader needs to
// talk to a node, we wrap the wire protocol inside a clean Go API.
//
// So instead of:
//
//	conn, _ := net.Dial("tcp", addr)
//	conn.Write([]byte("PUT /data HTTP/1.1\nUser-Agent: ..."))
//
// callers simply do:
//
//	client.Push(ctx, producerId, record)
//	client.Fetch(ctx, stationId)
//
// This hides the socket, the header framing, and the JSON encode/decode,
// and exposes a clean Go interface. It does not implement any retry or
// clustering logic; it talks to exactly one node, the way a thin SDK
// should.
package wireclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client talks to one aggregation node over its TCP socket.
type Client struct {
	addr    string
	timeout time.Duration
	lamport int64 // last Lamport value observed from the server
}

// New creates a new Client. timeout bounds every dial+round-trip; in a
// networked system we never call out without one.
func New(addr string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{addr: addr, timeout: timeout}
}

// Response mirrors the JSON body every request gets back.
type Response struct {
	StatusCode   int             `json:"statusCode"`
	Msg          string          `json:"msg"`
	LamportClock int64           `json:"lamportClock"`
	WeatherData  json.RawMessage `json:"weatherData,omitempty"`
}

// ErrNotFound is returned by Fetch when the station id is unknown.
var ErrNotFound = fmt.Errorf("station not found")

// APIError carries the status code and message the node returned for a
// non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Push sends a PUT carrying record (a JSON object that must contain an
// "id" field) and returns the node's response.
func (c *Client) Push(ctx context.Context, producerId string, record json.RawMessage) (*Response, error) {
	req := fmt.Sprintf("PUT /data HTTP/1.1\nUser-Agent: ATOMClient %s %d\nContent-Type: application/json\n\n%s",
		producerId, c.lamport, record)
	return c.roundTrip(ctx, req)
}

// Fetch sends a GET for stationId and returns the node's response.
// ErrNotFound is returned when the node reports 404.
func (c *Client) Fetch(ctx context.Context, stationId string) (*Response, error) {
	req := fmt.Sprintf("GET /data HTTP/1.1\nUser-Agent: ATOMClient %s %d\n\n", stationId, c.lamport)
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 404 {
		return nil, ErrNotFound
	}
	return resp, nil
}

// roundTrip dials, writes req, reads the response, folds the returned
// Lamport value into the client's own (the classic Lamport "on receive"
// rule applied to a client instead of a node), and decodes the JSON body.
func (c *Client) roundTrip(ctx context.Context, req string) (*Response, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(req)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	raw, err := readResponse(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.LamportClock > c.lamport {
		c.lamport = resp.LamportClock
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &resp, nil
	}
	if resp.StatusCode == 404 {
		return &resp, nil // Fetch turns this into ErrNotFound
	}
	return &resp, &APIError{Status: resp.StatusCode, Message: resp.Msg}
}

// readResponse drains conn until EOF or the deadline trips. The node
// closes the connection after writing, so a plain read loop is enough
// here; any read error just ends the message and is never returned.
func readResponse(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return buf, nil
		}
	}
}
