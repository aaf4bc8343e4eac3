// Package protocol implements the line-oriented, loosely HTTP/1.1-shaped
// wire protocol the aggregation node speaks: parsing request headers
// and bodies off raw bytes, and encoding JSON responses.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Verb is the request's first token.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbPut
	VerbGet
)

// ParsedRequest is the result of parsing raw request bytes, before it is
// turned into a queue.WorkItem by the Orchestrator (which also needs the
// local Lamport clock, not available to this package).
type ParsedRequest struct {
	Verb         Verb
	AgentId      string // User-Agent field[2]: producerId (PUT) or target id (GET)
	Lamport      int64  // User-Agent field[3]
	Body         []byte // PUT only; nil if absent
	Malformed    bool
	MalformedWhy string
}

// Parse decodes raw as a single request:
//
//   - the first 3 bytes select the verb; only PUT and GET are accepted.
//   - the User-Agent line is split on whitespace; field[2] is the id,
//     field[3] is the Lamport integer; fewer than 4 fields is invalid.
//   - the JSON body (PUT only) begins at the first line whose first
//     character is '{' and continues to end of message.
func Parse(raw []byte) ParsedRequest {
	verb, verbOK := parseVerb(raw)
	if !verbOK {
		return ParsedRequest{Malformed: true, MalformedWhy: "unknown verb"}
	}

	agentId, lamport, ok := parseUserAgent(raw)
	if !ok {
		return ParsedRequest{Malformed: true, MalformedWhy: "malformed or missing User-Agent header"}
	}

	req := ParsedRequest{Verb: verb, AgentId: agentId, Lamport: lamport}
	if verb == VerbPut {
		req.Body = parseBody(raw)
	}
	return req
}

func parseVerb(raw []byte) (Verb, bool) {
	if len(raw) < 3 {
		return VerbUnknown, false
	}
	switch string(raw[:3]) {
	case "PUT":
		return VerbPut, true
	case "GET":
		return VerbGet, true
	default:
		return VerbUnknown, false
	}
}

func parseUserAgent(raw []byte) (agentId string, lamport int64, ok bool) {
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "User-Agent:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return "", 0, false
		}
		id := fields[2]
		n, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return "", 0, false
		}
		return id, n, true
	}
	return "", 0, false
}

// parseBody concatenates every line from the first '{'-prefixed line to
// the end of the message and returns it, or nil if no such line exists
// (a PUT with no body is answered with 204, not parsed here).
func parseBody(raw []byte) []byte {
	idx := bytes.Index(raw, []byte("\n{"))
	if idx < 0 {
		return nil
	}
	body := bytes.TrimSpace(raw[idx+1:])
	if len(body) == 0 {
		return nil
	}
	return body
}

// Response is the JSON shape returned for every request.
type Response struct {
	StatusCode   int             `json:"statusCode"`
	Msg          string          `json:"msg"`
	LamportClock int64           `json:"lamportClock"`
	WeatherData  json.RawMessage `json:"weatherData,omitempty"`
}

// Encode serializes resp as the wire response body.
func Encode(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}
