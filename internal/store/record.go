// Package store is the aggregation node's cache: a bounded, LRU-ordered
// map of the most recently reported weather records, backed by a single
// atomically-synced JSON document on disk.
package store

import (
	"bytes"
	"encoding/json"
)

// Record is an opaque weather observation. The only field the aggregation
// node cares about is Id; everything else is carried through untouched.
type Record struct {
	Id     string          `json:"id"`
	Fields json.RawMessage `json:"-"`
}

// MarshalJSON re-emits Fields with "id" folded back in, so that round
// tripping a Record through the store never drops data the producer
// sent. Keys are emitted in sorted order, not in the order received.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Fields) == 0 {
		return json.Marshal(struct {
			Id string `json:"id"`
		}{r.Id})
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(r.Fields, &merged); err != nil {
		return nil, err
	}
	idJSON, err := json.Marshal(r.Id)
	if err != nil {
		return nil, err
	}
	merged["id"] = idJSON
	return json.Marshal(merged)
}

// UnmarshalJSON parses an arbitrary JSON object, requiring a non-empty
// string "id" field and keeping the whole object, with insignificant
// whitespace removed, as opaque Fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idRaw, ok := raw["id"]
	if !ok {
		return errMissingID
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil || id == "" {
		return errMissingID
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	r.Id = id
	r.Fields = json.RawMessage(compact.Bytes())
	return nil
}
