package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeRecord reads one Record from r. Unknown fields and trailing data
// are rejected so malformed spool files fail loudly instead of silently
// publishing a half-parsed event.
func DecodeRecord(r io.Reader) (Record, error) {
	var rec Record
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode event record: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Record{}, fmt.Errorf("decode event record: trailing data")
		}
		return Record{}, fmt.Errorf("decode event record: %w", err)
	}
	return rec, nil
}

// DecodeRecordBytes is DecodeRecord over an in-memory payload.
func DecodeRecordBytes(b []byte) (Record, error) {
	return DecodeRecord(bytes.NewReader(b))
}
