// Package codec provides an optional CBOR structured-payload helper for
// callers that want to hand the engine a structured value instead of a
// raw byte payload. The protocol engine itself is payload-shape-agnostic
// and never calls into this package; callers use it to build the bytes
// passed to protocol.Engine.WriteAll and to parse the bytes delivered to
// an OnRead callback.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeStructured marshals fields to CBOR for use as a single engine
// payload.
func EncodeStructured(fields map[string]interface{}) ([]byte, error) {
	data, err := cbor.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return data, nil
}

// DecodeStructured unmarshals a payload previously built with
// EncodeStructured.
func DecodeStructured(payload []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := cbor.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return fields, nil
}
