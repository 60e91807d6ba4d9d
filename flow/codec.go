package flow

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire format: a CBOR document that is either null (no flow) or a map with
// two equal-length point arrays. CBOR keeps float32 coordinates bit-exact,
// so any Record round-trips to an equal value.

// Marshal serializes a record. A nil record serializes to CBOR null.
func Marshal(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("flow: encode: %w", err)
	}
	return data, nil
}

// Unmarshal reconstructs a record from its serialized form. CBOR null
// decodes to a nil record.
func Unmarshal(data []byte) (*Record, error) {
	var r *Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("flow: decode: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
