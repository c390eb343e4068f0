//go:build gofuzz

package fudge

import "reflect"

// Fuzz is the gofuzz entry point for the binary wire codec: decode data as
// one envelope, re-encode the resulting tree, decode again, and panic if
// the two trees disagree. Malformed input is not a failure — it returns 0
// so the fuzzer doesn't waste corpus weight on inputs that never reach the
// roundtrip check.
func Fuzz(data []byte) int {
	m1, err := DecodeBinary(data, nil)
	if err != nil {
		return 0
	}

	out, err := EncodeBinary(m1, nil)
	if err != nil {
		panic("fudge: unable to re-encode decoded message: " + err.Error())
	}

	m2, err := DecodeBinary(out, nil)
	if err != nil {
		panic("fudge: re-encoded message failed to decode: " + err.Error())
	}

	if !reflect.DeepEqual(m1, m2) {
		panic("fudge: binary roundtrip changed message contents")
	}
	return 1
}

// FuzzJSON is the gofuzz entry point for the JSON event encoding:
// interprets data as a JSON document, decodes it to a Message, re-encodes
// to JSON, decodes again, and panics on disagreement.
func FuzzJSON(data []byte) int {
	opts := DefaultJSONOptions()
	m1, err := DecodeJSON(data, opts, nil)
	if err != nil {
		return 0
	}

	out, err := EncodeJSON(m1, opts)
	if err != nil {
		panic("fudge: unable to re-encode decoded message as JSON: " + err.Error())
	}

	m2, err := DecodeJSON(out, opts, nil)
	if err != nil {
		panic("fudge: re-encoded JSON failed to decode: " + err.Error())
	}

	if !reflect.DeepEqual(m1, m2) {
		panic("fudge: JSON roundtrip changed message contents")
	}
	return 1
}
