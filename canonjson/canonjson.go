// Package canonjson is the mandatory canonicalization choke point for
// structured LCM metadata.
//
// Every anchor record, receipt, and checkpoint is hashed and persisted as
// canonical JSON. Canonical JSON is defined as: object keys sorted
// lexicographically by their UTF-8 bytes, no insignificant whitespace, and
// numbers re-emitted exactly as decoded (no exponent rewriting). Two
// semantically identical values therefore always produce identical bytes,
// regardless of in-memory field or key order.
//
// All LCM hashing, CID derivation, and signing of structured data MUST pass
// through this package.
package canonjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Encode marshals v and returns its canonical JSON bytes.
//
// v may be any value accepted by encoding/json. NaN and infinite floats are
// rejected (by encoding/json), as are cyclic values.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonjson: marshal: %w", err)
	}
	return Canonicalize(data)
}

// Canonicalize re-encodes raw JSON into canonical form.
//
// Numbers are carried through as json.Number so the decoded text is re-emitted
// byte-for-byte, which makes Canonicalize idempotent:
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("canonjson: decode: %w", err)
	}
	// A canonical document is exactly one JSON value.
	if dec.More() {
		return nil, errors.New("canonjson: trailing data after JSON value")
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonjson: string: %w", err)
		}
		buf.Write(b)
	case json.Number:
		buf.WriteString(val.String())
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canonjson: key: %w", err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		// json.Decoder with UseNumber never produces anything else.
		return fmt.Errorf("canonjson: unsupported value of type %T", v)
	}
	return nil
}
