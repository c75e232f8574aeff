// Package crypto provides the cryptographic substrate shared by every layer
// of a ledgermesh node: canonical serialization, hashing, Ed25519 signing,
// DID/address derivation, and the symmetric primitives used for key
// envelopes. Nothing here touches storage or network concerns.
package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Canonicalize renders v (a tree of map[string]any, []any, string, bool, nil,
// *big.Int, int/int64/uint64, or json.Number already reduced to integers)
// into the JCS-like byte form the spec hashes and signs: object keys sorted
// lexicographically at every nesting level, no insignificant whitespace,
// integers without an exponent, UTF-8 strings. json.Number values come from
// decoding a payload with a json.Decoder running UseNumber(), which keeps
// bare JSON integers (timestamps, quantities, …) from being promoted to
// float64 the way plain json.Unmarshal would. It never emits floating
// point — callers must convert decimal strings to *big.Int and decode
// payloads with UseNumber() before handing values in, otherwise
// Canonicalize returns CanonicalizeError.
func Canonicalize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizeError reports a value that cannot be represented in the
// canonical form (e.g. a float, or a map key that is not a string).
type CanonicalizeError struct {
	Reason string
}

func (e *CanonicalizeError) Error() string { return "crypto: canonicalize: " + e.Reason }

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		writeCanonicalString(buf, val)
		return nil
	case *big.Int:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(val.String())
		return nil
	case int:
		buf.WriteString(big.NewInt(int64(val)).String())
		return nil
	case int64:
		buf.WriteString(big.NewInt(val).String())
		return nil
	case uint64:
		buf.WriteString(new(big.Int).SetUint64(val).String())
		return nil
	case float32, float64:
		return &CanonicalizeError{Reason: "floating point values are not permitted in canonical form"}
	case json.Number:
		return writeCanonicalNumber(buf, val)
	case map[string]interface{}:
		return writeCanonicalObject(buf, val)
	case []interface{}:
		return writeCanonicalArray(buf, val)
	default:
		return &CanonicalizeError{Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

// writeCanonicalNumber handles json.Number values produced by a
// json.Decoder running with UseNumber(): a bare JSON integer in a payload
// (e.g. a timestamp or quantity field) decodes this way rather than as a
// float, so it must canonicalize rather than be rejected like float64. The
// literal is rejected if it isn't integral (contains '.', 'e', or 'E');
// otherwise it's parsed into a *big.Int and re-emitted so the canonical
// form never carries a leading '+' or redundant leading zeros.
func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return &CanonicalizeError{Reason: fmt.Sprintf("non-integral numeric literal %q is not permitted in canonical form", s)}
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return &CanonicalizeError{Reason: fmt.Sprintf("malformed numeric literal %q", s)}
	}
	buf.WriteString(i.String())
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
