// Package fingerprint implements the fingerprinter: stable canonical
// hashing used for cache keys, emission fingerprints, and module-selection
// normalization. Canonicalization rules: sort object keys
// lexicographically, render nulls as explicit, normalize line endings to
// LF, UTF-8 encoding.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Hex returns the SHA-256 digest of data as a lowercase hex string.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HexMulti hashes the concatenation of every part, each separated by a
// 0x1F (unit separator) byte so "ab"+"c" and "a"+"bc" never collide.
func HexMulti(parts ...[]byte) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalJSON re-marshals an arbitrary JSON document with object keys
// sorted lexicographically at every level and line endings normalized to
// LF. It round-trips through encoding/json's generic decode (map[string]any
// / []any / scalars), so explicit JSON nulls survive as Go nils and are
// re-emitted as "null" rather than being dropped.
func CanonicalJSON(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(normalizeLineEndings(data), &v); err != nil {
		return nil, fmt.Errorf("fingerprint: decode JSON: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FingerprintJSON returns the hex SHA-256 of data's canonical JSON form.
func FingerprintJSON(data []byte) (string, error) {
	canon, err := CanonicalJSON(data)
	if err != nil {
		return "", err
	}
	return Hex(canon), nil
}

// FingerprintMetadata canonicalizes a flat string map (sorted by key,
// explicit nulls not applicable since values are strings) and returns its
// hex SHA-256.
func FingerprintMetadata(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(m[k])
		buf.WriteByte('\n')
	}
	return Hex(buf.Bytes())
}

func normalizeLineEndings(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
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
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
