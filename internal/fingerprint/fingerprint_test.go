package fingerprint

import "testing"

func TestCanonicalJSONKeyOrderInsensitive(t *testing.T) {
	a, err := FingerprintJSON([]byte(`{"b":1,"a":2,"c":{"z":1,"y":2}}`))
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}
	b, err := FingerprintJSON([]byte(`{"a":2,"c":{"y":2,"z":1},"b":1}`))
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}
	if a != b {
		t.Fatalf("expected key-order-insensitive fingerprints to match: %s vs %s", a, b)
	}
}

func TestCanonicalJSONPreservesExplicitNull(t *testing.T) {
	withNull, err := FingerprintJSON([]byte(`{"a":null}`))
	if err != nil {
		t.Fatalf("fingerprint withNull: %v", err)
	}
	withoutKey, err := FingerprintJSON([]byte(`{}`))
	if err != nil {
		t.Fatalf("fingerprint withoutKey: %v", err)
	}
	if withNull == withoutKey {
		t.Fatalf("explicit null must fingerprint differently from an absent key")
	}
}

func TestCanonicalJSONLineEndingNormalization(t *testing.T) {
	lf, _ := FingerprintJSON([]byte("{\"s\":\"a\\nb\"}"))
	crlf, _ := FingerprintJSON([]byte("{\"s\":\"a\\nb\"}\r\n"))
	if lf != crlf {
		t.Fatalf("trailing CRLF outside the JSON value should not affect the fingerprint")
	}
}

func TestFingerprintMetadataOrderIndependent(t *testing.T) {
	m1 := map[string]string{"z": "1", "a": "2"}
	m2 := map[string]string{"a": "2", "z": "1"}
	if FingerprintMetadata(m1) != FingerprintMetadata(m2) {
		t.Fatalf("metadata fingerprint should be independent of map iteration order")
	}
}

func TestFingerprintMetadataSensitiveToValue(t *testing.T) {
	m1 := map[string]string{"policy.mode": "Conservative"}
	m2 := map[string]string{"policy.mode": "Aggressive"}
	if FingerprintMetadata(m1) == FingerprintMetadata(m2) {
		t.Fatalf("changing a metadata value must change the fingerprint")
	}
}

func TestHexMultiSeparatesParts(t *testing.T) {
	a := HexMulti([]byte("ab"), []byte("c"))
	b := HexMulti([]byte("a"), []byte("bc"))
	if a == b {
		t.Fatalf("HexMulti must not collide across part boundaries")
	}
}
