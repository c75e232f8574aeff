package crypto

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSignVerifyEd25519(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("hello ledgermesh")
	sig, err := Sign(priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(pub, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify(pub, []byte("tampered"), sig) {
		t.Fatal("expected signature over different message to fail")
	}
}

func TestDIDRoundTrip(t *testing.T) {
	pub, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	did, err := DIDFromPublicKey(pub)
	if err != nil {
		t.Fatalf("did from pub: %v", err)
	}
	recovered, err := PublicKeyFromDID(did)
	if err != nil {
		t.Fatalf("pub from did: %v", err)
	}
	if !bytes.Equal(pub, recovered) {
		t.Fatal("recovered public key does not match original")
	}
}

func TestPublicKeyFromDIDInvalid(t *testing.T) {
	if _, err := PublicKeyFromDID("not-a-did"); err == nil {
		t.Fatal("expected error for malformed DID")
	}
	if _, err := PublicKeyFromDID("did:other-method:zzz"); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	a := map[string]interface{}{"b": int64(2), "a": int64(1), "nested": map[string]interface{}{"z": "1", "y": "2"}}
	b := map[string]interface{}{"nested": map[string]interface{}{"y": "2", "z": "1"}, "a": int64(1), "b": int64(2)}
	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if !bytes.Equal(ca, cb) {
		t.Fatalf("expected identical canonical forms, got %s vs %s", ca, cb)
	}
	want := `{"a":1,"b":2,"nested":{"y":"2","z":"1"}}`
	if string(ca) != want {
		t.Fatalf("canonical form = %s, want %s", ca, want)
	}
}

func TestCanonicalizeRejectsFloat(t *testing.T) {
	if _, err := Canonicalize(map[string]interface{}{"x": 1.5}); err == nil {
		t.Fatal("expected floating point value to be rejected")
	}
}

func TestCanonicalizeJSONNumberIntegral(t *testing.T) {
	got, err := Canonicalize(map[string]interface{}{"ts": json.Number("1700000000"), "n": json.Number("-3")})
	if err != nil {
		t.Fatalf("canonicalize json.Number: %v", err)
	}
	want := `{"n":-3,"ts":1700000000}`
	if string(got) != want {
		t.Fatalf("canonical form = %s, want %s", got, want)
	}
}

func TestCanonicalizeRejectsNonIntegralJSONNumber(t *testing.T) {
	if _, err := Canonicalize(map[string]interface{}{"x": json.Number("1.5")}); err == nil {
		t.Fatal("expected non-integral json.Number to be rejected")
	}
	if _, err := Canonicalize(map[string]interface{}{"x": json.Number("1e10")}); err == nil {
		t.Fatal("expected exponential json.Number to be rejected")
	}
}

func TestAES256GCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	pt := []byte("secret key material")
	aad := []byte("envelope-id")
	ct, err := SealAES256GCM(key, pt, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := OpenAES256GCM(key, ct, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(out, pt) {
		t.Fatal("round trip mismatch")
	}
	if _, err := OpenAES256GCM(key, ct, []byte("wrong-aad")); err == nil {
		t.Fatal("expected AAD mismatch to fail")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	secret := []byte("shared-secret-material")
	k1, err := HKDFSHA256(secret, []byte("salt"), []byte("info"), 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	k2, err := HKDFSHA256(secret, []byte("salt"), []byte("info"), 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected HKDF to be deterministic for identical inputs")
	}
}
