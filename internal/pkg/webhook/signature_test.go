package webhook

import (
	"testing"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"charge.succeeded"}`)
	secret := "whsec_test"

	sig := SignPayload(payload, secret)
	if !VerifySignature(payload, sig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if VerifySignature(payload, sig, "other-secret") {
		t.Fatalf("expected signature with wrong secret to fail")
	}
	if VerifySignature([]byte(`{"type":"tampered"}`), sig, secret) {
		t.Fatalf("expected signature over tampered payload to fail")
	}
	if VerifySignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifySignature(payload, "zzzz", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
	if VerifySignature(payload, sig, "") {
		t.Fatalf("expected empty secret to fail")
	}
}
