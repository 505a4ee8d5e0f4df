package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGeneratePKCE_VerifierHas256BitsOfEntropy(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(pkce.Verifier)
	if err != nil {
		t.Fatalf("verifier is not valid base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("verifier entropy = %d bytes, want 32", len(raw))
	}
}

func TestGeneratePKCE_NoPadding(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if strings.Contains(pkce.Verifier, "=") {
		t.Errorf("verifier should not contain padding: %q", pkce.Verifier)
	}
	if strings.Contains(pkce.Challenge, "=") {
		t.Errorf("challenge should not contain padding: %q", pkce.Challenge)
	}
}

func TestDeriveChallenge_ReproducibleFromVerifier(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 同一verifierからは常に同一のchallengeが導出される
	if got := DeriveChallenge(pkce.Verifier); got != pkce.Challenge {
		t.Errorf("DeriveChallenge(%q) = %q, want %q", pkce.Verifier, got, pkce.Challenge)
	}

	// 文書化された手順（SHA-256 + base64url）と一致する
	sum := sha256.Sum256([]byte(pkce.Verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if pkce.Challenge != want {
		t.Errorf("challenge = %q, want %q", pkce.Challenge, want)
	}
}

func TestGeneratePKCE_UniquePerCall(t *testing.T) {
	a, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if a.Verifier == b.Verifier {
		t.Error("two generated verifiers should not be identical")
	}
}
