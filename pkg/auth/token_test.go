package auth

import (
	"testing"
	"time"

	"github.com/clearledger/subpay/pkg/config"
	"github.com/clearledger/subpay/pkg/types"
)

var testJWT = config.JWTConfig{
	Secret:            "unit-test-secret",
	Issuer:            "subpay",
	ExpirationMinutes: 30,
}

const testAddr = types.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")

func TestMintAndParseRoundTrip(t *testing.T) {
	signed, err := MintCallerToken(testJWT, time.Now(), testAddr)
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}

	claims, err := ParseCallerToken(testJWT, signed)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.Address != testAddr {
		t.Fatalf("expected address %s, got %s", testAddr, claims.Address)
	}
}

func TestMintRejectsInvalidAddress(t *testing.T) {
	if _, err := MintCallerToken(testJWT, time.Now(), types.Address("not-an-address")); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, err := MintCallerToken(testJWT, time.Now().Add(-2*time.Hour), testAddr)
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}
	if _, err := ParseCallerToken(testJWT, signed); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := MintCallerToken(testJWT, time.Now(), testAddr)
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}
	other := testJWT
	other.Secret = "different"
	if _, err := ParseCallerToken(other, signed); err == nil {
		t.Fatal("expected wrong-secret token to fail")
	}
}
