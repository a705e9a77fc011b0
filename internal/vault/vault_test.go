package vault

import (
	"encoding/base64"
	"strings"
	"testing"
)

func newTestVault(t *testing.T, fill byte) *Vault {
	t.Helper()

	key := make([]byte, KeySize)
	for i := range key {
		key[i] = fill
	}
	v, err := New(key)
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}
	return v
}

func TestProtectRevealRoundTrip(t *testing.T) {
	v := newTestVault(t, 0x01)

	secret := "hunter2"
	ciphertext, err := v.Protect(secret)
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	if strings.Contains(ciphertext, secret) {
		t.Errorf("ciphertext contains the plaintext secret")
	}

	got, err := v.Reveal(ciphertext)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if got != secret {
		t.Errorf("Reveal = %q, want %q", got, secret)
	}
}

func TestProtectUsesFreshNonce(t *testing.T) {
	v := newTestVault(t, 0x01)

	first, err := v.Protect("same secret")
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	second, err := v.Protect("same secret")
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	if first == second {
		t.Errorf("two Protect calls produced identical ciphertext")
	}
}

func TestRevealTamperedCiphertext(t *testing.T) {
	v := newTestVault(t, 0x01)

	ciphertext, err := v.Protect("secret")
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("decoding ciphertext: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(sealed)

	if _, err := v.Reveal(tampered); !IsCorruptCredential(err) {
		t.Errorf("Reveal of tampered ciphertext = %v, want corrupt credential", err)
	}
}

func TestRevealWrongKey(t *testing.T) {
	v1 := newTestVault(t, 0x01)
	v2 := newTestVault(t, 0x02)

	ciphertext, err := v1.Protect("secret")
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	if _, err := v2.Reveal(ciphertext); !IsCorruptCredential(err) {
		t.Errorf("Reveal under wrong key = %v, want corrupt credential", err)
	}
}

func TestRevealGarbage(t *testing.T) {
	v := newTestVault(t, 0x01)

	for _, input := range []string{"", "not base64 !!!", "YWJj"} {
		if _, err := v.Reveal(input); !IsCorruptCredential(err) {
			t.Errorf("Reveal(%q) = %v, want corrupt credential", input, err)
		}
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Errorf("New with short key succeeded, want error")
	}
}
