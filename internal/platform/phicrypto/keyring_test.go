package phicrypto

import (
	"errors"
	"strings"
	"testing"
)

func TestKeyringRoundTrip(t *testing.T) {
	k, err := NewKeyring(generateTestKey(t), 1)
	if err != nil {
		t.Fatalf("create keyring: %v", err)
	}

	ciphertext, err := k.Encrypt("123-45-6789")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := k.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "123-45-6789" {
		t.Fatalf("round trip mismatch: %q", plaintext)
	}
}

func TestKeyringDecryptsPreviousVersion(t *testing.T) {
	oldKey := generateTestKey(t)
	newKey := generateTestKey(t)

	oldCipher, _ := New(oldKey, 1)
	legacy, err := oldCipher.Encrypt("old data")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	k, err := NewKeyring(newKey, 2)
	if err != nil {
		t.Fatalf("create keyring: %v", err)
	}

	// Before the old key is registered the legacy value is unreadable.
	if _, err := k.Decrypt(legacy); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed for unknown version, got %v", err)
	}

	if err := k.AddPreviousKey(oldKey, 1); err != nil {
		t.Fatalf("add previous key: %v", err)
	}

	plaintext, err := k.Decrypt(legacy)
	if err != nil {
		t.Fatalf("decrypt legacy value: %v", err)
	}
	if plaintext != "old data" {
		t.Fatalf("got %q", plaintext)
	}
}

func TestKeyringNeedsReEncryption(t *testing.T) {
	oldKey := generateTestKey(t)
	newKey := generateTestKey(t)

	oldCipher, _ := New(oldKey, 1)
	legacy, _ := oldCipher.Encrypt("old data")

	k, _ := NewKeyring(newKey, 2)
	_ = k.AddPreviousKey(oldKey, 1)

	if !k.NeedsReEncryption(legacy) {
		t.Fatal("v1 ciphertext should need re-encryption under v2 keyring")
	}

	current, _ := k.Encrypt("new data")
	if k.NeedsReEncryption(current) {
		t.Fatal("current-version ciphertext should not need re-encryption")
	}
	if k.NeedsReEncryption("") {
		t.Fatal("empty value should not need re-encryption")
	}
}

func TestKeyringReEncrypt(t *testing.T) {
	oldKey := generateTestKey(t)
	newKey := generateTestKey(t)

	oldCipher, _ := New(oldKey, 1)
	legacy, _ := oldCipher.Encrypt("123-45-6789")

	k, _ := NewKeyring(newKey, 2)
	_ = k.AddPreviousKey(oldKey, 1)

	rotated, err := k.ReEncrypt(legacy)
	if err != nil {
		t.Fatalf("re-encrypt: %v", err)
	}
	if !strings.HasPrefix(rotated, "v2:") {
		t.Fatalf("re-encrypted value should carry current version, got %q", rotated[:4])
	}

	plaintext, err := k.Decrypt(rotated)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "123-45-6789" {
		t.Fatalf("got %q", plaintext)
	}
}

func TestKeyringCurrentVersion(t *testing.T) {
	k, _ := NewKeyring(generateTestKey(t), 7)
	if v := k.CurrentVersion(); v != 7 {
		t.Fatalf("got version %d, want 7", v)
	}
}
