package phicrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrDecryptionFailed is returned when a ciphertext cannot be opened: it is
// corrupted, truncated, or was produced under a different key. Callers can
// distinguish this from an absent value, which is an empty string.
var ErrDecryptionFailed = errors.New("phicrypto: decryption failed")

const (
	keyVersionPrefix    = "v"
	keyVersionSeparator = ":"
)

// FieldCipher provides AES-256-GCM encryption and decryption for individual
// sensitive attributes (SSN, clinical note text, ...). Every ciphertext
// carries a key-version tag so that stored values survive key rotation.
//
// Encryption is non-deterministic: a fresh random nonce is drawn per call, so
// equal plaintexts never produce equal ciphertexts.
type FieldCipher struct {
	aead    cipher.AEAD
	version int
}

// New creates a FieldCipher from a 32-byte AES-256 key. The version number is
// embedded in every ciphertext this cipher produces.
func New(key []byte, version int) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phicrypto: key must be 32 bytes, got %d", len(key))
	}
	if version < 1 {
		return nil, fmt.Errorf("phicrypto: key version must be >= 1, got %d", version)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phicrypto: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phicrypto: create GCM: %w", err)
	}

	return &FieldCipher{aead: aead, version: version}, nil
}

// Version returns the key version embedded in ciphertexts.
func (c *FieldCipher) Version() int {
	return c.version
}

// Encrypt encrypts a plaintext string and returns "v<version>:" followed by
// the base64-encoded nonce+ciphertext. Empty input returns empty output:
// "no value" is never encrypted into a ciphertext.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	sealed, err := c.seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return keyVersionPrefix + strconv.Itoa(c.version) + keyVersionSeparator + encoded, nil
}

// Decrypt reverses Encrypt. Empty input returns empty output. Any failure to
// open the ciphertext wraps ErrDecryptionFailed; the plaintext is never
// partially returned.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	_, encoded, err := SplitVersion(ciphertext)
	if err != nil {
		// Untagged ciphertext (legacy data): treat the whole string as payload.
		encoded = ciphertext
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := c.open(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// seal returns nonce prepended to the GCM ciphertext.
func (c *FieldCipher) seal(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("phicrypto: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

// open extracts the nonce from the front of data and decrypts the remainder.
func (c *FieldCipher) open(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Rotate re-encrypts a ciphertext produced under oldKey so that only newKey
// can open it. It is a pure decrypt-then-re-encrypt: on success the returned
// ciphertext carries newVersion and the old key can no longer open it.
func Rotate(ciphertext string, oldKey, newKey []byte, oldVersion, newVersion int) (string, error) {
	oldCipher, err := New(oldKey, oldVersion)
	if err != nil {
		return "", fmt.Errorf("phicrypto: rotate: old key: %w", err)
	}
	newCipher, err := New(newKey, newVersion)
	if err != nil {
		return "", fmt.Errorf("phicrypto: rotate: new key: %w", err)
	}

	plaintext, err := oldCipher.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("phicrypto: rotate: %w", err)
	}
	return newCipher.Encrypt(plaintext)
}

// SplitVersion parses a "v<version>:<payload>" ciphertext. It returns an
// error for untagged values so callers can fall back to legacy handling.
func SplitVersion(s string) (int, string, error) {
	if !strings.HasPrefix(s, keyVersionPrefix) {
		return 0, "", fmt.Errorf("phicrypto: no version prefix")
	}

	idx := strings.Index(s, keyVersionSeparator)
	if idx < 0 {
		return 0, "", fmt.Errorf("phicrypto: no version separator")
	}

	version, err := strconv.Atoi(s[len(keyVersionPrefix):idx])
	if err != nil {
		return 0, "", fmt.Errorf("phicrypto: invalid version: %w", err)
	}

	return version, s[idx+1:], nil
}
