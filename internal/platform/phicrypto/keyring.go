package phicrypto

import (
	"fmt"
	"sync"
)

// Keyring wraps a current FieldCipher plus read-only previous keys so that
// ciphertexts written before a rotation stay readable while new writes always
// use the current key.
type Keyring struct {
	mu       sync.RWMutex
	current  *FieldCipher
	previous map[int]*FieldCipher
}

// NewKeyring creates a Keyring encrypting under the given current key.
func NewKeyring(currentKey []byte, currentVersion int) (*Keyring, error) {
	c, err := New(currentKey, currentVersion)
	if err != nil {
		return nil, fmt.Errorf("phicrypto: keyring: current key: %w", err)
	}
	return &Keyring{
		current:  c,
		previous: make(map[int]*FieldCipher),
	}, nil
}

// AddPreviousKey registers a retired key for decryption only.
func (k *Keyring) AddPreviousKey(key []byte, version int) error {
	c, err := New(key, version)
	if err != nil {
		return fmt.Errorf("phicrypto: keyring: previous key v%d: %w", version, err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.previous[version] = c
	return nil
}

// Encrypt encrypts with the current key.
func (k *Keyring) Encrypt(plaintext string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current.Encrypt(plaintext)
}

// Decrypt picks the key matching the ciphertext's version tag. A version with
// no registered key wraps ErrDecryptionFailed.
func (k *Keyring) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	version, _, err := SplitVersion(ciphertext)
	if err != nil {
		// Untagged legacy data: only the current key can try.
		return k.current.Decrypt(ciphertext)
	}

	if version == k.current.Version() {
		return k.current.Decrypt(ciphertext)
	}

	c, ok := k.previous[version]
	if !ok {
		return "", fmt.Errorf("%w: no key for version %d", ErrDecryptionFailed, version)
	}
	return c.Decrypt(ciphertext)
}

// NeedsReEncryption reports whether a ciphertext was written under a retired
// key version.
func (k *Keyring) NeedsReEncryption(ciphertext string) bool {
	if ciphertext == "" {
		return false
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	version, _, err := SplitVersion(ciphertext)
	if err != nil {
		return true
	}
	return version != k.current.Version()
}

// ReEncrypt decrypts with whichever key matches and re-encrypts with the
// current key.
func (k *Keyring) ReEncrypt(ciphertext string) (string, error) {
	plaintext, err := k.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("phicrypto: re-encrypt: %w", err)
	}
	return k.Encrypt(plaintext)
}

// CurrentVersion returns the version new ciphertexts are written under.
func (k *Keyring) CurrentVersion() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current.Version()
}
