package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Vault is the reversible authenticated encryption used for the one piece of
// recoverable personal data (the device hostname). Everything else is stored
// as one-way hashes.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives a fixed-size key from the configured server secret.
func NewVault(serverSecret string) (*Vault, error) {
	if serverSecret == "" {
		return nil, fmt.Errorf("vault secret is required")
	}

	key := sha256.Sum256([]byte(serverSecret))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault cipher: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce prefixed to the ciphertext and
// returns the whole blob base64-encoded.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(blob) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := v.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
