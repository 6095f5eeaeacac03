package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const privateKeyPEMType = "PRIVATE KEY"

// KeyPair is the process-wide receipt-signing keypair. It is loaded (or
// generated) once at startup and shared read-only afterwards.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 keypair: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

func Load(path string) (*KeyPair, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != privateKeyPEMType {
		return nil, fmt.Errorf("no %s PEM block in %s", privateKeyPEMType, path)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key in %s is not an ed25519 key", path)
	}

	return &KeyPair{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// LoadOrGenerate reads the keypair from path, generating and persisting a
// fresh one when the file does not exist. Receipts signed by a previous
// keypair will fail signature checks after a regeneration and are handled by
// the legacy verification path.
func LoadOrGenerate(path string) (*KeyPair, bool, error) {
	keys, err := Load(path)
	if err == nil {
		return keys, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	keys, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := keys.Save(path); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

func (k *KeyPair) Save(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(k.Private)
	if err != nil {
		return fmt.Errorf("failed to marshal signing key: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: der})

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return fmt.Errorf("failed to write signing key: %w", err)
	}
	return nil
}

// PublicPEM renders the verification key for distribution to client SDKs.
func (k *KeyPair) PublicPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
