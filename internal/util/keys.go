package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	licenseKeyPrefixLength = 8
	licenseKeySecretLength = 32
	licenseKeyFormat       = "al_%s_%s"
)

func generateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func generateRandomString(length int) (string, error) {
	byteLength := (length*3 + 3) / 4
	b, err := generateRandomBytes(byteLength)
	if err != nil {
		return "", err
	}

	str := base64.URLEncoding.EncodeToString(b)
	str = strings.ReplaceAll(str, "-", "")
	str = strings.ReplaceAll(str, "_", "")
	if len(str) > length {
		return str[:length], nil
	}

	return str, nil
}

// GenerateLicenseKey mints a fresh license key and its storable hash. The
// plaintext key is returned exactly once, at issuance; only the hash is
// persisted.
func GenerateLicenseKey() (fullKey string, keyHash string, err error) {
	prefix, err := generateRandomString(licenseKeyPrefixLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate prefix: %w", err)
	}

	secret, err := generateRandomString(licenseKeySecretLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	fullKey = fmt.Sprintf(licenseKeyFormat, prefix, secret)
	return fullKey, HashSHA256(fullKey), nil
}

// HashSHA256 is the one-way pseudonymizing digest used for license keys,
// device ids, receipts and recipient emails.
func HashSHA256(value string) string {
	hashBytes := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", hashBytes)
}

// MaskValue renders a value as "ab***yz" for display without revealing it.
func MaskValue(value string) string {
	if len(value) <= 4 {
		return "***"
	}
	return value[:2] + "***" + value[len(value)-2:]
}
