package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const receiptVersionTag = "v1"

// ReceiptPayload is the snapshot of license/activation facts embedded in a
// signed receipt. Field order and names are part of the wire contract with
// the client SDKs.
type ReceiptPayload struct {
	Version         int             `json:"version"`
	LicenseID       string          `json:"license_id"`
	ProjectID       string          `json:"project_id"`
	ActivationID    string          `json:"activation_id"`
	DeviceIDHash    string          `json:"device_id_hash"`
	Plan            string          `json:"plan"`
	MaxActivations  int             `json:"max_activations"`
	IssuedAt        string          `json:"issued_at"`
	ExpiresAt       *string         `json:"expires_at"`
	GracePeriodDays int             `json:"grace_period_days"`
	Modules         []ReceiptModule `json:"modules"`
}

type ReceiptModule struct {
	Key    string                 `json:"key"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ExpiryTime parses the embedded expires_at. ok is false when the payload
// promises no expiry.
func (p *ReceiptPayload) ExpiryTime() (time.Time, bool, error) {
	if p.ExpiresAt == nil || *p.ExpiresAt == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, *p.ExpiresAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid expires_at in receipt: %w", err)
	}
	return t, true, nil
}

func FormatExpiry(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

type ReceiptVerification struct {
	Valid   bool
	Payload *ReceiptPayload
}

// ReceiptCodec signs and verifies the portable receipt token:
// v1.<base64url(json payload)>.<base64url(signature)>. The signature covers
// the UTF-8 bytes of the base64url payload segment itself.
type ReceiptCodec struct {
	keys *KeyPair
}

func NewReceiptCodec(keys *KeyPair) *ReceiptCodec {
	return &ReceiptCodec{keys: keys}
}

func (c *ReceiptCodec) Sign(payload *ReceiptPayload) (string, error) {
	payload.Version = 1

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	payloadSegment := base64.RawURLEncoding.EncodeToString(jsonBytes)
	signature := ed25519.Sign(c.keys.Private, []byte(payloadSegment))
	signatureSegment := base64.RawURLEncoding.EncodeToString(signature)

	return receiptVersionTag + "." + payloadSegment + "." + signatureSegment, nil
}

// Decode parses the payload segment without checking the signature. Callers
// use it for the verify fallback path, where even an unsigned or foreign-key
// receipt may still carry a resolvable activation id.
func (c *ReceiptCodec) Decode(token string) (*ReceiptPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != receiptVersionTag {
		return nil, fmt.Errorf("invalid receipt format")
	}

	jsonBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid receipt payload encoding: %w", err)
	}

	var payload ReceiptPayload
	if err := json.Unmarshal(jsonBytes, &payload); err != nil {
		return nil, fmt.Errorf("invalid receipt payload: %w", err)
	}
	return &payload, nil
}

// Verify checks the signature against the process public key and only then
// parses the payload. Any failure yields {Valid:false} with no payload; the
// caller treats such a token as a legacy/unsigned receipt, never as an error.
func (c *ReceiptCodec) Verify(token string) ReceiptVerification {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != receiptVersionTag {
		return ReceiptVerification{Valid: false}
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ReceiptVerification{Valid: false}
	}

	if !ed25519.Verify(c.keys.Public, []byte(parts[1]), signature) {
		return ReceiptVerification{Valid: false}
	}

	payload, err := c.Decode(token)
	if err != nil {
		return ReceiptVerification{Valid: false}
	}
	return ReceiptVerification{Valid: true, Payload: payload}
}
