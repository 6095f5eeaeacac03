package activation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Activation binds a license to one device. The device id and the last issued
// receipt exist here only as one-way hashes; the hostname, when the client
// sends one, is the single reversible (encrypted) field.
type Activation struct {
	ID                 uuid.UUID      `db:"id"`
	LicenseID          uuid.UUID      `db:"license_id"`
	DeviceIDHash       string         `db:"device_id_hash"`
	ReceiptHash        string         `db:"receipt_hash"`
	Revoked            bool           `db:"revoked"`
	ModulesRestricted  bool           `db:"modules_restricted"`
	HostnameCiphertext sql.NullString `db:"hostname_ciphertext"`
	CreatedAt          time.Time      `db:"created_at"`
	LastSeenAt         sql.NullTime   `db:"last_seen_at"`
	RevokedAt          sql.NullTime   `db:"revoked_at"`
}
