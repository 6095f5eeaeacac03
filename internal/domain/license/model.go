package license

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// License is a purchasable grant. The plaintext key is never stored; only its
// one-way hash. Mutated only by revocation.
type License struct {
	ID                 uuid.UUID      `db:"id"`
	ProjectID          uuid.UUID      `db:"project_id"`
	KeyHash            string         `db:"key_hash"`
	Plan               string         `db:"plan"`
	MaxActivations     int            `db:"max_activations"` // 0 = unlimited
	DurationDays       int            `db:"duration_days"`
	ExpiresAt          sql.NullTime   `db:"expires_at"`
	Revoked            bool           `db:"revoked"`
	Notes              sql.NullString `db:"notes"`
	BulkCreated        bool           `db:"bulk_created"`
	RecipientEmailHash sql.NullString `db:"recipient_email_hash"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// Expired is a derived read; expiry is never stored as a status transition.
func (l *License) Expired(now time.Time) bool {
	return l.ExpiresAt.Valid && now.After(l.ExpiresAt.Time)
}
