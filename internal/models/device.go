package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is one hardware binding under an account. The fingerprint is an
// opaque client-supplied string; the same fingerprint may appear under
// different accounts without conflict.
type Device struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Fingerprint string    `json:"fingerprint"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
