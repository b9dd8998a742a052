package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a bearer token to one (account, fingerprint) pair for a
// bounded window. The ID is the random session key carried in the token's
// jti claim; expiry is fixed at issuance and re-checked on every verify.
type Session struct {
	ID          string    `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Fingerprint string    `json:"fingerprint"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
