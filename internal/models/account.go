package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivationState tracks the one-way transition a license account makes
// when its code is first redeemed. It never reverts.
type ActivationState string

const (
	StateUnactivated ActivationState = "unactivated"
	StateActivated   ActivationState = "activated"
)

type Account struct {
	ID           uuid.UUID       `json:"id"`
	LicenseCode  string          `json:"license_code"`
	Username     string          `json:"username,omitempty"`
	PasswordHash string          `json:"-"`
	State        ActivationState `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
}

func (a *Account) Activated() bool {
	return a.State == StateActivated
}
