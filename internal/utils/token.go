package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewSessionID returns a 256-bit random session key, hex encoded.
func NewSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// NewLicenseCode generates a code in the form XXXX-XXXX-XXXX-XXXX.
func NewLicenseCode() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	key := strings.ToUpper(hex.EncodeToString(bytes))

	return fmt.Sprintf("%s-%s-%s-%s",
		key[0:4],
		key[4:8],
		key[8:12],
		key[12:16],
	), nil
}
