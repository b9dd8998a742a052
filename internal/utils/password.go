package utils

import (
	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

// dummyHash is a valid bcrypt credential for a throwaway password. The
// registry verifies against it when the username is unknown so lookups
// that miss cost the same as lookups that hit.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("licenseguard-dummy"), BcryptCost)

func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func CheckPassword(hashedPassword string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// CheckPasswordDummy burns a bcrypt comparison and always fails.
func CheckPasswordDummy(password string) bool {
	bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
