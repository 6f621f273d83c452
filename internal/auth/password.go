package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost = bcrypt.DefaultCost
	// bcrypt ignores input past 72 bytes; longer passwords are rejected at
	// registration instead of being silently truncated.
	maxPasswordBytes = 72
)

// HashPassword returns the bcrypt hash stored with an account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches reports whether password matches the stored hash. A
// mismatch is not an error; a corrupt hash is.
func PasswordMatches(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
