package service

import (
	"github.com/DukeRupert/folio/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Not configurable at runtime; change it here and redeploy.
	BcryptCost = 12

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength caps input at bcrypt's 72-byte limit.
	MaxPasswordLength = 72
)

// BcryptHasher implements CredentialHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using BcryptCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// validatePassword enforces the length bounds on a new credential.
func validatePassword(op, password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid(op, "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid(op, "Password must be 72 characters or less")
	}
	return nil
}
