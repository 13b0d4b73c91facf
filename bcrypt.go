package access

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash using the default work factor
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, passwordHashCost())
}

// HashPasswordCost will generate a password hash with an explicit work factor
func HashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password. The comparison is delegated to
// bcrypt and runs in time independent of where the mismatch occurs.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPasswordHash is a hash of a throwaway password, useful as a
// placeholder for passwordless accounts
func RandomPasswordHash() (string, error) {
	return HashPassword(uuid.NewString())
}

type bcryptAuthenticator struct{}

// DefaultPasswordAuthenticator returns the bcrypt-backed implementation of
// PasswordAuthenticator used unless a consumer injects their own.
func DefaultPasswordAuthenticator() PasswordAuthenticator {
	return bcryptAuthenticator{}
}

func (bcryptAuthenticator) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (bcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
