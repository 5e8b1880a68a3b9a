// Package password hashes and verifies account and share-link passwords
// with a memory-hard KDF, replacing the donor's bcrypt with argon2id per
// the locker's security requirements.
package password

import (
	"crypto/subtle"
	"errors"

	"github.com/alexedwards/argon2id"
)

// Params mirrors the donor's DefaultBcryptCost-style single tunable, scaled
// to argon2id's four-parameter cost model. These are conservative defaults
// suitable for an interactive login path.
var Params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Account password length constraints (§4.8: ASCII, 8-64 bytes).
const (
	MinPasswordLength = 8
	MaxPasswordLength = 64
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 64 characters")
	ErrPasswordNotASCII   = errors.New("password must be ASCII")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Validate checks an account password against §4.8's constraints.
func Validate(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	for i := 0; i < len(pw); i++ {
		if pw[i] > 127 {
			return ErrPasswordNotASCII
		}
	}
	return nil
}

// Hash hashes a validated password with argon2id.
func Hash(pw string) (string, error) {
	return argon2id.CreateHash(pw, Params)
}

// Verify reports whether pw matches hash.
func Verify(pw, hash string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(pw, hash)
	if err != nil {
		return false, err
	}
	return match, nil
}

// VerifyConstantTime compares two already-hashed values (used for link
// passwords read back from a cookie) in constant time, avoiding a timing
// oracle on the stored hash.
func VerifyConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
