// Package password wraps bcrypt hashing for primary credentials.
package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// Hasher hashes and verifies passwords at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's supported range fall
// back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of the password.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether the password matches the hash. bcrypt's comparison
// is constant-time over the derived key.
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is a valid bcrypt hash of an unguessable throwaway value. Used
// to equalize timing for unknown identifiers.
var dummyHash = func() string {
	out, err := bcrypt.GenerateFromPassword([]byte("authcore-timing-pad"), DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(out)
}()

// DummyVerify burns the same work as a real comparison so a login against
// an unknown identifier is not measurably faster than a wrong password.
func (h *Hasher) DummyVerify() {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte("authcore-timing-pad-miss"))
}

// ErrWeak is returned by CheckStrength for passwords below the floor.
var ErrWeak = errors.New("password too weak")

// CheckStrength enforces the registration floor: at least 8 characters with
// upper, lower, digit, and symbol.
func CheckStrength(password string) error {
	if len(password) < 8 {
		return ErrWeak
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return ErrWeak
	}

	return nil
}
