package routeros

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Credential alphabets. Usernames exclude visually ambiguous characters
// (0/O, 1/l/I) because vouchers get typed from paper; passwords are digits
// only for phone-keyboard entry.
const (
	usernameAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	passwordAlphabet = "0123456789"

	usernameLength = 8
	passwordLength = 6
)

// GenerateUsername returns a random voucher username with the given prefix,
// e.g. "hs-x7k2mp9q". Uniqueness is the device's job; collisions surface as
// ErrDuplicateUsername on creation.
func GenerateUsername(prefix string) (string, error) {
	suffix, err := randomString(usernameAlphabet, usernameLength)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return suffix, nil
	}
	return prefix + "-" + suffix, nil
}

// GeneratePassword returns a random numeric voucher password.
func GeneratePassword() (string, error) {
	return randomString(passwordAlphabet, passwordLength)
}

// randomString draws each character uniformly from the alphabet using
// crypto/rand. rand.Int is modulo-bias free.
func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate credential: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
