package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
)

const (
	OTPLength = 6

	codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	CodeLength   = 8
)

// GenerateOTP returns a uniformly random numeric code of OTPLength digits.
func GenerateOTP() (string, error) {
	return randomString("0123456789", OTPLength)
}

// GenerateCode returns a random lowercase code without ambiguous characters.
func GenerateCode() (string, error) {
	return randomString(codeAlphabet, CodeLength)
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// EqualCode compares two codes in constant time.
func EqualCode(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
