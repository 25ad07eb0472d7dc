// Package random makes the opaque identifiers the stand-in payment flow
// hands out.
package random

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func String(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[mrand.Intn(len(charset))]
	}
	return string(b)
}

func StringSecure(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		l := big.NewInt(int64(len(charset)))
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

// ID returns prefix_ followed by length random characters, the shape of
// payment provider identifiers (txn_..., pi_...). It falls back to the
// non secure source if the system one fails.
func ID(prefix string, length int) string {
	s, err := StringSecure(length)
	if err != nil {
		s = String(length)
	}
	return prefix + "_" + s
}
