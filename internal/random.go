package internal

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var ten = big.NewInt(10)

// NewOTP returns a numeric one-time code of the given length. Each digit is
// drawn independently so leading zeros are as likely as any other digit.
func NewOTP(digits int) (string, error) {
	var sb strings.Builder
	sb.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}
