package note

import (
	"crypto/rand"
	"math/big"
)

const (
	shareCodeLength   = 8
	shareCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// CodeGenerator produces candidate share codes.
type CodeGenerator func() (string, error)

// RandomCode returns an 8-character alphanumeric code from crypto/rand.
func RandomCode() (string, error) {
	limit := big.NewInt(int64(len(shareCodeAlphabet)))
	code := make([]byte, shareCodeLength)

	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}

		code[i] = shareCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}
