package game

import (
	"crypto/rand"
	"math/big"
)

// Room codes are 7-digit numeric strings, easy to read out loud.
const codeLength = 7

const digits = "0123456789"

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
