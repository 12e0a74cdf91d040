// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const referenceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateRandomString(length int, charset string) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateReference builds a human-readable code such as CDR-7K2M9QXA.
func GenerateReference(prefix string) (string, error) {
	code, err := GenerateRandomString(8, referenceCharset)
	if err != nil {
		return "", err
	}
	return prefix + "-" + code, nil
}
