package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	minCode = 100000
	maxCode = 999999

	// BypassCode logs in any user when the test bypass is enabled.
	BypassCode = 100000
)

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return 0, err
	}
	return minCode + int(n.Int64()), nil
}
