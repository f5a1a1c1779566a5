package shared

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// StateLength is the length of the state values issued by the login redirect.
const StateLength = 16

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateState returns a string of exactly length characters drawn uniformly from the
// 62-symbol alphanumeric alphabet using crypto/rand.
func GenerateState(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	max := big.NewInt(int64(len(alphanumeric)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = alphanumeric[n.Int64()]
	}

	return string(buf), nil
}
