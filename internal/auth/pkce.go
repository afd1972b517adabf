package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateVerifier returns a random alphanumeric PKCE code verifier of length n.
func GenerateVerifier(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid verifier length %d", n)
	}

	limit := big.NewInt(int64(len(verifierAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate verifier: %w", err)
		}
		buf[i] = verifierAlphabet[idx.Int64()]
	}

	return string(buf), nil
}
