package random

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// Random provides random number generation that can be mocked for testing.
// Room codes are drawn from Intn and session tokens from Token.
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// Token returns size random bytes encoded as unpadded base64url
	Token(size int) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// Token returns size random bytes encoded as unpadded base64url.
// crypto/rand.Read never returns an error on supported platforms.
func (r *CryptoRandom) Token(size int) string {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
