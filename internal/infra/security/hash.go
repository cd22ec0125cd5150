package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// HashMatches compares a plain value against a stored HashToken digest in constant time.
func HashMatches(value, storedHash string) bool {
	computed := HashToken(strings.TrimSpace(value))
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// GenerateNumericCode returns a uniformly random numeric string of the given length.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("code length must be between 1 and 18")
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// NumericCodeGenerator implements port.CodeGenerator with crypto/rand.
type NumericCodeGenerator struct{}

// Generate returns a numeric code of the requested length.
func (NumericCodeGenerator) Generate(length int) (string, error) {
	return GenerateNumericCode(length)
}
