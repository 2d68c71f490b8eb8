package rotator

import (
	"crypto/rand"
	"fmt"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix returns length random characters from the lowercase
// alphanumeric alphabet, using rejection sampling to avoid modulo bias.
func randomSuffix(length int) (string, error) {
	const n = byte(len(suffixAlphabet))
	// Largest multiple of n <= 256; bytes at or above it are rejected.
	const maxFair = 256 - (256 % int(n))

	out := make([]byte, length)
	buf := make([]byte, length+16) // over-read to reduce rand calls
	filled := 0
	for filled < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("crypto/rand: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxFair {
				continue
			}
			out[filled] = suffixAlphabet[b%n]
			filled++
			if filled == length {
				break
			}
		}
	}
	return string(out), nil
}
