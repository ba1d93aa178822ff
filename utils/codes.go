package utils

import (
	"crypto/rand"
	"log"
)

// codeAlphabet excludes visually ambiguous glyphs (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateSecureCode returns a random code of the given length drawn from the
// unambiguous alphabet, using a cryptographically secure source.
func GenerateSecureCode(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to issue codes
		log.Fatalf("crypto/rand unavailable: %v", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}
