package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSecureCodeLength(t *testing.T) {
	assert.Len(t, GenerateSecureCode(8), 8)
	assert.Len(t, GenerateSecureCode(6), 6)
	assert.Len(t, GenerateSecureCode(12), 12)
}

func TestGenerateSecureCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := GenerateSecureCode(8)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in %s", c, code)
		}
	}
}

func TestGenerateSecureCodeNoAmbiguousGlyphs(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := GenerateSecureCode(8)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "L")
	}
}

func TestGenerateSecureCodeVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[GenerateSecureCode(8)] = true
	}
	assert.Greater(t, len(seen), 1, "repeated generation should not return a constant code")
}
