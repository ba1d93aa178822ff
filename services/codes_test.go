package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABCD2345", normalizeCode("  abcd2345 "))
	assert.Equal(t, "XYZW9876", normalizeCode("xyzw9876"))
	assert.Equal(t, "", normalizeCode("   "))
}

func TestWindowHasCapacity(t *testing.T) {
	one := 1
	five := 5

	assert.True(t, windowHasCapacity(0, nil), "nil cap is unlimited")
	assert.True(t, windowHasCapacity(1_000_000, nil))

	assert.True(t, windowHasCapacity(0, &one))
	assert.False(t, windowHasCapacity(1, &one), "cap of one admits exactly one redemption")
	assert.False(t, windowHasCapacity(2, &one))

	assert.True(t, windowHasCapacity(4, &five))
	assert.False(t, windowHasCapacity(5, &five))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("", 5))
}
