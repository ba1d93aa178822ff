package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMultiplierRoulette(t *testing.T) {
	mult, msg := resolveMultiplier("roulette", 0.95)
	assert.Equal(t, int64(5), mult)
	assert.Equal(t, "JACKPOT! 5x!", msg)

	mult, _ = resolveMultiplier("roulette", 0.7)
	assert.Equal(t, int64(2), mult)

	mult, msg = resolveMultiplier("roulette", 0.5)
	assert.Equal(t, int64(0), mult)
	assert.Equal(t, "Better luck next time!", msg)
}

func TestResolveMultiplierRouletteBoundaries(t *testing.T) {
	// thresholds are strict: exactly 0.9 and 0.6 do not upgrade the tier
	mult, _ := resolveMultiplier("roulette", 0.9)
	assert.Equal(t, int64(2), mult)

	mult, _ = resolveMultiplier("roulette", 0.6)
	assert.Equal(t, int64(0), mult)
}

func TestResolveMultiplierCoinflip(t *testing.T) {
	mult, msg := resolveMultiplier("coinflip", 0.51)
	assert.Equal(t, int64(2), mult)
	assert.Equal(t, "You won!", msg)

	mult, _ = resolveMultiplier("coinflip", 0.5)
	assert.Equal(t, int64(0), mult)
}

func TestResolveMultiplierUnknownGameNeverWins(t *testing.T) {
	mult, _ := resolveMultiplier("slots", 0.99)
	assert.Equal(t, int64(0), mult)
}

func TestGameNet(t *testing.T) {
	assert.Equal(t, int64(40), gameNet(10, 5))   // 5x on 10: +40
	assert.Equal(t, int64(100), gameNet(100, 2)) // 2x on 100: +100
	assert.Equal(t, int64(-50), gameNet(50, 0))  // loss: -bet
}
