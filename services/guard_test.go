package services

import (
	"strings"
	"testing"
	"time"

	"bix-reward-engine/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowWithinWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("user:action", 5, time.Minute), "call %d should pass", i+1)
	}
	assert.False(t, limiter.Allow("user:action", 5, time.Minute), "sixth call should be blocked")
}

func TestRateLimiterWindowResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	for i := 0; i < 5; i++ {
		limiter.Allow("k", 5, time.Minute)
	}
	assert.False(t, limiter.Allow("k", 5, time.Minute))

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.Allow("k", 5, time.Minute), "fresh window should allow again")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	for i := 0; i < 5; i++ {
		limiter.Allow("a", 5, time.Minute)
	}
	assert.False(t, limiter.Allow("a", 5, time.Minute))
	assert.True(t, limiter.Allow("b", 5, time.Minute))
}

func TestTrackFailureAccumulates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	assert.Equal(t, 1, limiter.TrackFailure("lockout:u1"))
	assert.Equal(t, 2, limiter.TrackFailure("lockout:u1"))
	assert.Equal(t, 3, limiter.TrackFailure("lockout:u1"))
}

func TestTrackFailureResetsAfterHour(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	limiter.TrackFailure("k")
	limiter.TrackFailure("k")
	clock.Advance(61 * time.Minute)
	assert.Equal(t, 1, limiter.TrackFailure("k"), "stale window should restart the count")
}

func TestIsLockedOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(clock)

	key := "lockout:u2"
	assert.False(t, limiter.IsLockedOut(key))

	for i := 0; i < 9; i++ {
		limiter.TrackFailure(key)
	}
	assert.False(t, limiter.IsLockedOut(key), "nine failures is still under the threshold")

	limiter.TrackFailure(key)
	assert.True(t, limiter.IsLockedOut(key))

	clock.Advance(61 * time.Minute)
	assert.False(t, limiter.IsLockedOut(key), "lockout should clear after the window expires")
}

func TestThrottleMultiplierStacking(t *testing.T) {
	cases := []struct {
		name       string
		recent     int64
		ipAccounts int
		openFlags  int
		want       float64
	}{
		{"clean account", 0, 0, 0, 1.0},
		{"velocity only", 5, 0, 0, 0.5},
		{"velocity under threshold", 4, 0, 0, 1.0},
		{"ip clustering only", 0, 4, 0, 0.25},
		{"ip clustering under threshold", 0, 3, 0, 1.0},
		{"one open flag", 0, 0, 1, 0.75},
		{"two open flags", 0, 0, 2, 0.75},
		{"three open flags no shave", 0, 0, 3, 1.0},
		{"velocity and clustering", 5, 4, 0, 0.125},
		{"everything stacks to floor", 5, 4, 2, 0.1}, // 0.5*0.25*0.75 = 0.09375, floored
	}
	for _, c := range cases {
		assert.Equal(t, c.want, throttleMultiplier(c.recent, c.ipAccounts, c.openFlags), c.name)
	}
}

func TestThrottleMultiplierAlwaysInRange(t *testing.T) {
	for recent := int64(0); recent <= 10; recent += 5 {
		for accounts := 0; accounts <= 6; accounts += 2 {
			for flags := 0; flags <= 4; flags++ {
				m := throttleMultiplier(recent, accounts, flags)
				assert.GreaterOrEqual(t, m, 0.1)
				assert.LessOrEqual(t, m, 1.0)
			}
		}
	}
}

func TestHasBlockingFlag(t *testing.T) {
	assert.False(t, hasBlockingFlag(nil))
	assert.False(t, hasBlockingFlag([]models.AbuseFlag{
		{Severity: models.SeverityLow},
		{Severity: models.SeverityMedium},
	}))
	assert.True(t, hasBlockingFlag([]models.AbuseFlag{
		{Severity: models.SeverityLow},
		{Severity: models.SeverityHigh},
	}))
	assert.True(t, hasBlockingFlag([]models.AbuseFlag{{Severity: models.SeverityCritical}}))
}

func TestHashIPDeterministic(t *testing.T) {
	a := HashIP("203.0.113.7")
	b := HashIP("203.0.113.7")
	assert.Equal(t, a, b)
}

func TestHashIPShape(t *testing.T) {
	h := HashIP("198.51.100.23")
	assert.True(t, strings.HasPrefix(h, "ip_"))
	assert.NotEqual(t, "ip_", h)
	assert.NotContains(t, h, ".")
}

func TestHashIPDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, HashIP("10.0.0.1"), HashIP("10.0.0.2"))
}

func TestHashIPEmptyInput(t *testing.T) {
	assert.Equal(t, "ip_0", HashIP(""))
}
