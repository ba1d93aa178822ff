package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStreakContinues(t *testing.T) {
	assert.Equal(t, 4, nextStreak("2024-01-01", "2024-01-01", 3))
}

func TestNextStreakResetsOnGap(t *testing.T) {
	// last check-in two days ago, yesterday was 2024-01-02
	assert.Equal(t, 1, nextStreak("2024-01-01", "2024-01-02", 3))
}

func TestNextStreakFirstCheckin(t *testing.T) {
	assert.Equal(t, 1, nextStreak("", "2024-01-02", 0))
}

func TestCheckinRewardScaling(t *testing.T) {
	cases := []struct {
		streak     int
		reward     int64
		multiplier float64
		xp         int64
	}{
		{1, 10, 1.0, 60},
		{2, 15, 1.5, 70},
		{3, 20, 2.0, 80},
		{9, 50, 5.0, 140},
		{30, 50, 5.0, 350}, // multiplier caps, XP keeps growing
	}
	for _, c := range cases {
		reward, multiplier, xp := checkinReward(c.streak)
		assert.Equal(t, c.reward, reward, "streak=%d reward", c.streak)
		assert.Equal(t, c.multiplier, multiplier, "streak=%d multiplier", c.streak)
		assert.Equal(t, c.xp, xp, "streak=%d xp", c.streak)
	}
}

func TestZeroXPTaskPaysStandardAmount(t *testing.T) {
	// A task row seeded with xp_reward = 0 still pays the standard 100 XP
	assert.Equal(t, int64(100), defaultInt(0, 100))
	assert.Equal(t, int64(50), defaultInt(50, 100))
	assert.Equal(t, int64(250), defaultInt(250, 100))
}

func TestReferralTaskRequirement(t *testing.T) {
	assert.Equal(t, int64(1), referralTaskRequirement("task_refer_1"))
	assert.Equal(t, int64(5), referralTaskRequirement("task_refer_5"))
	assert.Equal(t, int64(25), referralTaskRequirement("task_refer_25"))
	assert.Equal(t, int64(25), referralTaskRequirement("task_refer_anything"))
}
