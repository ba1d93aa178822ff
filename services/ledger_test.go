package services

import (
	"testing"

	"bix-reward-engine/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{999_999, 1},
		{1_000_000, 2},
		{1_999_999, 2},
		{2_000_000, 3},
		{10_500_000, 11},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, calculateLevel(c.xp), "xp=%d", c.xp)
	}
}

func TestApplyDeltaAccumulates(t *testing.T) {
	p := &models.UserProfile{Balance: 100, TotalEarned: 500, XP: 1000, Level: 1}

	leveledUp := applyDelta(p, Delta{Balance: 50, Earned: 50, XP: 200})

	assert.False(t, leveledUp)
	assert.Equal(t, int64(150), p.Balance)
	assert.Equal(t, int64(550), p.TotalEarned)
	assert.Equal(t, int64(1200), p.XP)
	assert.Equal(t, 1, p.Level)
}

func TestApplyDeltaLevelUpBoundary(t *testing.T) {
	p := &models.UserProfile{XP: 999_950, Level: 1}

	leveledUp := applyDelta(p, Delta{XP: 50})

	assert.True(t, leveledUp)
	assert.Equal(t, 2, p.Level)
}

func TestApplyDeltaJustUnderBoundary(t *testing.T) {
	p := &models.UserProfile{XP: 999_900, Level: 1}

	leveledUp := applyDelta(p, Delta{XP: 99})

	assert.False(t, leveledUp)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(999_999), p.XP)
}

func TestApplyDeltaDebitDoesNotTouchEarned(t *testing.T) {
	p := &models.UserProfile{Balance: 200, TotalEarned: 1000, XP: 0, Level: 1}

	applyDelta(p, Delta{Balance: -75})

	assert.Equal(t, int64(125), p.Balance)
	assert.Equal(t, int64(1000), p.TotalEarned)
}

func TestMetricColumn(t *testing.T) {
	assert.Equal(t, "referral_rewards_issued", metricColumn("referral"))
	assert.Equal(t, "quiz_rewards_issued", metricColumn("quiz"))
	assert.Equal(t, "game_rewards_issued", metricColumn("game"))
	assert.Equal(t, "code_rewards_issued", metricColumn("code"))
	assert.Equal(t, "task_rewards_issued", metricColumn("task"))
	assert.Equal(t, "task_rewards_issued", metricColumn("daily"))
}
