package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidQuestionCount(t *testing.T) {
	for _, n := range []int{5, 10, 20, 50} {
		assert.True(t, validQuestionCount(n), "count=%d", n)
	}
	for _, n := range []int{0, 1, 3, 7, 15, 25, 100} {
		assert.False(t, validQuestionCount(n), "count=%d", n)
	}
}

func TestQuizBonusPerfectRun(t *testing.T) {
	// 5/5 correct with 25 earned pays a 13 bonus (half, rounded)
	assert.Equal(t, int64(13), quizBonus(5, 5, 25))
	assert.Equal(t, int64(50), quizBonus(10, 10, 100))
}

func TestQuizBonusImperfectRunPaysNothing(t *testing.T) {
	assert.Equal(t, int64(0), quizBonus(4, 5, 25))
	assert.Equal(t, int64(0), quizBonus(0, 5, 0))
}

func TestQuizXP(t *testing.T) {
	assert.Equal(t, int64(50), quizXP(5, false))
	assert.Equal(t, int64(550), quizXP(5, true))
	assert.Equal(t, int64(0), quizXP(0, false))
	assert.Equal(t, int64(700), quizXP(20, true))
}

func TestContains(t *testing.T) {
	list := []string{"q1", "q2", "q3"}
	assert.True(t, contains(list, "q2"))
	assert.False(t, contains(list, "q9"))
	assert.False(t, contains(nil, "q1"))
}
