package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionRegistryCoversAllActions(t *testing.T) {
	expected := []string{
		"process_referral",
		"complete_task",
		"daily_checkin",
		"start_quiz",
		"quiz_answer",
		"finish_quiz",
		"game_result",
		"redeem_task_code",
		"get_pending_rewards",
		"admin_generate_code_window",
		"admin_list_code_windows",
		"admin_disable_code_window",
		"admin_get_metrics",
		"admin_get_abuse_flags",
		"admin_resolve_flag",
		"admin_create_task",
		"admin_toggle_task",
		"admin_delete_task",
	}
	for _, action := range expected {
		spec, ok := actionRegistry[action]
		assert.True(t, ok, "missing action %s", action)
		assert.NotNil(t, spec.handle, "nil handler for %s", action)
	}
}

func TestActionRegistryAliases(t *testing.T) {
	alias, ok := actionRegistry["verify_reward_code"]
	assert.True(t, ok)
	canonical := actionRegistry["redeem_task_code"]
	assert.Equal(t, canonical.admin, alias.admin)
	assert.Equal(t, canonical.perMinute, alias.perMinute)

	alias, ok = actionRegistry["admin_generate_code"]
	assert.True(t, ok)
	assert.True(t, alias.admin)
}

func TestAdminActionsAreGated(t *testing.T) {
	for action, spec := range actionRegistry {
		if strings.HasPrefix(action, "admin_") {
			assert.True(t, spec.admin, "%s must be admin-gated", action)
		} else {
			assert.False(t, spec.admin, "%s must not be admin-gated", action)
		}
	}
}

func TestQuizAnswerHasHigherRate(t *testing.T) {
	assert.Equal(t, 30, actionRegistry["quiz_answer"].perMinute)
	assert.Equal(t, 0, actionRegistry["complete_task"].perMinute, "default rate actions leave perMinute zero")
}

func TestIsCodeRedemption(t *testing.T) {
	assert.True(t, isCodeRedemption("redeem_task_code"))
	assert.True(t, isCodeRedemption("verify_reward_code"))
	assert.False(t, isCodeRedemption("game_result"))
}
