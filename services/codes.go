package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"bix-reward-engine/models"
	"bix-reward-engine/utils"

	"gorm.io/gorm"
)

const (
	defaultCodeReward   = 100 // flat payout for windows not bound to a task
	codeRedemptionXP    = 100
	maxWindowsPerDay    = 4
	bruteForceThreshold = 8
	codeLength          = 8
	minCodeLength       = 6
)

type CodeService struct {
	DB        *gorm.DB
	Guard     *GuardService
	Ledger    *LedgerService
	Referrals *ReferralService
	Limiter   *RateLimiter
}

func NewCodeService(db *gorm.DB, guard *GuardService, ledger *LedgerService, referrals *ReferralService, limiter *RateLimiter) *CodeService {
	return &CodeService{DB: db, Guard: guard, Ledger: ledger, Referrals: referrals, Limiter: limiter}
}

func lockoutKey(userID string) string {
	return "lockout:" + userID
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateWindow creates a new redemption window. Task-bound windows are
// capped at 4 created per task per day; general windows are uncapped.
func (s *CodeService) GenerateWindow(adminID, taskID string, validHours int, maxRedemptions *int) (*models.CodeWindow, error) {
	if validHours <= 0 {
		validHours = 3
	}

	if taskID != "" {
		var task models.Task
		if err := s.DB.Where("id = ?", taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errBadRequest("Task not found")
			}
			return nil, err
		}

		var todayWindows int64
		if err := s.DB.Model(&models.CodeWindow{}).
			Where("task_id = ? AND is_active = ? AND created_at >= ?", taskID, true, startOfToday()).
			Count(&todayWindows).Error; err != nil {
			return nil, err
		}
		if todayWindows >= maxWindowsPerDay {
			return nil, errBadRequest("Maximum 4 code windows per task per day")
		}
	} else {
		taskID = models.GeneralTaskID
	}

	now := time.Now().UTC()
	window := models.CodeWindow{
		TaskID:         taskID,
		Code:           utils.GenerateSecureCode(codeLength),
		ValidFrom:      now,
		ValidUntil:     now.Add(time.Duration(validHours) * time.Hour),
		MaxRedemptions: maxRedemptions,
		IsActive:       true,
		CreatedByAdmin: adminID,
	}
	if err := s.DB.Create(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

// RedemptionResult is returned on a successful code redemption.
type RedemptionResult struct {
	Reward     int64   `json:"reward"`
	Multiplier float64 `json:"multiplier"`
	NewBalance int64   `json:"newBalance"`
	NewLevel   int     `json:"newLevel"`
	LeveledUp  bool    `json:"leveledUp"`
	Message    string  `json:"message"`
}

// Redeem runs the validation pipeline in order; each failure is terminal.
// Format errors, unknown codes and expired codes count as failed attempts
// toward lockout; a full window does not (exhaustion is not an abuse signal).
func (s *CodeService) Redeem(userID, code, ipHash, deviceHash, userAgent string) (*RedemptionResult, error) {
	if len(strings.TrimSpace(code)) < minCodeLength {
		s.Limiter.TrackFailure(lockoutKey(userID))
		return nil, errBadRequest("Invalid code format")
	}
	cleanCode := normalizeCode(code)

	var window models.CodeWindow
	err := s.DB.Where("code = ? AND is_active = ?", cleanCode, true).First(&window).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		failCount := s.Limiter.TrackFailure(lockoutKey(userID))
		if failCount >= bruteForceThreshold {
			s.Guard.CreateFlag(userID, models.FlagBruteForceCodes, models.SeverityMedium, map[string]interface{}{
				"failedAttempts": failCount,
				"ipHash":         ipHash,
			})
		}
		return nil, errBadRequest("Invalid or expired code")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if now.Before(window.ValidFrom) || now.After(window.ValidUntil) {
		s.Limiter.TrackFailure(lockoutKey(userID))
		return nil, errBadRequest("Code has expired or not yet active")
	}

	if !windowHasCapacity(window.CurrentRedemptions, window.MaxRedemptions) {
		return nil, errBadRequest("Code has reached maximum redemptions")
	}

	var prior int64
	if err := s.DB.Model(&models.Redemption{}).
		Where("user_id = ? AND window_id = ?", userID, window.ID).
		Count(&prior).Error; err != nil {
		return nil, err
	}
	if prior > 0 {
		return nil, errBadRequest("You already redeemed this code")
	}

	decision, err := s.Guard.CheckAbuseThrottling(userID, ipHash)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errBadRequest(decision.Reason)
	}

	// Profile must exist before any slot is consumed: failing after the
	// increment would burn window capacity with no payout.
	var profileExists int64
	if err := s.DB.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Count(&profileExists).Error; err != nil {
		return nil, err
	}
	if profileExists == 0 {
		return nil, errBadRequest("Profile not found")
	}

	rewardAmount := int64(defaultCodeReward)
	if window.TaskID != "" && window.TaskID != models.GeneralTaskID {
		var task models.Task
		if err := s.DB.Where("id = ?", window.TaskID).First(&task).Error; err == nil && task.RewardAmount > 0 {
			rewardAmount = task.RewardAmount
		}
	}
	rewardAmount = int64(math.Round(float64(rewardAmount) * decision.Multiplier))

	// Conditional increment closes the capacity race: losing the increment
	// means another request consumed the last slot first.
	res := s.DB.Model(&models.CodeWindow{}).
		Where("id = ? AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)", window.ID).
		UpdateColumn("current_redemptions", gorm.Expr("current_redemptions + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errBadRequest("Code has reached maximum redemptions")
	}

	redemption := models.Redemption{
		UserID:     userID,
		TaskID:     window.TaskID,
		WindowID:   window.ID,
		RedeemedAt: now,
		IPHash:     ipHash,
		DeviceHash: deviceHash,
		UserAgent:  truncate(userAgent, 200),
	}
	if err := s.DB.Create(&redemption).Error; err != nil {
		return nil, err
	}

	credited, err := s.Ledger.ApplyReward(userID,
		Delta{Balance: rewardAmount, Earned: rewardAmount, XP: codeRedemptionXP},
		Audit{
			Category:    "code",
			Description: fmt.Sprintf("Redeemed code: %s***", cleanCode[:3]),
			SourceID:    window.ID,
			SourceType:  "task_code_window",
			IPHash:      ipHash,
		})
	if err != nil {
		return nil, err
	}

	s.Referrals.PropagateCommission(userID, rewardAmount, window.ID)

	msg := fmt.Sprintf("+%d BIX earned!", rewardAmount)
	if credited.LeveledUp {
		msg += " LEVEL UP!"
	}
	return &RedemptionResult{
		Reward:     rewardAmount,
		Multiplier: decision.Multiplier,
		NewBalance: credited.Balance,
		NewLevel:   credited.Level,
		LeveledUp:  credited.LeveledUp,
		Message:    msg,
	}, nil
}

// WindowView is a CodeWindow enriched with runtime validity info for admins.
type WindowView struct {
	models.CodeWindow
	RemainingMinutes   int  `json:"remainingMinutes"`
	Expired            bool `json:"expired"`
	UtilizationPercent *int `json:"utilizationPercent"`
}

func (s *CodeService) ListWindows(activeOnly bool) ([]WindowView, error) {
	q := s.DB.Order("created_at DESC").Limit(50)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var windows []models.CodeWindow
	if err := q.Find(&windows).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]WindowView, len(windows))
	for i, w := range windows {
		remaining := w.ValidUntil.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		view := WindowView{
			CodeWindow:       w,
			RemainingMinutes: int(math.Round(remaining.Minutes())),
			Expired:          remaining == 0,
		}
		if w.MaxRedemptions != nil && *w.MaxRedemptions > 0 {
			pct := int(math.Round(float64(w.CurrentRedemptions) / float64(*w.MaxRedemptions) * 100))
			view.UtilizationPercent = &pct
		}
		views[i] = view
	}
	return views, nil
}

// DisableWindow deactivates a window. Windows are retained for the audit trail.
func (s *CodeService) DisableWindow(windowID string) error {
	if windowID == "" {
		return errBadRequest("Missing windowId")
	}
	res := s.DB.Model(&models.CodeWindow{}).
		Where("id = ?", windowID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errBadRequest("Code window not found")
	}
	return nil
}

// windowHasCapacity reports whether the window can still admit a redemption.
// A nil cap means unlimited.
func windowHasCapacity(current int, max *int) bool {
	return max == nil || current < *max
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
