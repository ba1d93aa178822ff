package services

import (
	"errors"
	"log"
	"time"

	"bix-reward-engine/models"
	"bix-reward-engine/utils"

	"gorm.io/gorm"
)

// xpPerLevel: levels are derived, never stored independently of XP.
const xpPerLevel = 1_000_000

func calculateLevel(xp int64) int {
	return int(xp/xpPerLevel) + 1
}

// Delta is a single balance/earned/XP adjustment applied through the ledger.
type Delta struct {
	Balance int64
	Earned  int64
	XP      int64
}

// Audit ties a credit to its transaction, reward-log and metric entries.
type Audit struct {
	Category    string // task | referral | quiz | game | code | daily
	Description string
	SourceID    string
	SourceType  string
	IPHash      string
}

// CreditedProfile is the profile after a credit, with the level-up signal.
type CreditedProfile struct {
	models.UserProfile
	LeveledUp bool `json:"leveledUp"`
}

type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// applyDelta mutates the profile in place and reports whether it leveled up.
func applyDelta(p *models.UserProfile, d Delta) bool {
	newXP := p.XP + d.XP
	newLevel := calculateLevel(newXP)
	leveledUp := newLevel > p.Level
	p.Balance += d.Balance
	p.TotalEarned += d.Earned
	p.XP = newXP
	p.Level = newLevel
	return leveledUp
}

// Credit is the sole sanctioned path for XP/level mutation. A missing profile
// is a fatal precondition failure for the caller, not a retry case.
func (s *LedgerService) Credit(userID string, d Delta) (*CreditedProfile, error) {
	var profile models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Profile not found")
		}
		return nil, err
	}

	leveledUp := applyDelta(&profile, d)
	if err := s.DB.Save(&profile).Error; err != nil {
		return nil, err
	}
	return &CreditedProfile{UserProfile: profile, LeveledUp: leveledUp}, nil
}

// ApplyReward is the composite credit + transaction + reward log + metric
// operation. Audit bookkeeping failures never unwind the credit; they are
// logged and swallowed.
func (s *LedgerService) ApplyReward(userID string, d Delta, a Audit) (*CreditedProfile, error) {
	credited, err := s.Credit(userID, d)
	if err != nil {
		return nil, err
	}

	tx := models.Transaction{
		UserID:      userID,
		Amount:      d.Balance,
		Type:        a.Category,
		Description: a.Description,
	}
	if err := s.DB.Create(&tx).Error; err != nil {
		log.Printf("[Ledger] Transaction log failed for %s: %v", userID, err)
	}

	rl := models.RewardLog{
		UserID:       userID,
		RewardType:   a.Category,
		RewardAmount: d.Earned,
		SourceID:     a.SourceID,
		SourceType:   a.SourceType,
		IPHash:       a.IPHash,
	}
	if err := s.DB.Create(&rl).Error; err != nil {
		log.Printf("[Ledger] Reward log failed for %s: %v", userID, err)
	}

	s.TrackMetric(a.Category, d.Earned)
	return credited, nil
}

// DebitBalance reduces balance without touching totalEarned or XP. Used for
// pure-loss outcomes like a lost wager.
func (s *LedgerService) DebitBalance(userID string, amount int64) (int64, error) {
	var profile models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errBadRequest("Profile not found")
		}
		return 0, err
	}
	profile.Balance -= amount
	if err := s.DB.Save(&profile).Error; err != nil {
		return 0, err
	}
	return profile.Balance, nil
}

// EnsureProfile creates a default profile row when missing (idempotent).
// Reward paths never call this: a missing profile there is a hard failure.
func (s *LedgerService) EnsureProfile(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.DB.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.UserProfile{
			UserID:       userID,
			Level:        1,
			Role:         models.RoleUser,
			ReferralCode: utils.GenerateSecureCode(8),
		}
		if err := s.DB.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// IsAdmin reports whether the caller's profile carries the admin role.
func (s *LedgerService) IsAdmin(userID string) (bool, error) {
	var profile models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.Role == models.RoleAdmin, nil
}

// metricColumn maps reward categories onto their rollup column. Daily
// check-ins roll into the task bucket.
func metricColumn(category string) string {
	switch category {
	case "referral":
		return "referral_rewards_issued"
	case "quiz":
		return "quiz_rewards_issued"
	case "game":
		return "game_rewards_issued"
	case "code":
		return "code_rewards_issued"
	default: // task, daily
		return "task_rewards_issued"
	}
}

// TrackMetric upserts the per-day rollup. Metric failures are observational
// only and never surface to callers.
func (s *LedgerService) TrackMetric(category string, amount int64) {
	today := time.Now().UTC().Format("2006-01-02")
	column := metricColumn(category)

	var metric models.PlatformMetric
	err := s.DB.Where("metric_date = ?", today).First(&metric).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		metric = models.PlatformMetric{MetricDate: today}
		switch column {
		case "referral_rewards_issued":
			metric.ReferralRewardsIssued = amount
		case "quiz_rewards_issued":
			metric.QuizRewardsIssued = amount
		case "game_rewards_issued":
			metric.GameRewardsIssued = amount
		case "code_rewards_issued":
			metric.CodeRewardsIssued = amount
		default:
			metric.TaskRewardsIssued = amount
		}
		metric.TotalRewardsIssued = amount
		metric.TotalDailyRewards = amount
		if err := s.DB.Create(&metric).Error; err != nil {
			log.Printf("[Ledger] Metric create failed for %s: %v", today, err)
		}
	case err != nil:
		log.Printf("[Ledger] Metric lookup failed for %s: %v", today, err)
	default:
		updates := map[string]interface{}{
			"total_rewards_issued": gorm.Expr("total_rewards_issued + ?", amount),
			"total_daily_rewards":  gorm.Expr("total_daily_rewards + ?", amount),
			column:                 gorm.Expr(column+" + ?", amount),
		}
		if err := s.DB.Model(&models.PlatformMetric{}).
			Where("metric_date = ?", today).
			Updates(updates).Error; err != nil {
			log.Printf("[Ledger] Metric update failed for %s: %v", today, err)
		}
	}
}

// TrackActiveUser bumps the daily active-user counter if today's rollup exists.
func (s *LedgerService) TrackActiveUser() {
	today := time.Now().UTC().Format("2006-01-02")
	if err := s.DB.Model(&models.PlatformMetric{}).
		Where("metric_date = ?", today).
		UpdateColumn("active_users_today", gorm.Expr("active_users_today + 1")).Error; err != nil {
		log.Printf("[Ledger] Active user metric failed: %v", err)
	}
}
