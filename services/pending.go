package services

import (
	"fmt"
	"log"
	"time"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

const (
	pendingRewardXP = 50
	commissionXP    = 25
	sweepBatchLimit = 20
)

// PendingService sweeps due delayed rewards and referrer commissions. It runs
// opportunistically at the start of every authenticated request, plus on a
// periodic schedule for referrers who never come back on their own.
type PendingService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewPendingService(db *gorm.DB, ledger *LedgerService) *PendingService {
	return &PendingService{DB: db, Ledger: ledger}
}

// SweepUser processes the caller's due pending rewards and the due
// commissions they are owed as a referrer. Every item is isolated: one
// failure is logged and the rest proceed.
func (s *PendingService) SweepUser(userID string) {
	now := time.Now().UTC()

	var pending []models.PendingReward
	if err := s.DB.Where("user_id = ? AND status = ? AND process_at <= ?", userID, models.PendingStatusPending, now).
		Limit(sweepBatchLimit).
		Find(&pending).Error; err != nil {
		log.Printf("[Pending] List failed for %s: %v", userID, err)
	} else {
		for i := range pending {
			if err := s.processReward(&pending[i]); err != nil {
				log.Printf("[Pending] Reward %s failed: %v", pending[i].ID, err)
			}
		}
	}

	var commissions []models.ReferralCommission
	if err := s.DB.Where("referrer_id = ? AND status = ? AND eligible_at <= ?", userID, models.CommissionPending, now).
		Limit(sweepBatchLimit).
		Find(&commissions).Error; err != nil {
		log.Printf("[Pending] Commission list failed for %s: %v", userID, err)
		return
	}
	for i := range commissions {
		if err := s.ProcessCommission(&commissions[i]); err != nil {
			log.Printf("[Pending] Commission %s failed: %v", commissions[i].ID, err)
		}
	}
}

// processReward pays out one delayed reward. The pending->processed transition
// is claimed first with a conditional update, which makes processing
// idempotent even across concurrent sweeps.
func (s *PendingService) processReward(item *models.PendingReward) error {
	res := s.DB.Model(&models.PendingReward{}).
		Where("id = ? AND status = ?", item.ID, models.PendingStatusPending).
		Update("status", models.PendingStatusProcessed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // claimed by a concurrent sweep
	}

	_, err := s.Ledger.Credit(item.UserID, Delta{
		Balance: item.RewardAmount,
		Earned:  item.RewardAmount,
		XP:      pendingRewardXP,
	})
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	rewardType := item.RewardType
	if rewardType == "" {
		rewardType = "verification"
	}
	tx := models.Transaction{
		UserID:      item.UserID,
		Amount:      item.RewardAmount,
		Type:        rewardType,
		Description: "Delayed reward processed",
	}
	if err := s.DB.Create(&tx).Error; err != nil {
		log.Printf("[Pending] Transaction log failed for %s: %v", item.ID, err)
	}

	sourceType := item.SourceType
	if sourceType == "" {
		sourceType = "pending_reward"
	}
	rl := models.RewardLog{
		UserID:       item.UserID,
		RewardType:   rewardType,
		RewardAmount: item.RewardAmount,
		SourceID:     item.SourceID,
		SourceType:   sourceType,
	}
	if err := s.DB.Create(&rl).Error; err != nil {
		log.Printf("[Pending] Reward log failed for %s: %v", item.ID, err)
	}
	return nil
}

// ProcessCommission pays out one due referral commission to the referrer.
func (s *PendingService) ProcessCommission(comm *models.ReferralCommission) error {
	now := time.Now().UTC()
	res := s.DB.Model(&models.ReferralCommission{}).
		Where("id = ? AND status = ?", comm.ID, models.CommissionPending).
		Updates(map[string]interface{}{
			"status":       models.CommissionProcessed,
			"processed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	_, err := s.Ledger.Credit(comm.ReferrerID, Delta{
		Balance: comm.CommissionAmount,
		Earned:  comm.CommissionAmount,
		XP:      commissionXP,
	})
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	tx := models.Transaction{
		UserID:      comm.ReferrerID,
		Amount:      comm.CommissionAmount,
		Type:        "referral_commission",
		Description: "Referral commission from user activity",
	}
	if err := s.DB.Create(&tx).Error; err != nil {
		log.Printf("[Pending] Commission transaction log failed for %s: %v", comm.ID, err)
	}

	s.Ledger.TrackMetric("referral", comm.CommissionAmount)
	return nil
}

// ListPending returns the caller's recent pending rewards for display.
func (s *PendingService) ListPending(userID string) ([]models.PendingReward, error) {
	var pending []models.PendingReward
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(sweepBatchLimit).
		Find(&pending).Error
	return pending, err
}

// SweepDueCommissions processes all due commissions platform-wide, regardless
// of whether the referrer has been active. Used by the scheduler.
func (s *PendingService) SweepDueCommissions() {
	var commissions []models.ReferralCommission
	if err := s.DB.Where("status = ? AND eligible_at <= ?", models.CommissionPending, time.Now().UTC()).
		Limit(100).
		Find(&commissions).Error; err != nil {
		log.Printf("[Pending] Global commission sweep query failed: %v", err)
		return
	}
	for i := range commissions {
		if err := s.ProcessCommission(&commissions[i]); err != nil {
			log.Printf("[Pending] Commission %s failed: %v", commissions[i].ID, err)
		}
	}
}
