package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

const (
	signupBonus        = 50  // BIX credited to the referred user at signup
	referrerSignupComm = 100 // BIX scheduled for the referrer, paid after the delay
	commissionRate     = 0.10
	commissionDelay    = 24 * time.Hour
	maxReferralsPerDay = 10
	qualifyingActivity = 2 // completed tasks + redemptions needed before commissions flow
)

type ReferralService struct {
	DB     *gorm.DB
	Guard  *GuardService
	Ledger *LedgerService
}

func NewReferralService(db *gorm.DB, guard *GuardService, ledger *LedgerService) *ReferralService {
	return &ReferralService{DB: db, Guard: guard, Ledger: ledger}
}

// ReferralResult reports the signup bonus applied to the referred user.
type ReferralResult struct {
	NewUserReward int64  `json:"newUserReward"`
	NewBalance    int64  `json:"newBalance"`
	NewLevel      int    `json:"newLevel"`
	LeveledUp     bool   `json:"leveledUp"`
	Message       string `json:"message"`
}

// ProcessReferral links a new user to a referrer. IP overlap with the
// referrer's redemption history at signup is a hard deny: a shared IP before
// any trust exists is a strong same-person signal.
func (s *ReferralService) ProcessReferral(newUserID, referralCode, ipHash string) (*ReferralResult, error) {
	if referralCode == "" {
		return nil, errBadRequest("Invalid referral code")
	}

	var referrer models.UserProfile
	if err := s.DB.Where("referral_code = ?", referralCode).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Invalid referral code - referrer not found")
		}
		return nil, err
	}

	if referrer.UserID == newUserID {
		return nil, errBadRequest("Cannot refer yourself")
	}

	var newUser models.UserProfile
	if err := s.DB.Where("user_id = ?", newUserID).First(&newUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadRequest("Profile not found")
		}
		return nil, err
	}
	if newUser.ReferredBy != "" {
		return nil, errBadRequest("User already has a referrer")
	}

	var priorReferrals int64
	if err := s.DB.Model(&models.ReferralHistory{}).
		Where("referred_id = ?", newUserID).
		Count(&priorReferrals).Error; err != nil {
		return nil, err
	}
	if priorReferrals > 0 {
		return nil, errBadRequest("Referral already processed")
	}

	// Anti-fraud: new user's IP appearing in the referrer's redemption history
	// means hard deny plus a high-severity flag
	referrerIPs, err := s.recentRedemptionIPs(referrer.UserID)
	if err != nil {
		return nil, err
	}
	if _, hit := referrerIPs[ipHash]; hit {
		s.Guard.CreateFlag(newUserID, models.FlagReferralSameIP, models.SeverityHigh, map[string]interface{}{
			"referrerId": referrer.UserID,
			"ipHash":     ipHash,
		})
		return nil, errBadRequest("Referral rejected: suspicious activity detected")
	}

	todayStart := startOfToday()
	var todayReferrals int64
	if err := s.DB.Model(&models.ReferralHistory{}).
		Where("referrer_id = ? AND created_at >= ?", referrer.UserID, todayStart).
		Count(&todayReferrals).Error; err != nil {
		return nil, err
	}
	if todayReferrals >= maxReferralsPerDay {
		return nil, errBadRequest("Referrer daily limit reached")
	}

	history := models.ReferralHistory{
		ReferrerID:   referrer.UserID,
		ReferredID:   newUserID,
		RewardAmount: 0, // filled in on qualification
	}
	if err := s.DB.Create(&history).Error; err != nil {
		return nil, err
	}

	// Set referredBy exactly once; guard against a concurrent writer
	if err := s.DB.Model(&models.UserProfile{}).
		Where("user_id = ? AND (referred_by = '' OR referred_by IS NULL)", newUserID).
		Update("referred_by", referrer.UserID).Error; err != nil {
		return nil, err
	}

	credited, err := s.Ledger.ApplyReward(newUserID,
		Delta{Balance: signupBonus, Earned: signupBonus, XP: 100},
		Audit{
			Category:    "referral",
			Description: fmt.Sprintf("Referral bonus: joined via %s", referralCode),
			SourceID:    referrer.UserID,
			SourceType:  "referral_signup",
			IPHash:      ipHash,
		})
	if err != nil {
		return nil, err
	}

	commission := models.ReferralCommission{
		ReferrerID:       referrer.UserID,
		ReferredID:       newUserID,
		SourceRewardID:   "signup_referral",
		CommissionAmount: referrerSignupComm,
		Status:           models.CommissionPending,
		EligibleAt:       time.Now().UTC().Add(commissionDelay),
	}
	if err := s.DB.Create(&commission).Error; err != nil {
		log.Printf("[Referral] Failed to schedule signup commission for %s: %v", referrer.UserID, err)
	}

	return &ReferralResult{
		NewUserReward: signupBonus,
		NewBalance:    credited.Balance,
		NewLevel:      credited.Level,
		LeveledUp:     credited.LeveledUp,
		Message:       fmt.Sprintf("Referral successful! You earned %d BIX. Your referrer will be rewarded after verification.", signupBonus),
	}, nil
}

// ProcessCommission schedules a 10% referrer commission after any reward event
// for a referred user. Unlike the signup check, an IP overlap discovered here
// is a soft deny: the commission is skipped with a low-severity flag, and the
// referred user keeps their own reward.
func (s *ReferralService) ProcessCommission(userID string, earnedAmount int64, sourceID string) error {
	var profile models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if profile.ReferredBy == "" {
		return nil
	}
	referrerID := profile.ReferredBy

	// Qualification: the referred user must show real activity first
	var completions []models.TaskCompletion
	if err := s.DB.Where("user_id = ? AND status = ?", userID, "completed").
		Limit(5).
		Find(&completions).Error; err != nil {
		return err
	}
	var redemptions []models.Redemption
	if err := s.DB.Where("user_id = ?", userID).
		Limit(5).
		Find(&redemptions).Error; err != nil {
		return err
	}
	if len(completions)+len(redemptions) < qualifyingActivity {
		return nil
	}

	referrerIPs, err := s.recentRedemptionIPs(referrerID)
	if err != nil {
		return err
	}
	referredIPs, err := s.recentRedemptionIPs(userID)
	if err != nil {
		return err
	}
	for ip := range referrerIPs {
		if _, hit := referredIPs[ip]; hit {
			s.Guard.CreateFlag(userID, models.FlagReferralIPMatch, models.SeverityLow, map[string]interface{}{
				"referrerId": referrerID,
			})
			return nil
		}
	}

	amount := int64(math.Round(float64(earnedAmount) * commissionRate))
	if amount < 1 {
		return nil
	}

	commission := models.ReferralCommission{
		ReferrerID:       referrerID,
		ReferredID:       userID,
		SourceRewardID:   sourceID,
		CommissionAmount: amount,
		Status:           models.CommissionPending,
		EligibleAt:       time.Now().UTC().Add(commissionDelay),
	}
	return s.DB.Create(&commission).Error
}

// PropagateCommission is ProcessCommission with the error swallowed: a failed
// commission must never unwind the reward it trails.
func (s *ReferralService) PropagateCommission(userID string, earnedAmount int64, sourceID string) {
	if err := s.ProcessCommission(userID, earnedAmount, sourceID); err != nil {
		log.Printf("[Referral] Commission propagation failed for %s (source %s): %v", userID, sourceID, err)
	}
}

// recentRedemptionIPs returns the distinct IP hashes of a user's trailing 5
// redemptions.
func (s *ReferralService) recentRedemptionIPs(userID string) (map[string]struct{}, error) {
	var redemptions []models.Redemption
	if err := s.DB.Where("user_id = ?", userID).
		Order("redeemed_at DESC").
		Limit(5).
		Find(&redemptions).Error; err != nil {
		return nil, err
	}
	ips := make(map[string]struct{})
	for _, r := range redemptions {
		if r.IPHash != "" {
			ips[r.IPHash] = struct{}{}
		}
	}
	return ips, nil
}

func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
