package models

import "time"

// ReferralHistory tracks who referred whom. One row per referred user; the
// reward amount is informational and filled in once the referral qualifies.
type ReferralHistory struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerID   string `gorm:"index;not null" json:"referrerId"`
	ReferredID   string `gorm:"uniqueIndex;not null" json:"referredId"`
	RewardAmount int64  `json:"rewardAmount" gorm:"default:0"`

	Timestamps
}

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionProcessed CommissionStatus = "processed"
)

// ReferralCommission is a delayed payout to a referrer. It becomes payable at
// EligibleAt and transitions pending -> processed exactly once, by the
// pending-work processor.
type ReferralCommission struct {
	ID               string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerID       string           `gorm:"index;not null" json:"referrerId"`
	ReferredID       string           `gorm:"index;not null" json:"referredId"`
	SourceRewardID   string           `json:"sourceRewardId"`
	CommissionAmount int64            `json:"commissionAmount"`
	Status           CommissionStatus `gorm:"default:'pending';index" json:"status"`
	EligibleAt       time.Time        `gorm:"index" json:"eligibleAt"`
	ProcessedAt      *time.Time       `json:"processedAt,omitempty"`

	Timestamps
}
