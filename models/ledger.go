package models

import "time"

// Transaction is the signed money trail: one row per balance movement,
// including game losses.
type Transaction struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"index;not null" json:"userId"`
	Amount      int64     `json:"amount"` // signed
	Type        string    `gorm:"index" json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// RewardLog is the audit trail for issued rewards: what source paid how much.
type RewardLog struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"index;not null" json:"userId"`
	RewardType   string    `gorm:"index" json:"rewardType"`
	RewardAmount int64     `json:"rewardAmount"`
	SourceID     string    `json:"sourceId"`
	SourceType   string    `json:"sourceType"`
	IPHash       string    `json:"ipHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusProcessed PendingStatus = "processed"
)

// PendingReward is a delayed credit swept by the pending-work processor once
// ProcessAt has passed.
type PendingReward struct {
	ID           string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string        `gorm:"index;not null" json:"userId"`
	RewardAmount int64         `json:"rewardAmount"`
	RewardType   string        `json:"rewardType"`
	SourceID     string        `json:"sourceId"`
	SourceType   string        `json:"sourceType"`
	Status       PendingStatus `gorm:"default:'pending';index" json:"status"`
	ProcessAt    time.Time     `gorm:"index" json:"processAt"`

	Timestamps
}

// PlatformMetric is the per-day rollup, upserted on every reward event.
// Today/all-time totals run independently per category.
type PlatformMetric struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MetricDate string `gorm:"uniqueIndex;not null" json:"metricDate"` // YYYY-MM-DD

	TotalRewardsIssued    int64 `json:"totalRewardsIssued" gorm:"default:0"`
	TotalDailyRewards     int64 `json:"totalDailyRewards" gorm:"default:0"`
	TaskRewardsIssued     int64 `json:"taskRewardsIssued" gorm:"default:0"`
	ReferralRewardsIssued int64 `json:"referralRewardsIssued" gorm:"default:0"`
	QuizRewardsIssued     int64 `json:"quizRewardsIssued" gorm:"default:0"`
	GameRewardsIssued     int64 `json:"gameRewardsIssued" gorm:"default:0"`
	CodeRewardsIssued     int64 `json:"codeRewardsIssued" gorm:"default:0"`
	ActiveUsersToday      int64 `json:"activeUsersToday" gorm:"default:0"`

	Timestamps
}
