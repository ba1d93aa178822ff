package models

import "time"

type TaskType string

const (
	TaskTypeOneTime TaskType = "one_time"
	TaskTypeDaily   TaskType = "daily"
)

type TaskCategory string

const (
	TaskCategorySocial    TaskCategory = "social"
	TaskCategoryReferral  TaskCategory = "referral"
	TaskCategoryMilestone TaskCategory = "milestone"
)

// Task is an admin-defined earning opportunity. IDs are slugs ("task_earn_1000")
// because referral/milestone unlock thresholds key off them.
type Task struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	Title         string       `gorm:"not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description"`
	Category      TaskCategory `gorm:"default:'social'" json:"category"`
	TaskType      TaskType     `gorm:"default:'one_time'" json:"taskType"`
	RewardAmount  int64        `json:"rewardAmount" gorm:"default:100"`
	XPReward      int64        `json:"xpReward" gorm:"default:50"`
	RequiredLevel int          `json:"requiredLevel" gorm:"default:0"`
	Link          string       `json:"link"`
	IsActive      bool         `gorm:"default:true;index" json:"isActive"`

	Timestamps
}

// TaskCompletion records one claim of a task by a user. Daily tasks accrue one
// row per day; one-time tasks at most one row ever.
type TaskCompletion struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"index;not null" json:"userId"`
	TaskID      string    `gorm:"index;not null" json:"taskId"`
	Status      string    `gorm:"default:'completed'" json:"status"`
	CompletedAt time.Time `json:"completedAt"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
