package models

import (
	"time"

	"gorm.io/gorm"
)

// Role of a profile within the rewards platform
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserProfile is the single source of truth for a user's BIX balance, XP and level.
// Balance/XP/level are mutated only through the ledger's credit path; lastLogin,
// dailyStreak and referredBy are owned by their specific flows.
type UserProfile struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"userId"` // external auth identity

	Balance     int64 `json:"balance" gorm:"default:0"`
	TotalEarned int64 `json:"totalEarned" gorm:"default:0"` // lifetime gross credits, never decremented
	XP          int64 `json:"xp" gorm:"default:0"`
	Level       int   `json:"level" gorm:"default:1"` // always floor(xp/1_000_000)+1

	Role Role `gorm:"default:'user'" json:"role"`

	DailyStreak int    `json:"dailyStreak" gorm:"default:0"`
	LastLogin   string `json:"lastLogin"` // YYYY-MM-DD, UTC

	ReferralCode string `gorm:"uniqueIndex" json:"referralCode"`
	ReferredBy   string `gorm:"index" json:"referredBy,omitempty"` // set at most once

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
