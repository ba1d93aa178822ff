package models

import "time"

// GeneralTaskID marks a code window not bound to any task.
const GeneralTaskID = "general"

// CodeWindow is a time-boxed, optionally capacity-limited redeemable code.
// Windows are never deleted, only deactivated, so the redemption audit trail
// stays intact.
type CodeWindow struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TaskID string `gorm:"index;default:'general'" json:"taskId"`
	Code   string `gorm:"index;not null" json:"code"` // 8 chars, unambiguous alphabet

	ValidFrom  time.Time `json:"validFrom"`
	ValidUntil time.Time `json:"validUntil"`

	MaxRedemptions     *int `json:"maxRedemptions,omitempty"` // nil = unlimited
	CurrentRedemptions int  `json:"currentRedemptions" gorm:"default:0"`

	IsActive       bool   `gorm:"default:true;index" json:"isActive"`
	CreatedByAdmin string `json:"createdByAdmin"`

	Timestamps
}

// Redemption is immutable once created; one per (userId, windowId) pair.
type Redemption struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string `gorm:"index;not null" json:"userId"`
	TaskID   string `json:"taskId"`
	WindowID string `gorm:"index;not null" json:"windowId"`

	RedeemedAt time.Time `gorm:"index" json:"redeemedAt"`
	IPHash     string    `gorm:"index" json:"ipHash"`
	DeviceHash string    `json:"deviceHash"`
	UserAgent  string    `gorm:"size:200" json:"userAgent"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
