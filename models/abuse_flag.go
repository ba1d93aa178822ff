package models

import "time"

type FlagType string

const (
	FlagMultiAccountIP     FlagType = "multi_account_ip"
	FlagBruteForceCodes    FlagType = "brute_force_codes"
	FlagReferralIPMatch    FlagType = "referral_ip_match"
	FlagReferralSameIP     FlagType = "referral_same_ip"
	FlagSuspiciousActivity FlagType = "suspicious_activity"
)

type FlagSeverity string

const (
	SeverityLow      FlagSeverity = "low"
	SeverityMedium   FlagSeverity = "medium"
	SeverityHigh     FlagSeverity = "high"
	SeverityCritical FlagSeverity = "critical"
)

// AbuseFlag is raised by the guard or the referral engine and cleared only by
// admin resolution. Unresolved high/critical flags hard-block reward issuance.
type AbuseFlag struct {
	ID       string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string       `gorm:"index;not null" json:"userId"`
	FlagType FlagType     `gorm:"not null" json:"flagType"`
	Severity FlagSeverity `gorm:"not null" json:"severity"`
	Details  string       `gorm:"type:text" json:"details"` // opaque JSON payload

	Resolved   bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`

	Timestamps
}
