package services

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"bix-reward-engine/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

const (
	failureWindow    = time.Hour
	lockoutThreshold = 10
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// RateLimiter keeps fixed-window counters in memory. It is created once per
// process and injected; counters do not synchronize across instances.
type RateLimiter struct {
	clock clockwork.Clock

	mu       sync.Mutex
	counters map[string]*windowEntry
	failures map[string]*windowEntry
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithClock(clockwork.NewRealClock())
}

func NewRateLimiterWithClock(clock clockwork.Clock) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		counters: make(map[string]*windowEntry),
		failures: make(map[string]*windowEntry),
	}
}

// Allow increments the fixed-window counter for key and reports whether the
// call is within max. The window resets lazily on the first check after expiry.
func (l *RateLimiter) Allow(key string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	entry, ok := l.counters[key]
	if !ok || now.After(entry.resetAt) {
		l.counters[key] = &windowEntry{count: 1, resetAt: now.Add(window)}
		return true
	}
	if entry.count >= max {
		return false
	}
	entry.count++
	return true
}

// TrackFailure counts a failed attempt in a 1-hour window and returns the
// cumulative count for the current window.
func (l *RateLimiter) TrackFailure(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	entry, ok := l.failures[key]
	if !ok || now.After(entry.resetAt) {
		l.failures[key] = &windowEntry{count: 1, resetAt: now.Add(failureWindow)}
		return 1
	}
	entry.count++
	return entry.count
}

// IsLockedOut reports whether key has accumulated 10+ failures in the active
// window. A stale entry is deleted and the lockout clears.
func (l *RateLimiter) IsLockedOut(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.failures[key]
	if !ok {
		return false
	}
	if l.clock.Now().After(entry.resetAt) {
		delete(l.failures, key)
		return false
	}
	return entry.count >= lockoutThreshold
}

// HashIP produces a short, deterministic fingerprint of an IP for abuse
// clustering. Not cryptographic; collisions are acceptable.
func HashIP(ip string) string {
	var h int32
	for i := 0; i < len(ip); i++ {
		h = h*31 + int32(ip[i])
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return "ip_" + strconv.FormatInt(v, 36)
}

// ThrottleDecision is the guard's advisory verdict on a reward request.
// Allowed=false only when an unresolved high/critical flag exists; otherwise
// the multiplier dampens the payout within [0.1, 1.0].
type ThrottleDecision struct {
	Allowed    bool    `json:"allowed"`
	Multiplier float64 `json:"multiplier"`
	Reason     string  `json:"reason,omitempty"`
}

type GuardService struct {
	DB *gorm.DB
}

func NewGuardService(db *gorm.DB) *GuardService {
	return &GuardService{DB: db}
}

// hasBlockingFlag reports whether any unresolved flag is severe enough to
// deny reward issuance outright.
func hasBlockingFlag(flags []models.AbuseFlag) bool {
	for _, f := range flags {
		if f.Severity == models.SeverityHigh || f.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// throttleMultiplier composes the dampening factors: redemption velocity
// halves the payout, IP account clustering quarters it, a small number of
// open flags shaves it by a quarter. The result is floored at 0.1.
func throttleMultiplier(recentRedemptions int64, ipAccountCount, openFlags int) float64 {
	m := 1.0
	if recentRedemptions >= 5 {
		m *= 0.5
	}
	if ipAccountCount > 3 {
		m *= 0.25
	}
	if openFlags > 0 && openFlags < 3 {
		m *= 0.75
	}
	if m < 0.1 {
		m = 0.1
	}
	return m
}

// CheckAbuseThrottling applies the composite throttling policy:
// hard-deny on unresolved high/critical flags, then velocity, IP-cluster and
// open-flag penalties, floored at 0.1.
func (s *GuardService) CheckAbuseThrottling(userID, ipHash string) (ThrottleDecision, error) {
	var flags []models.AbuseFlag
	if err := s.DB.Where("user_id = ? AND resolved = ?", userID, false).
		Limit(10).
		Find(&flags).Error; err != nil {
		return ThrottleDecision{}, err
	}

	if hasBlockingFlag(flags) {
		return ThrottleDecision{Allowed: false, Multiplier: 0, Reason: "Account flagged for review"}, nil
	}

	tenMinAgo := time.Now().UTC().Add(-10 * time.Minute)
	var recentCount int64
	if err := s.DB.Model(&models.Redemption{}).
		Where("user_id = ? AND redeemed_at > ?", userID, tenMinAgo).
		Count(&recentCount).Error; err != nil {
		return ThrottleDecision{}, err
	}

	// Multi-account clustering: 4+ distinct users redeeming from this IP in 24h
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	var ipRedemptions []models.Redemption
	if err := s.DB.Where("ip_hash = ? AND redeemed_at > ?", ipHash, dayAgo).
		Order("redeemed_at DESC").
		Limit(50).
		Find(&ipRedemptions).Error; err != nil {
		return ThrottleDecision{}, err
	}
	uniqueUsers := make(map[string]struct{})
	for _, r := range ipRedemptions {
		uniqueUsers[r.UserID] = struct{}{}
	}
	if len(uniqueUsers) > 3 {
		s.CreateFlag(userID, models.FlagMultiAccountIP, models.SeverityMedium, map[string]interface{}{
			"ipHash":       ipHash,
			"accountCount": len(uniqueUsers),
		})
	}

	multiplier := throttleMultiplier(recentCount, len(uniqueUsers), len(flags))
	return ThrottleDecision{Allowed: true, Multiplier: multiplier}, nil
}

// CreateFlag records an abuse flag. Flag creation is advisory bookkeeping:
// failures are logged, never propagated.
func (s *GuardService) CreateFlag(userID string, flagType models.FlagType, severity models.FlagSeverity, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	flag := models.AbuseFlag{
		UserID:   userID,
		FlagType: flagType,
		Severity: severity,
		Details:  string(payload),
	}
	if err := s.DB.Create(&flag).Error; err != nil {
		log.Printf("[Guard] Failed to create %s flag for %s: %v", flagType, userID, err)
	}
}
