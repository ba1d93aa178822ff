package workers

import (
	"context"
	"log"
	"time"

	"bix-reward-engine/models"

	"gorm.io/gorm"
)

const staleSessionAge = 30 * time.Minute

// RunHousekeeping periodically expires abandoned quiz sessions and
// deactivates code windows past their validity. Callers are expected to run
// it in its own goroutine; it exits when ctx is cancelled.
func RunHousekeeping(ctx context.Context, db *gorm.DB, interval time.Duration) {
	log.Println("Starting engine housekeeping loop...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Housekeeping loop stopped.")
			return
		case <-ticker.C:
			expireStaleSessions(db)
			deactivateExpiredWindows(db)
		}
	}
}

func expireStaleSessions(db *gorm.DB) {
	cutoff := time.Now().Add(-staleSessionAge)

	res := db.Model(&models.QuizSession{}).
		Where("status = ? AND started_at < ?", models.QuizActive, cutoff).
		Update("status", models.QuizExpired)
	if res.Error != nil {
		log.Printf("❌ Failed to expire stale quiz sessions: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Expired %d stale quiz session(s).", res.RowsAffected)
	}
}

func deactivateExpiredWindows(db *gorm.DB) {
	res := db.Model(&models.CodeWindow{}).
		Where("is_active = ? AND valid_until < ?", true, time.Now()).
		Update("is_active", false)
	if res.Error != nil {
		log.Printf("❌ Failed to deactivate expired code windows: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Deactivated %d expired code window(s).", res.RowsAffected)
	}
}
