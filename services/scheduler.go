// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartCommissionScheduler sweeps due referral commissions on a fixed cadence
// so referrers get paid even when they never trigger an inline sweep.
func (s *PendingService) StartCommissionScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			log.Println("[Scheduler] Sweeping due referral commissions")
			s.SweepDueCommissions()
		}),
	)
}
