package jobs

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/carlink/backend/internal/services"
)

// ExpirySweeper periodically cancels confirmed bookings whose pick-up
// deadline has elapsed. Runs are non-overlapping; a tick that fires while the
// previous sweep is still running is skipped.
type ExpirySweeper struct {
	bookings *services.BookingService
	cron     *cron.Cron
	schedule string
}

func NewExpirySweeper(bookings *services.BookingService) *ExpirySweeper {
	return &ExpirySweeper{
		bookings: bookings,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		schedule: "* * * * *",
	}
}

// Start registers the sweep and starts the scheduler.
func (s *ExpirySweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("[SWEEPER] Expiry sweeper started")
	return nil
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *ExpirySweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[SWEEPER] Expiry sweeper stopped")
}

// Sweep cancels every expired booking it can find. Each booking is handled
// independently; one failure does not abort the rest of the pass.
func (s *ExpirySweeper) Sweep() {
	ids, err := s.bookings.ExpiredBookingIDs()
	if err != nil {
		log.Printf("[SWEEPER] Scan failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	cancelled := 0
	for _, id := range ids {
		if err := s.bookings.CancelExpired(id); err != nil {
			log.Printf("[SWEEPER] Cancel failed booking=%d: %v", id, err)
			continue
		}
		cancelled++
	}
	log.Printf("[SWEEPER] Swept %d expired bookings, cancelled %d", len(ids), cancelled)
}
