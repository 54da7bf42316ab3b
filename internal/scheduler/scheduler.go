package scheduler

import (
	"log"
	"time"

	"sewain/internal/services"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the expiry sweep on a cron schedule so rented orders move
// to return_now without a connected client driving the transition.
type Scheduler struct {
	cron   *cron.Cron
	orders *services.OrderService
}

// New creates a scheduler and registers the expiry sweep with the given
// cron expression (six fields, seconds first; the default is every minute).
func New(orders *services.OrderService, sweepSpec string) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:   c,
		orders: orders,
	}

	if _, err := c.AddFunc(sweepSpec, s.runSweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	log.Println("Starting expiry sweep scheduler...")
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler, waiting for a running sweep.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Expiry sweep scheduler stopped")
}

// runSweep executes one sweep with panic recovery so a bad run cannot take
// the scheduler down.
func (s *Scheduler) runSweep() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Expiry sweep panicked: %v", r)
		}
	}()

	swept, err := s.orders.SweepExpiredRentals(time.Now().UTC())
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("Expiry sweep moved %d order(s) to return_now", swept)
	}
}
