package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/velmostra/stagegate/internal/domain"
)

// Expirer is the single reclamation operation the sweep drives; the lazy
// per-read check goes through the same underlying transition, so the two
// mechanisms can race safely.
type Expirer interface {
	ExpirePendingReservations(ctx context.Context) ([]domain.Reservation, error)
}

// Sweeper periodically reclaims capacity held by abandoned reservations.
// It is owned by the caller: Run blocks until ctx is canceled.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
}

func New(expirer Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{expirer: expirer, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) error {
	// Sweep once at startup so capacity abandoned while the process was
	// down is reclaimed without waiting a full interval.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.expirer.ExpirePendingReservations(ctx)
	if err != nil {
		log.Printf("expire reservations error: %v", err)
		return
	}
	if len(expired) > 0 {
		log.Printf("expired %d reservations", len(expired))
	}
}
