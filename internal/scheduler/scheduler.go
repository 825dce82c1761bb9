// Package scheduler runs the periodic maintenance jobs of the booking
// service: releasing expired holds and pruning duplicate back-references.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer releases reservations whose hold has lapsed.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// Pruner removes duplicate back-reference rows.
type Pruner interface {
	PruneDuplicates(ctx context.Context) (int64, error)
}

// Config controls job cadence.  A zero interval disables that job.
type Config struct {
	SweepInterval time.Duration
	SweepBatch    int
	PruneInterval time.Duration
	JobTimeout    time.Duration
}

// maxBatches caps one sweep run so a persistent failure cannot spin.
const maxBatches = 20

// Scheduler wraps a gocron scheduler with the booking jobs registered.
type Scheduler struct {
	s gocron.Scheduler
}

// New registers the jobs enabled by cfg.  Jobs never overlap themselves: a
// run still in progress when the next is due pushes that run back.
func New(cfg Config, expirer Expirer, pruner Pruner) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.SweepInterval > 0 && expirer != nil {
		_, err = s.NewJob(
			gocron.DurationJob(cfg.SweepInterval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
				defer cancel()
				SweepOnce(ctx, expirer, cfg.SweepBatch)
			}),
			gocron.WithName("expire-stale-reservations"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}
	if cfg.PruneInterval > 0 && pruner != nil {
		_, err = s.NewJob(
			gocron.DurationJob(cfg.PruneInterval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
				defer cancel()
				if _, err := pruner.PruneDuplicates(ctx); err != nil {
					log.Printf("sweep: prune back-references: %v", err)
				}
			}),
			gocron.WithName("prune-backrefs"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}
	return &Scheduler{s: s}, nil
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int { return len(s.s.Jobs()) }

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.s.Start()
	log.Printf("sweep: scheduler started with %d job(s)", s.Jobs())
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }

// SweepOnce releases expired reservations in batches of size batch until a
// batch comes back short, an error occurs or ctx ends.  It returns the
// total released.
func SweepOnce(ctx context.Context, expirer Expirer, batch int) int {
	if batch <= 0 {
		batch = 100
	}
	total := 0
	for i := 0; i < maxBatches && ctx.Err() == nil; i++ {
		n, err := expirer.ExpireStale(ctx, batch)
		total += n
		if err != nil {
			log.Printf("sweep: expire stale reservations: %v", err)
			break
		}
		if n < batch {
			break
		}
	}
	if total > 0 {
		log.Printf("sweep: released %d expired reservation(s)", total)
	}
	return total
}
