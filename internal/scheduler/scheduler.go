package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// DefaultTick is how often the renderer checks whether it is due.
const DefaultTick = 10 * time.Second

// Ticker is polled on every scheduler tick.
type Ticker interface {
	Tick(ctx context.Context) bool
}

// Scheduler polls the widget renderer so it can follow its own timeline and
// pick up refresh requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ticker    Ticker
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(ticker Ticker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ticker:    ticker,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the tick job and starts the underlying scheduler. The first
// tick runs immediately.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	_, err := s.scheduler.Every(seconds).Seconds().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if s.ticker.Tick(ctx) {
			log.Debug().Msg("scheduler: widget reloaded")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
