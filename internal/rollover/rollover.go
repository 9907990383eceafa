package rollover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/bucket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule fires at the top of every hour
const DefaultSchedule = "0 * * * *"

// parser accepts standard 5-field expressions, an optional seconds field and
// descriptors such as @hourly
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a rollover cron expression
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Dashboard is what the scheduler drives; satisfied by *dashboard.Controller
type Dashboard interface {
	Rollover(now time.Time) error
	ResetCharts() error
}

// Scheduler opens the new hour bucket on the timing charts at every tick and
// resets all charts on the first tick of a new day
type Scheduler struct {
	dashboard Dashboard
	spec      string
	loc       *time.Location
	cron      *cron.Cron

	mu      sync.Mutex
	lastDay time.Time

	logger zerolog.Logger
}

// NewScheduler creates a scheduler firing on spec in loc
func NewScheduler(d Dashboard, spec string, loc *time.Location, logger zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := ParseSchedule(spec); err != nil {
		return nil, err
	}

	return &Scheduler{
		dashboard: d,
		spec:      spec,
		loc:       loc,
		cron:      cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		lastDay:   bucket.StartOfDay(time.Now().In(loc)),
		logger:    logger.With().Str("component", "rollover").Logger(),
	}, nil
}

// Start runs the schedule until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.Tick(time.Now()) })
	if err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.spec).
		Str("timezone", s.loc.String()).
		Time("next", s.cron.Entry(id).Next).
		Msg("rollover scheduler started")

	<-ctx.Done()

	// wait for a running tick to finish
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("rollover scheduler stopped")
	return nil
}

// Tick performs one rollover at now. A failed daily reset is retried on the
// next tick.
func (s *Scheduler) Tick(now time.Time) {
	local := now.In(s.loc)
	day := bucket.StartOfDay(local)

	s.mu.Lock()
	newDay := day.After(s.lastDay)
	s.mu.Unlock()

	if newDay {
		if err := s.dashboard.ResetCharts(); err != nil {
			s.logger.Error().Err(err).Msg("daily chart reset failed")
			return
		}

		s.mu.Lock()
		if day.After(s.lastDay) {
			s.lastDay = day
		}
		s.mu.Unlock()

		s.logger.Info().Time("day", day).Msg("charts reset for new day")
		return
	}

	if err := s.dashboard.Rollover(local); err != nil {
		s.logger.Error().Err(err).Msg("hourly rollover failed")
		return
	}
	s.logger.Debug().Str("bucket", bucket.HourLabel(local)).Msg("hour rolled over")
}
