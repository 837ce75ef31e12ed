package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobletter/internal/lock"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/poller"
)

// Store is the slice of persistence the scheduler needs.
type Store interface {
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
	GetUser(ctx context.Context, userID int64) (model.UserProfile, error)
	GetScheduleState(ctx context.Context, userID int64) (model.ScheduleState, error)
	RecordFired(ctx context.Context, userID int64, date string, at time.Time) error
	RecordFailure(ctx context.Context, userID int64, reason string) error
}

// Runner executes one digest cycle for a user.
type Runner interface {
	Poll(ctx context.Context, profile model.UserProfile) (poller.Outcome, error)
}

// Scheduler owns the periodic tick: it decides who is Due and runs their
// cycles concurrently, never two at once for the same user.
type Scheduler struct {
	store         Store
	runner        Runner
	locker        lock.Locker
	interval      time.Duration
	maxConcurrent int
	cycleTimeout  time.Duration
	now           func() time.Time
	logger        *slog.Logger

	// unrecorded holds local fire dates that were delivered but could not
	// be written to the store. They block a second run until written.
	mu         sync.Mutex
	unrecorded map[int64]string
}

// NewScheduler creates a scheduler that ticks every interval.
func NewScheduler(
	store Store,
	runner Runner,
	locker lock.Locker,
	interval time.Duration,
	maxConcurrent int,
	cycleTimeout time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		store:         store,
		runner:        runner,
		locker:        locker,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		cycleTimeout:  cycleTimeout,
		now:           time.Now,
		logger:        logger,
		unrecorded:    make(map[int64]string),
	}
}

// Run runs one immediate tick, then ticks on the configured interval until
// ctx is cancelled. Overlapping ticks are skipped, not queued.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String(), "max_concurrent", s.maxConcurrent)

	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	tick := func() {
		if err := s.Tick(ctx, s.now()); err != nil {
			s.logger.Error("tick failed", "error", err)
		}
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), tick); err != nil {
		return fmt.Errorf("scheduling tick: %w", err)
	}

	tick()
	c.Start()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// Tick runs a cycle for every user that is Due at now. One user's failure
// never stops the others; the returned error only reports a failure to list
// users.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	due := 0
	for _, u := range users {
		if gctx.Err() != nil {
			break
		}
		st, err := s.store.GetScheduleState(gctx, u.UserID)
		if err != nil {
			s.logger.Error("loading schedule state", "user", u.UserID, "error", err)
			continue
		}
		if Evaluate(u, st, now) != Due {
			continue
		}
		due++
		g.Go(func() error {
			if err := s.runLocked(gctx, u, now); err != nil && !errors.Is(err, lock.ErrHeld) {
				s.logger.Error("cycle failed", "user", u.UserID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.Debug("tick complete", "users", len(users), "due", due)
	return nil
}

// Trigger runs a cycle for userID right now, ignoring the daily date check.
// It still records the fire so the automatic run for today is suppressed. A
// cycle already running for the user yields model.ErrCycleInFlight.
func (s *Scheduler) Trigger(ctx context.Context, userID int64) (poller.Outcome, error) {
	profile, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return poller.Outcome{}, err
	}
	if !profile.HasPreferences() {
		return poller.Outcome{}, model.ErrNoPreferences
	}
	var out poller.Outcome
	err = s.withLock(ctx, userID, func(ctx context.Context) error {
		var cycleErr error
		out, cycleErr = s.cycle(ctx, profile, s.now())
		return cycleErr
	})
	if errors.Is(err, lock.ErrHeld) {
		return out, model.ErrCycleInFlight
	}
	return out, err
}

// runLocked re-reads ScheduleState under the user's lock so a cycle that
// finished between evaluation and acquisition is not repeated.
func (s *Scheduler) runLocked(ctx context.Context, profile model.UserProfile, now time.Time) error {
	return s.withLock(ctx, profile.UserID, func(ctx context.Context) error {
		st, err := s.store.GetScheduleState(ctx, profile.UserID)
		if err != nil {
			return err
		}
		if Evaluate(profile, st, now) != Due {
			return nil
		}
		if date, ok := s.pendingFire(profile.UserID); ok && date == LocalDate(profile, now) {
			// Delivered earlier today; only the record is missing.
			return s.recordFired(ctx, profile.UserID, date, now)
		}
		_, err = s.cycle(ctx, profile, now)
		return err
	})
}

func (s *Scheduler) withLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	unlock, err := s.locker.TryLock(ctx, "user:"+strconv.FormatInt(userID, 10))
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

func (s *Scheduler) cycle(ctx context.Context, profile model.UserProfile, now time.Time) (poller.Outcome, error) {
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	out, err := s.runner.Poll(ctx, profile)
	// Bookkeeping must land even if the cycle used up its deadline.
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err != nil {
		if recErr := s.store.RecordFailure(bookCtx, profile.UserID, err.Error()); recErr != nil {
			s.logger.Error("recording cycle failure", "user", profile.UserID, "error", recErr)
		}
		return out, err
	}
	if err := s.recordFired(bookCtx, profile.UserID, LocalDate(profile, now), now); err != nil {
		// The digest is out. Failing the cycle here would send it again.
		s.logger.Error("digest delivered but fire not recorded", "user", profile.UserID, "error", err)
	}
	return out, nil
}

// recordFired writes the fire date. On failure the date is kept in memory
// so later ticks today retry the write instead of the cycle.
func (s *Scheduler) recordFired(ctx context.Context, userID int64, date string, at time.Time) error {
	err := s.store.RecordFired(ctx, userID, date, at)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.unrecorded[userID] = date
		return fmt.Errorf("recording fire for user %d: %w", userID, err)
	}
	delete(s.unrecorded, userID)
	return nil
}

func (s *Scheduler) pendingFire(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date, ok := s.unrecorded[userID]
	return date, ok
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
