// Package scheduler runs the background jobs: hourly due-card reminders and
// the nightly demo account reset.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/pkg/models"
)

// Reminder quiet hours: outside this UTC window no reminders go out.
const (
	DefaultReminderStartHour = 8
	DefaultReminderEndHour   = 21
)

// demoResetAt is when demo accounts are wiped back to their seed state.
const demoResetAt = "03:00"

// jobTimeout bounds each background sweep.
const jobTimeout = 5 * time.Minute

// Notifier delivers a due-cards reminder to one user.
type Notifier interface {
	SendDueReminder(user models.User, dueCount int) error
}

// UserSource lists the accounts the jobs sweep over.
type UserSource interface {
	All(ctx context.Context) ([]models.User, error)
	DemoUsers(ctx context.Context) ([]models.User, error)
}

// CardSweeper counts due cards and clears schedules for the reset job.
type CardSweeper interface {
	CountCards(ctx context.Context, deckID, userID int64, asOf time.Time) (database.CardCounts, error)
	ResetSchedules(ctx context.Context, userID int64) error
}

// SettingsResetter restores a user's settings row to the defaults.
type SettingsResetter interface {
	ResetToDefault(ctx context.Context, userID int64) error
}

// LogPurger drops a user's review history.
type LogPurger interface {
	DeleteByUser(ctx context.Context, userID int64) error
}

// Invalidator drops cached scheduling parameters after a reset.
type Invalidator interface {
	InvalidateParameters(userID int64)
}

// Config wires the jobs' collaborators. Logger may be nil.
type Config struct {
	Users       UserSource
	Cards       CardSweeper
	Settings    SettingsResetter
	Logs        LogPurger
	Notifier    Notifier
	Invalidator Invalidator
	Logger      *slog.Logger
}

// Scheduler manages the application's recurring jobs.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	users       UserSource
	cards       CardSweeper
	settings    SettingsResetter
	logs        LogPurger
	notifier    Notifier
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		users:       cfg.Users,
		cards:       cfg.Cards,
		settings:    cfg.Settings,
		logs:        cfg.Logs,
		notifier:    cfg.Notifier,
		invalidator: cfg.Invalidator,
		logger:      logger,
		now:         time.Now,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At(demoResetAt).Do(s.resetDemoUsers); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders pings every user who has cards waiting, unless the
// current hour falls outside the reminder window.
func (s *Scheduler) checkAndSendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := s.now()
	start, end := reminderWindow()
	if hour := now.Hour(); hour < start || hour > end {
		s.logger.Debug("outside reminder hours, skipping", "hour", hour, "start", start, "end", end)
		return
	}

	users, err := s.users.All(ctx)
	if err != nil {
		s.logger.Error("failed to list users for reminders", "error", err)
		return
	}
	for _, user := range users {
		counts, err := s.cards.CountCards(ctx, 0, user.ID, now)
		if err != nil {
			s.logger.Error("failed to count due cards", "user_id", user.ID, "error", err)
			continue
		}
		if counts.Due == 0 {
			continue
		}
		if err := s.notifier.SendDueReminder(user, counts.Due); err != nil {
			s.logger.Error("failed to send reminder", "user_id", user.ID, "error", err)
		}
	}
}

// resetDemoUsers wipes demo accounts nightly: review history, card
// schedules and settings go back to a clean slate.
func (s *Scheduler) resetDemoUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	users, err := s.users.DemoUsers(ctx)
	if err != nil {
		s.logger.Error("failed to list demo users", "error", err)
		return
	}
	for _, user := range users {
		if err := s.logs.DeleteByUser(ctx, user.ID); err != nil {
			s.logger.Error("failed to clear demo review history", "user_id", user.ID, "error", err)
		}
		if err := s.cards.ResetSchedules(ctx, user.ID); err != nil {
			s.logger.Error("failed to reset demo schedules", "user_id", user.ID, "error", err)
		}
		if err := s.settings.ResetToDefault(ctx, user.ID); err != nil {
			s.logger.Error("failed to reset demo settings", "user_id", user.ID, "error", err)
		}
		s.invalidator.InvalidateParameters(user.ID)
		s.logger.Info("demo account reset", "user_id", user.ID)
	}
}

// RunManualCheck sends a reminder to one user right away, ignoring the
// reminder window.
func (s *Scheduler) RunManualCheck(ctx context.Context, user models.User) error {
	counts, err := s.cards.CountCards(ctx, 0, user.ID, s.now())
	if err != nil {
		return err
	}
	if counts.Due == 0 {
		return nil
	}
	return s.notifier.SendDueReminder(user, counts.Due)
}

// reminderWindow reads the reminder hours, falling back to the defaults
// when the environment values are absent or unusable.
func reminderWindow() (int, int) {
	start := DefaultReminderStartHour
	end := DefaultReminderEndHour
	if v := os.Getenv("NOTIFICATION_START_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			start = h
		}
	}
	if v := os.Getenv("NOTIFICATION_END_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			end = h
		}
	}
	return start, end
}
