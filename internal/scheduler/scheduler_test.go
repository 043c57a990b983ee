package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/pkg/models"
)

type fakeUsers struct {
	all  []models.User
	demo []models.User
}

func (f *fakeUsers) All(_ context.Context) ([]models.User, error)       { return f.all, nil }
func (f *fakeUsers) DemoUsers(_ context.Context) ([]models.User, error) { return f.demo, nil }

type fakeCards struct {
	due      map[int64]int
	countErr map[int64]error
	resets   []int64
}

func (f *fakeCards) CountCards(_ context.Context, _, userID int64, _ time.Time) (database.CardCounts, error) {
	if err := f.countErr[userID]; err != nil {
		return database.CardCounts{}, err
	}
	return database.CardCounts{Due: f.due[userID]}, nil
}

func (f *fakeCards) ResetSchedules(_ context.Context, userID int64) error {
	f.resets = append(f.resets, userID)
	return nil
}

type fakeSettings struct{ resets []int64 }

func (f *fakeSettings) ResetToDefault(_ context.Context, userID int64) error {
	f.resets = append(f.resets, userID)
	return nil
}

type fakeLogs struct {
	purges   []int64
	purgeErr error
}

func (f *fakeLogs) DeleteByUser(_ context.Context, userID int64) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purges = append(f.purges, userID)
	return nil
}

type fakeNotifier struct {
	sent    map[int64]int
	sendErr error
}

func (f *fakeNotifier) SendDueReminder(user models.User, dueCount int) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.sent == nil {
		f.sent = make(map[int64]int)
	}
	f.sent[user.ID] = dueCount
	return nil
}

type fakeInvalidator struct{ dropped []int64 }

func (f *fakeInvalidator) InvalidateParameters(userID int64) {
	f.dropped = append(f.dropped, userID)
}

type schedulerFixture struct {
	users       *fakeUsers
	cards       *fakeCards
	settings    *fakeSettings
	logs        *fakeLogs
	notifier    *fakeNotifier
	invalidator *fakeInvalidator
	s           *Scheduler
}

func newSchedulerFixture(at time.Time) *schedulerFixture {
	f := &schedulerFixture{
		users:       &fakeUsers{},
		cards:       &fakeCards{due: make(map[int64]int), countErr: make(map[int64]error)},
		settings:    &fakeSettings{},
		logs:        &fakeLogs{},
		notifier:    &fakeNotifier{},
		invalidator: &fakeInvalidator{},
	}
	f.s = New(Config{
		Users:       f.users,
		Cards:       f.cards,
		Settings:    f.settings,
		Logs:        f.logs,
		Notifier:    f.notifier,
		Invalidator: f.invalidator,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.s.now = func() time.Time { return at }
	return f
}

func midday() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestRemindersGoToUsersWithDueCards(t *testing.T) {
	f := newSchedulerFixture(midday())
	f.users.all = []models.User{{ID: 1}, {ID: 2}, {ID: 3}}
	f.cards.due[1] = 4
	f.cards.due[3] = 1

	f.s.checkAndSendReminders()

	if len(f.notifier.sent) != 2 {
		t.Fatalf("sent %d reminders, want 2", len(f.notifier.sent))
	}
	if f.notifier.sent[1] != 4 || f.notifier.sent[3] != 1 {
		t.Fatalf("reminder counts = %v", f.notifier.sent)
	}
	if _, ok := f.notifier.sent[2]; ok {
		t.Fatal("user 2 has nothing due but was reminded")
	}
}

func TestRemindersRespectQuietHours(t *testing.T) {
	night := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(night)
	f.users.all = []models.User{{ID: 1}}
	f.cards.due[1] = 4

	f.s.checkAndSendReminders()

	if len(f.notifier.sent) != 0 {
		t.Fatalf("sent %v during quiet hours", f.notifier.sent)
	}
}

func TestReminderWindowFromEnvironment(t *testing.T) {
	t.Setenv("NOTIFICATION_START_HOUR", "0")
	t.Setenv("NOTIFICATION_END_HOUR", "23")

	night := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(night)
	f.users.all = []models.User{{ID: 1}}
	f.cards.due[1] = 2

	f.s.checkAndSendReminders()

	if f.notifier.sent[1] != 2 {
		t.Fatalf("reminder not sent with widened window, sent = %v", f.notifier.sent)
	}
}

func TestReminderWindowIgnoresBadEnvironment(t *testing.T) {
	t.Setenv("NOTIFICATION_START_HOUR", "28")
	t.Setenv("NOTIFICATION_END_HOUR", "late")

	start, end := reminderWindow()
	if start != DefaultReminderStartHour || end != DefaultReminderEndHour {
		t.Fatalf("window = %d..%d, want defaults", start, end)
	}
}

func TestReminderSweepSurvivesPerUserErrors(t *testing.T) {
	f := newSchedulerFixture(midday())
	f.users.all = []models.User{{ID: 1}, {ID: 2}}
	f.cards.countErr[1] = errors.New("connection reset")
	f.cards.due[2] = 3

	f.s.checkAndSendReminders()

	if f.notifier.sent[2] != 3 {
		t.Fatalf("healthy user missed their reminder, sent = %v", f.notifier.sent)
	}
}

func TestDemoResetClearsEverything(t *testing.T) {
	f := newSchedulerFixture(midday())
	f.users.demo = []models.User{{ID: 7, IsDemo: true}, {ID: 9, IsDemo: true}}

	f.s.resetDemoUsers()

	want := []int64{7, 9}
	for name, got := range map[string][]int64{
		"log purges":      f.logs.purges,
		"schedule resets": f.cards.resets,
		"settings resets": f.settings.resets,
		"cache drops":     f.invalidator.dropped,
	} {
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestDemoResetContinuesPastFailures(t *testing.T) {
	f := newSchedulerFixture(midday())
	f.users.demo = []models.User{{ID: 7, IsDemo: true}}
	f.logs.purgeErr = errors.New("disk full")

	f.s.resetDemoUsers()

	if len(f.cards.resets) != 1 || len(f.settings.resets) != 1 {
		t.Fatal("a failed history purge stopped the rest of the reset")
	}
	if len(f.invalidator.dropped) != 1 {
		t.Fatal("cached parameters were not dropped")
	}
}

func TestRunManualCheck(t *testing.T) {
	f := newSchedulerFixture(midday())
	f.cards.due[5] = 8

	if err := f.s.RunManualCheck(context.Background(), models.User{ID: 5}); err != nil {
		t.Fatalf("RunManualCheck: %v", err)
	}
	if f.notifier.sent[5] != 8 {
		t.Fatalf("manual check sent %v", f.notifier.sent)
	}
}

func TestRunManualCheckNothingDue(t *testing.T) {
	f := newSchedulerFixture(midday())

	if err := f.s.RunManualCheck(context.Background(), models.User{ID: 5}); err != nil {
		t.Fatalf("RunManualCheck: %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("reminder sent with nothing due: %v", f.notifier.sent)
	}
}
