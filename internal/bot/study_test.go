package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

func TestStudyFlowCommitsReview(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	card := f.seedDueCard(t, user, deck, "hola", "hello")

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	out := f.rec.joined()
	if !strings.Contains(out, "1 cards queued") {
		t.Fatalf("queue summary missing:\n%s", out)
	}
	if !strings.Contains(out, "Card 1 of 1") || !strings.Contains(out, "hola") {
		t.Fatalf("card front not shown:\n%s", out)
	}

	f.rec.reset()
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("reveal_%d", card.ID)))
	if !strings.Contains(f.rec.joined(), "hello") {
		t.Fatalf("answer not revealed:\n%s", f.rec.joined())
	}
	edits := f.rec.byMethod("editMessageText")
	if len(edits) == 0 {
		t.Fatal("reveal did not edit the card message")
	}
	markup := edits[0].params.Get("reply_markup")
	for _, rating := range []models.Rating{models.RatingAgain, models.RatingHard, models.RatingGood, models.RatingEasy} {
		if !strings.Contains(markup, fmt.Sprintf("rate_%d_%d", rating, card.ID)) {
			t.Errorf("rating button %s missing from markup %s", rating, markup)
		}
	}

	f.rec.reset()
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("rate_%d_%d", models.RatingGood, card.ID)))
	out = f.rec.joined()
	if !strings.Contains(out, "Good · next in") {
		t.Fatalf("verdict missing:\n%s", out)
	}
	if !strings.Contains(out, "Session complete! You reviewed 1 cards") {
		t.Fatalf("completion message missing:\n%s", out)
	}

	stored, err := f.store.Card(context.Background(), card.ID, user.ID)
	if err != nil {
		t.Fatalf("card vanished: %v", err)
	}
	if stored.Due == nil || !stored.Due.After(t0) {
		t.Errorf("card not rescheduled: due = %v", stored.Due)
	}
	if stored.Reps != 4 {
		t.Errorf("reps = %d, want 4", stored.Reps)
	}
	if len(f.store.entries) != 1 || f.store.entries[0].Rating != models.RatingGood {
		t.Errorf("review log entries = %+v, want one Good entry", f.store.entries)
	}
}

func TestStudyStaleButtonIsRejected(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	card := f.seedDueCard(t, user, deck, "hola", "hello")

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("reveal_%d", card.ID)))
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("rate_%d_%d", models.RatingGood, card.ID)))

	// A second tap on the already answered card must not double-charge the
	// quota.
	f.rec.reset()
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("rate_%d_%d", models.RatingGood, card.ID)))
	if !strings.Contains(f.rec.joined(), "no longer current") {
		t.Fatalf("stale tap was not rejected:\n%s", f.rec.joined())
	}
	if len(f.store.entries) != 1 {
		t.Errorf("review was recorded twice: %d entries", len(f.store.entries))
	}
}

func TestStudyDailyLimitReached(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	f.seedDueCard(t, user, deck, "hola", "hello")

	ctx := context.Background()
	settings, err := f.settings.Settings(ctx, user.ID)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	settings.NewPerDay = 0
	settings.MaxReviewsPerDay = 0
	if err := f.settings.Upsert(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	if !strings.Contains(f.rec.joined(), "reached today's limits") {
		t.Fatalf("limit message missing:\n%s", f.rec.joined())
	}
	if _, ok := f.bot.sessions[100]; ok {
		t.Error("a session was opened despite the limit")
	}
}

func TestStudyEmptyDeckAndAllCaughtUp(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	if !strings.Contains(f.rec.joined(), "no cards here yet") {
		t.Fatalf("empty deck message missing:\n%s", f.rec.joined())
	}

	// One card scheduled for tomorrow: the deck is non-empty but nothing is
	// due, which deserves a different message.
	due := t0.Add(24 * time.Hour)
	last := t0.Add(-24 * time.Hour)
	card := &models.Card{
		UserID: user.ID, DeckID: deck.ID, Front: "hola", Back: "hello",
		State: models.StateReview, Due: &due, Stability: 5, Difficulty: 5,
		ScheduledDays: 2, Reps: 1, LastReview: &last,
	}
	if err := f.store.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("seed card: %v", err)
	}

	f.rec.reset()
	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	if !strings.Contains(f.rec.joined(), "All 1 cards are caught up") {
		t.Fatalf("caught-up message missing:\n%s", f.rec.joined())
	}
}

func TestStudyStopSavesProgress(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	f.seedDueCard(t, user, deck, "uno", "one")
	f.seedDueCard(t, user, deck, "dos", "two")

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))

	f.bot.mu.Lock()
	session := f.bot.sessions[100]
	if session == nil {
		f.bot.mu.Unlock()
		t.Fatal("no session after /study")
	}
	item, _ := session.current()
	f.bot.mu.Unlock()

	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("reveal_%d", item.Card.ID)))
	f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("rate_%d_%d", models.RatingGood, item.Card.ID)))

	f.rec.reset()
	f.bot.handleUpdate(callbackUpdate(100, 100, "study_stop"))
	if !strings.Contains(f.rec.joined(), "Session stopped after 1 cards") {
		t.Fatalf("stop message missing:\n%s", f.rec.joined())
	}
	if _, ok := f.bot.sessions[100]; ok {
		t.Error("session survived the stop")
	}
	if len(f.store.entries) != 1 {
		t.Errorf("committed reviews = %d, want the one made before stopping", len(f.store.entries))
	}
}

func TestStudyWithoutSettingsProfile(t *testing.T) {
	f := newBotFixture(t)
	// The account exists but its settings row is gone, so scheduling must
	// refuse rather than guess.
	user := &models.User{TelegramID: 100, Username: "tester", FirstName: "Test"}
	if err := f.store.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	deck := f.seedDeck(t, user, "Spanish")
	f.seedDueCard(t, user, deck, "hola", "hello")

	f.bot.handleUpdate(commandUpdate(100, 100, "/study"))
	if !strings.Contains(f.rec.joined(), "scheduling profile is missing") {
		t.Fatalf("profile message missing:\n%s", f.rec.joined())
	}
}

func TestQuizFlow(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	f.seedNewCard(t, user, deck, "uno", "one")
	f.seedNewCard(t, user, deck, "dos", "two")
	f.seedNewCard(t, user, deck, "tres", "three")

	f.bot.handleUpdate(commandUpdate(100, 100, "/quiz"))
	if !strings.Contains(f.rec.joined(), "Question 1 of 3") {
		t.Fatalf("first question missing:\n%s", f.rec.joined())
	}

	for i := 0; i < 3; i++ {
		f.bot.mu.Lock()
		session := f.bot.quizSessions[100]
		if session == nil {
			f.bot.mu.Unlock()
			t.Fatalf("quiz session missing before question %d", i+1)
		}
		q := session.questions[session.index]
		f.bot.mu.Unlock()

		f.bot.handleUpdate(callbackUpdate(100, 100, fmt.Sprintf("answer_%d_%d", i, q.CorrectIndex)))
	}

	out := f.rec.joined()
	if !strings.Contains(out, "Correct!") {
		t.Fatalf("no correct verdict in output:\n%s", out)
	}
	if !strings.Contains(out, "Quiz finished: 3 of 3 correct!") {
		t.Fatalf("final score missing:\n%s", out)
	}
	if len(f.store.entries) != 0 {
		t.Errorf("quiz answers touched the review log: %d entries", len(f.store.entries))
	}

	f.rec.reset()
	f.bot.handleUpdate(callbackUpdate(100, 100, "answer_2_0"))
	if !strings.Contains(f.rec.joined(), "no longer current") {
		t.Fatalf("late answer was not rejected:\n%s", f.rec.joined())
	}
}

func TestQuizNeedsAtLeastTwoCards(t *testing.T) {
	f := newBotFixture(t)
	user := f.seedUser(t, 100, false)
	deck := f.seedDeck(t, user, "Spanish")
	f.seedNewCard(t, user, deck, "uno", "one")

	f.bot.handleUpdate(commandUpdate(100, 100, "/quiz"))
	if !strings.Contains(f.rec.joined(), "at least two cards") {
		t.Fatalf("too-few-cards message missing:\n%s", f.rec.joined())
	}
}

func TestIntervalLabel(t *testing.T) {
	cases := []struct {
		name string
		due  *time.Time
		want string
	}{
		{"unknown", nil, "?"},
		{"seconds", ptrTime(t0.Add(30 * time.Second)), "<1m"},
		{"minutes", ptrTime(t0.Add(5 * time.Minute)), "5m"},
		{"hours", ptrTime(t0.Add(90 * time.Minute)), "2h"},
		{"days", ptrTime(t0.Add(3 * 24 * time.Hour)), "3d"},
		{"months", ptrTime(t0.Add(61 * 24 * time.Hour)), "2.0mo"},
		{"years", ptrTime(t0.Add(2 * 365 * 24 * time.Hour)), "2.0y"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := intervalLabel(t0, tc.due); got != tc.want {
				t.Errorf("intervalLabel = %q, want %q", got, tc.want)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestTruncateLabel(t *testing.T) {
	if got := truncateLabel("short", 10); got != "short" {
		t.Errorf("short label changed: %q", got)
	}
	got := truncateLabel("a very long answer that cannot fit on a button at all", 20)
	if len([]rune(got)) != 20 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncated label = %q", got)
	}
}
