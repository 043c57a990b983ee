package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/flashdeck/internal/quiz"
	"github.com/example/flashdeck/internal/study"
	"github.com/example/flashdeck/pkg/models"
)

// studySession walks one user through a built review queue. Sessions live
// only in memory; after a restart the user simply starts a new one.
type studySession struct {
	deckID   int64
	items    []study.QueueItem
	index    int
	revealed bool
	done     int
	progress study.Progress
	touched  time.Time
}

func (s *studySession) current() (study.QueueItem, bool) {
	if s.index >= len(s.items) {
		return study.QueueItem{}, false
	}
	return s.items[s.index], true
}

// quizSession tracks an in-flight practice round. Answers never touch the
// schedule or the daily counters.
type quizSession struct {
	questions []quiz.Question
	index     int
	correct   int
	touched   time.Time
}

func (b *Bot) putSession(userID int64, s *studySession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.touched = time.Now()
	b.sessions[userID] = s
}

func (b *Bot) dropSession(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if !ok {
		return 0
	}
	delete(b.sessions, userID)
	return s.done
}

// currentItem returns the card on display if it matches cardID. A stale or
// repeated button press fails the match.
func (b *Bot) currentItem(userID, cardID int64) (study.QueueItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if !ok || time.Since(s.touched) > b.cfg.SessionTTL {
		delete(b.sessions, userID)
		return study.QueueItem{}, false
	}
	item, ok := s.current()
	if !ok || item.Card.ID != cardID {
		return study.QueueItem{}, false
	}
	s.touched = time.Now()
	return item, true
}

// markRevealed flips the session to answer-side display for cardID.
func (b *Bot) markRevealed(userID, cardID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if !ok {
		return false
	}
	item, ok := s.current()
	if !ok || item.Card.ID != cardID {
		return false
	}
	s.revealed = true
	return true
}

// advancePast moves the session beyond cardID after its review was
// committed. It reports how many cards were rated, how many are left, and
// whether the session just finished.
func (b *Bot) advancePast(userID, cardID int64) (done, remaining int, finished bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if !ok {
		return 0, 0, true
	}
	if item, cur := s.current(); cur && item.Card.ID == cardID {
		s.index++
		s.revealed = false
		s.done++
	}
	if s.index >= len(s.items) {
		done = s.done
		delete(b.sessions, userID)
		return done, 0, true
	}
	return s.done, len(s.items) - s.index, false
}

// startStudy builds the review queue and opens a session, or explains why
// there is nothing to study right now.
func (b *Bot) startStudy(ctx context.Context, user *models.User, chatID, deckID int64) {
	res, err := b.svc.BuildQueue(ctx, user.ID, deckID)
	if err != nil {
		if errors.Is(err, study.ErrParametersUnavailable) {
			b.reply(chatID, "⚠️ Your scheduling profile is missing. Run /start to set it up.")
			return
		}
		b.logger.Error("failed to build queue", "user_id", user.ID, "deck_id", deckID, "error", err)
		b.reply(chatID, "❌ Could not build your review queue. Please try again later.")
		return
	}

	switch r := res.(type) {
	case study.DailyLimitReached:
		b.replyWithMenu(chatID, "🛑 You have reached today's limits.\n"+formatProgress(r.Progress)+"\nCome back tomorrow!")
	case study.EmptyDeck:
		b.replyWithMenu(chatID, "🗂 There are no cards here yet. Add some with /add or /import.")
	case study.AllCaughtUp:
		b.replyWithMenu(chatID, fmt.Sprintf("🎉 All %d cards are caught up. Nothing is due right now!", r.TotalCards))
	case study.Ready:
		b.putSession(user.TelegramID, &studySession{
			deckID:   deckID,
			items:    r.Cards,
			progress: r.Progress,
		})
		b.reply(chatID, fmt.Sprintf("📖 %d cards queued.\n%s", len(r.Cards), formatProgress(r.Progress)))
		b.sendCurrentCard(user.TelegramID, chatID)
	}
}

// sendCurrentCard shows the front of the card under review.
func (b *Bot) sendCurrentCard(userID, chatID int64) {
	b.mu.Lock()
	s, ok := b.sessions[userID]
	var item study.QueueItem
	var position, total int
	if ok {
		item, ok = s.current()
		position, total = s.index+1, len(s.items)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	text := fmt.Sprintf("Card %d of %d\n\n❓ %s", position, total, item.Card.Front)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "👀 Show answer", CallbackData: fmt.Sprintf("reveal_%d", item.Card.ID)}},
		{{Text: "⏹ Stop session", CallbackData: "study_stop"}},
	})
	b.sendMessage(msg)
}

// handleReveal flips the current card to its answer side and offers the
// four grades, each labeled with the interval it would schedule.
func (b *Bot) handleReveal(user *models.User, callback *tgbotapi.CallbackQuery, cardID int64) {
	chatID := callback.Message.Chat.ID

	item, ok := b.currentItem(user.TelegramID, cardID)
	if !ok || !b.markRevealed(user.TelegramID, cardID) {
		b.reply(chatID, "⌛ That card is no longer current. Use /study to continue.")
		return
	}

	text := fmt.Sprintf("❓ %s\n━━━━━━━━━━━━━━━━━━━━━\n💡 %s", item.Card.Front, item.Card.Back)
	msg := tgbotapi.NewEditMessageTextAndMarkup(
		chatID,
		callback.Message.MessageID,
		text,
		createKeyboard(b.ratingButtons(item)),
	)
	b.sendMessage(msg)
}

// ratingButtons labels each grade with the interval it would schedule.
func (b *Bot) ratingButtons(item study.QueueItem) [][]MenuButton {
	now := b.now()
	id := item.Card.ID
	rows := [][]MenuButton{
		{
			{Text: "🔁 Again · " + intervalLabel(now, item.Preview.Again.Due), CallbackData: fmt.Sprintf("rate_%d_%d", models.RatingAgain, id)},
			{Text: "😬 Hard · " + intervalLabel(now, item.Preview.Hard.Due), CallbackData: fmt.Sprintf("rate_%d_%d", models.RatingHard, id)},
		},
		{
			{Text: "🙂 Good · " + intervalLabel(now, item.Preview.Good.Due), CallbackData: fmt.Sprintf("rate_%d_%d", models.RatingGood, id)},
			{Text: "😎 Easy · " + intervalLabel(now, item.Preview.Easy.Due), CallbackData: fmt.Sprintf("rate_%d_%d", models.RatingEasy, id)},
		},
	}
	var footer []MenuButton
	if b.explainer != nil {
		footer = append(footer, MenuButton{Text: "✨ Explain", CallbackData: fmt.Sprintf("explain_%d", id)})
	}
	footer = append(footer, MenuButton{Text: "⏹ Stop", CallbackData: "study_stop"})
	return append(rows, footer)
}

// handleRate commits one review and moves the session forward.
func (b *Bot) handleRate(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery, rating models.Rating, cardID int64) {
	chatID := callback.Message.Chat.ID

	item, ok := b.currentItem(user.TelegramID, cardID)
	if !ok {
		b.reply(chatID, "⌛ That card is no longer current. Use /study to continue.")
		return
	}

	res, err := b.svc.SubmitReview(ctx, user.ID, cardID, rating, time.Time{})
	if err != nil {
		if errors.Is(err, study.ErrParametersUnavailable) {
			b.reply(chatID, "⚠️ Your scheduling profile is missing. Run /start to set it up.")
			return
		}
		b.logger.Error("failed to submit review", "user_id", user.ID, "card_id", cardID, "error", err)
		b.reply(chatID, "❌ Could not record that review. Please try again.")
		return
	}

	switch r := res.(type) {
	case study.NotFound:
		done, _, finished := b.advancePast(user.TelegramID, cardID)
		b.reply(chatID, "🗑 That card was deleted in the meantime.")
		if finished {
			b.finishSession(chatID, done)
		} else {
			b.sendCurrentCard(user.TelegramID, chatID)
		}
	case study.DailyLimitReached:
		b.dropSession(user.TelegramID)
		b.replyWithMenu(chatID, "🛑 Today's limit was reached while you studied.\n"+formatProgress(r.Progress)+"\nCome back tomorrow!")
	case study.Committed:
		verdict := fmt.Sprintf("❓ %s\n━━━━━━━━━━━━━━━━━━━━━\n💡 %s\n\n✔ %s · next in %s",
			item.Card.Front, item.Card.Back, rating.String(), intervalLabel(b.now(), r.Card.Due))
		edit := tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID, verdict)
		b.sendMessage(edit)

		done, _, finished := b.advancePast(user.TelegramID, cardID)
		if finished {
			b.finishSession(chatID, done)
		} else {
			b.sendCurrentCard(user.TelegramID, chatID)
		}
	}
}

func (b *Bot) finishSession(chatID int64, done int) {
	b.replyWithMenu(chatID, fmt.Sprintf("✅ Session complete! You reviewed %d cards. 🎉", done))
}

func (b *Bot) stopStudy(userID, chatID int64) {
	done := b.dropSession(userID)
	b.replyWithMenu(chatID, fmt.Sprintf("⏹ Session stopped after %d cards. Your progress is saved.", done))
}

// handleExplain asks the language model for a mnemonic for the card. The
// card is re-read from storage so the button works even after rating.
func (b *Bot) handleExplain(ctx context.Context, user *models.User, chatID, cardID int64) {
	if b.explainer == nil {
		b.reply(chatID, "✨ Explanations are not configured on this server.")
		return
	}

	card, err := b.cards.Card(ctx, cardID, user.ID)
	if err != nil {
		b.reply(chatID, "🗑 That card no longer exists.")
		return
	}

	explainCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	b.reply(chatID, "✨ "+b.explainer.ExplainWithFallback(explainCtx, card))
}

// startQuiz opens an off-schedule practice round.
func (b *Bot) startQuiz(ctx context.Context, user *models.User, chatID, deckID int64) {
	questions, err := b.quizzes.Build(ctx, user.ID, deckID, b.cfg.QuizLength)
	if err != nil {
		if errors.Is(err, quiz.ErrNotEnoughCards) {
			b.replyWithMenu(chatID, "❓ A quiz needs at least two cards. Add more with /add or /import.")
			return
		}
		b.logger.Error("failed to build quiz", "user_id", user.ID, "deck_id", deckID, "error", err)
		b.reply(chatID, "❌ Could not build a quiz. Please try again later.")
		return
	}

	b.mu.Lock()
	b.quizSessions[user.TelegramID] = &quizSession{questions: questions, touched: time.Now()}
	b.mu.Unlock()

	b.sendQuizQuestion(user.TelegramID, chatID)
}

func (b *Bot) sendQuizQuestion(userID, chatID int64) {
	b.mu.Lock()
	s, ok := b.quizSessions[userID]
	var q quiz.Question
	var position, total int
	if ok && s.index < len(s.questions) {
		q = s.questions[s.index]
		position, total = s.index+1, len(s.questions)
	} else {
		ok = false
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	var rows [][]MenuButton
	for i, option := range q.Options {
		rows = append(rows, []MenuButton{{
			Text:         truncateLabel(option, 48),
			CallbackData: fmt.Sprintf("answer_%d_%d", position-1, i),
		}})
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Question %d of %d\n\n❓ %s", position, total, q.Card.Front))
	msg.ReplyMarkup = createKeyboard(rows)
	b.sendMessage(msg)
}

// answerQuiz applies one answer to the session state and reports the
// verdict. A stale question index fails the match.
func (b *Bot) answerQuiz(userID int64, questionIdx, optionIdx int) (q quiz.Question, correct bool, score, total int, finished, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, exists := b.quizSessions[userID]
	if !exists || time.Since(s.touched) > b.cfg.SessionTTL {
		delete(b.quizSessions, userID)
		return quiz.Question{}, false, 0, 0, false, false
	}
	if questionIdx != s.index || s.index >= len(s.questions) {
		return quiz.Question{}, false, 0, 0, false, false
	}

	q = s.questions[s.index]
	correct = q.Check(optionIdx)
	if correct {
		s.correct++
	}
	s.index++
	s.touched = time.Now()

	if s.index >= len(s.questions) {
		delete(b.quizSessions, userID)
		return q, correct, s.correct, len(s.questions), true, true
	}
	return q, correct, s.correct, len(s.questions), false, true
}

func (b *Bot) handleQuizAnswer(user *models.User, callback *tgbotapi.CallbackQuery, questionIdx, optionIdx int) {
	chatID := callback.Message.Chat.ID

	q, correct, score, total, finished, ok := b.answerQuiz(user.TelegramID, questionIdx, optionIdx)
	if !ok {
		b.reply(chatID, "⌛ That question is no longer current. Start a fresh round with /quiz.")
		return
	}

	var verdict string
	if correct {
		verdict = fmt.Sprintf("❓ %s\n\n✅ Correct!", q.Card.Front)
	} else {
		verdict = fmt.Sprintf("❓ %s\n\n❌ Not quite. The answer is: %s", q.Card.Front, q.Card.Back)
	}
	b.sendMessage(tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID, verdict))

	if finished {
		b.replyWithMenu(chatID, fmt.Sprintf("🏁 Quiz finished: %d of %d correct!", score, total))
		return
	}
	b.sendQuizQuestion(user.TelegramID, chatID)
}

// formatProgress renders the daily counters attached to a queue.
func formatProgress(p study.Progress) string {
	return fmt.Sprintf("Today: %d/%d new · %d/%d reviews · %d left in queue",
		p.NewCardsSeen, p.NewCardsLimit, p.ReviewCardsSeen, p.ReviewCardsLimit, p.TotalRemaining)
}

// intervalLabel renders the gap between now and a due time the way study
// apps abbreviate it: minutes, hours, days, months, years.
func intervalLabel(now time.Time, due *time.Time) string {
	if due == nil {
		return "?"
	}
	d := due.Sub(now)
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()+0.5))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()+0.5))
	case d < 31*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24+0.5))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%.1fmo", d.Hours()/24/30.44)
	default:
		return fmt.Sprintf("%.1fy", d.Hours()/24/365.25)
	}
}

func truncateLabel(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
