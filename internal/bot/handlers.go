package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/excel"
	"github.com/example/flashdeck/pkg/models"
)

const (
	defaultDeckName   = "My cards"
	maxDeckButtons    = 8
	maxReportedErrors = 5
)

var (
	retentionOptions   = []float64{0.80, 0.85, 0.90, 0.95}
	newLimitOptions    = []int{5, 10, 20, 40, 100}
	reviewLimitOptions = []int{50, 100, 200, 500, 1000}
)

func (b *Bot) handleCommand(ctx context.Context, user *models.User, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, user, chatID)
	case "menu":
		b.showMainMenu(chatID)
	case "help":
		b.handleHelp(chatID)
	case "study":
		b.handleStudyCommand(ctx, user, chatID, message.CommandArguments())
	case "add":
		b.handleAdd(ctx, user, chatID)
	case "newdeck":
		b.handleNewDeck(ctx, user, chatID, message.CommandArguments())
	case "decks":
		b.handleDecks(ctx, user, chatID)
	case "deldeck":
		b.handleDeleteDeck(ctx, user, chatID, message.CommandArguments())
	case "scaler":
		b.handleScaler(ctx, user, chatID, message.CommandArguments())
	case "stats":
		b.handleStats(ctx, user, chatID)
	case "settings":
		b.sendSettings(ctx, user, chatID)
	case "quiz":
		b.handleQuizCommand(ctx, user, chatID, message.CommandArguments())
	case "import":
		b.handleImport(user, chatID)
	case "export":
		b.handleExport(ctx, user, chatID, message.CommandArguments())
	case "admin_stats":
		b.handleAdminStats(ctx, user, chatID)
	case "cancel":
		b.handleCancel(user, chatID)
	default:
		b.replyWithMenu(chatID, "Unknown command. Use /menu to show the main menu.")
	}
}

func (b *Bot) handleStart(ctx context.Context, user *models.User, chatID int64) {
	// Heal accounts that lost their settings row; a missing row makes every
	// queue build fail.
	if _, err := b.loadSettings(ctx, user); err != nil {
		b.logger.Error("failed to ensure settings", "user_id", user.ID, "error", err)
	}

	welcomeText := `👋 Welcome to FlashDeck!

I schedule your flashcards with spaced repetition: rate each answer and I bring the card back right before you would forget it.

/study - review what is due
/add - add cards by typing them
/decks - manage your decks
/quiz - quick multiple-choice practice
/stats - your progress
/settings - retention and daily limits
/help - the full command list`

	b.replyWithMenu(chatID, welcomeText)
}

func (b *Bot) handleHelp(chatID int64) {
	helpText := `📖 Command reference

🔸 Studying:
/study - review due cards across all decks
/study <deck> - review one deck
/quiz - multiple-choice practice, off the schedule

📚 Cards and decks:
/add - add cards as "front - back" lines
/decks - list decks with counts and scalers
/newdeck <name> - create a deck
/deldeck <number> - delete a deck
/scaler <number> <value> - scale a deck's share of the daily limits

⚙️ Other:
/stats - your statistics
/settings - retention, daily limits, fuzz
/import - upload cards from .xlsx or .csv (admins)
/export <deck> - download cards as a file (admins)
/cancel - abort the current action

💡 Rate honestly: the four grades drive when each card comes back.`

	msg := tgbotapi.NewMessage(chatID, helpText)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "« Back to Menu", CallbackData: "main_menu"}},
	})
	b.sendMessage(msg)
}

func (b *Bot) showMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Main Menu - choose an option:")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	b.sendMessage(msg)
}

func (b *Bot) editToMainMenu(callback *tgbotapi.CallbackQuery) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		"Main Menu - choose an option:",
		createKeyboard(b.MainMenuButtons()),
	)
	b.sendMessage(msg)
}

func (b *Bot) handleStudyCommand(ctx context.Context, user *models.User, chatID int64, args string) {
	if name := strings.TrimSpace(args); name != "" {
		deck, err := b.decks.DeckByName(ctx, user.ID, name)
		if errors.Is(err, database.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("⚠️ No deck named %q. /decks lists yours.", name))
			return
		}
		if err != nil {
			b.logger.Error("failed to look up deck", "user_id", user.ID, "error", err)
			b.reply(chatID, "❌ Something went wrong. Please try again later.")
			return
		}
		b.startStudy(ctx, user, chatID, deck.ID)
		return
	}

	decks, err := b.decks.DecksByUser(ctx, user.ID)
	if err != nil {
		b.logger.Error("failed to list decks", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	switch len(decks) {
	case 0:
		b.startStudy(ctx, user, chatID, 0)
	case 1:
		b.startStudy(ctx, user, chatID, decks[0].ID)
	default:
		b.showDeckPicker(chatID, decks, "study_", "📖 Which deck do you want to study?")
	}
}

func (b *Bot) handleQuizCommand(ctx context.Context, user *models.User, chatID int64, args string) {
	if name := strings.TrimSpace(args); name != "" {
		deck, err := b.decks.DeckByName(ctx, user.ID, name)
		if errors.Is(err, database.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("⚠️ No deck named %q. /decks lists yours.", name))
			return
		}
		if err != nil {
			b.logger.Error("failed to look up deck", "user_id", user.ID, "error", err)
			b.reply(chatID, "❌ Something went wrong. Please try again later.")
			return
		}
		b.startQuiz(ctx, user, chatID, deck.ID)
		return
	}

	decks, err := b.decks.DecksByUser(ctx, user.ID)
	if err != nil {
		b.logger.Error("failed to list decks", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	switch len(decks) {
	case 0:
		b.startQuiz(ctx, user, chatID, 0)
	case 1:
		b.startQuiz(ctx, user, chatID, decks[0].ID)
	default:
		b.showDeckPicker(chatID, decks, "quizdeck_", "❓ Which deck should the quiz draw from?")
	}
}

// showDeckPicker offers one button per deck plus an all-decks option. The
// numeric suffix of the callback is the deck ID, zero meaning everything.
func (b *Bot) showDeckPicker(chatID int64, decks []models.Deck, prefix, title string) {
	var rows [][]MenuButton
	for i, deck := range decks {
		if i == maxDeckButtons {
			break
		}
		rows = append(rows, []MenuButton{{Text: "🗂 " + deck.Name, CallbackData: prefix + strconv.FormatInt(deck.ID, 10)}})
	}
	rows = append(rows, []MenuButton{{Text: "📚 All decks", CallbackData: prefix + "0"}})

	msg := tgbotapi.NewMessage(chatID, title)
	msg.ReplyMarkup = createKeyboard(rows)
	b.sendMessage(msg)
}

func (b *Bot) handleAdd(ctx context.Context, user *models.User, chatID int64) {
	decks, err := b.decks.DecksByUser(ctx, user.ID)
	if err != nil {
		b.logger.Error("failed to list decks", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}

	switch len(decks) {
	case 0:
		deck := &models.Deck{UserID: user.ID, Name: defaultDeckName, DailyScaler: models.DefaultDailyScaler}
		if err := b.decks.CreateDeck(ctx, deck); err != nil {
			b.logger.Error("failed to create starter deck", "user_id", user.ID, "error", err)
			b.reply(chatID, "❌ Something went wrong. Please try again later.")
			return
		}
		b.beginCardEntry(user, chatID, deck.ID, deck.Name)
	case 1:
		b.beginCardEntry(user, chatID, decks[0].ID, decks[0].Name)
	default:
		var rows [][]MenuButton
		for i, deck := range decks {
			if i == maxDeckButtons {
				break
			}
			rows = append(rows, []MenuButton{{Text: "🗂 " + deck.Name, CallbackData: fmt.Sprintf("add_to_%d", deck.ID)}})
		}
		msg := tgbotapi.NewMessage(chatID, "📝 Which deck should the new cards go to?")
		msg.ReplyMarkup = createKeyboard(rows)
		b.sendMessage(msg)
	}
}

func (b *Bot) beginCardEntry(user *models.User, chatID, deckID int64, deckName string) {
	b.setState(user.TelegramID, &userState{action: stateAwaitingCards, deckID: deckID})

	instructions := fmt.Sprintf("📝 Adding cards to %q. Send one card per line:\n\n"+
		"front - back\n\n"+
		"Example:\n"+
		"hola - hello\n"+
		"adiós - goodbye\n\n"+
		"To cancel, send /cancel", deckName)
	b.reply(chatID, instructions)
}

func (b *Bot) handleStatefulInput(ctx context.Context, user *models.User, message *tgbotapi.Message, state *userState) {
	chatID := message.Chat.ID

	switch state.action {
	case stateAwaitingDeckName:
		name := strings.TrimSpace(message.Text)
		if name == "" {
			b.setState(user.TelegramID, state)
			b.reply(chatID, "Please send a non-empty deck name, or /cancel.")
			return
		}
		b.createDeck(ctx, user, chatID, name)
	case stateAwaitingCards:
		if strings.TrimSpace(message.Text) == "" {
			b.setState(user.TelegramID, state)
			b.reply(chatID, "Please send cards as \"front - back\" lines, or /cancel.")
			return
		}
		b.addCardsFromText(ctx, user, chatID, state.deckID, message.Text)
	default:
		b.replyWithMenu(chatID, "I don't understand. Use /menu to show the main menu.")
	}
}

// addCardsFromText parses "front - back" lines and upserts them into the
// deck. Bad lines are reported but do not abort the rest.
func (b *Bot) addCardsFromText(ctx context.Context, user *models.User, chatID, deckID int64, text string) {
	existing, err := b.cards.CardsByDeck(ctx, deckID, user.ID)
	if err != nil {
		b.logger.Error("failed to load deck cards", "user_id", user.ID, "deck_id", deckID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	index := make(map[string]models.Card, len(existing))
	for _, card := range existing {
		index[strings.ToLower(card.Front)] = card
	}

	var added, updated, skipped int
	var lineErrors []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		front, back, ok := splitCardLine(line)
		if !ok {
			lineErrors = append(lineErrors, "invalid format: "+line)
			continue
		}

		if card, exists := index[strings.ToLower(front)]; exists {
			if card.Back == back {
				skipped++
				continue
			}
			card.Back = back
			if err := b.cards.UpdateCard(ctx, &card); err != nil {
				lineErrors = append(lineErrors, fmt.Sprintf("could not update %q: %v", front, err))
				continue
			}
			index[strings.ToLower(front)] = card
			updated++
		} else {
			card := models.Card{UserID: user.ID, DeckID: deckID, Front: front, Back: back, State: models.StateNew}
			if err := b.cards.CreateCard(ctx, &card); err != nil {
				lineErrors = append(lineErrors, fmt.Sprintf("could not add %q: %v", front, err))
				continue
			}
			index[strings.ToLower(front)] = card
			added++
		}
	}

	var result strings.Builder
	fmt.Fprintf(&result, "✅ Cards processed:\n- Added: %d\n- Updated: %d\n- Skipped: %d\n", added, updated, skipped)
	if len(lineErrors) > 0 {
		fmt.Fprintf(&result, "\n❌ Errors (%d):\n", len(lineErrors))
		for i, lineErr := range lineErrors {
			if i == maxReportedErrors {
				result.WriteString("- …\n")
				break
			}
			result.WriteString("- " + lineErr + "\n")
		}
	}
	result.WriteString("\nStart studying with /study!")
	b.replyWithMenu(chatID, result.String())
}

// splitCardLine parses one "front - back" line. The back may contain
// further dashes; only the first one separates the sides.
func splitCardLine(line string) (front, back string, ok bool) {
	parts := strings.SplitN(line, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	front = strings.TrimSpace(parts[0])
	back = strings.TrimSpace(parts[1])
	if front == "" || back == "" {
		return "", "", false
	}
	return front, back, true
}

func (b *Bot) handleNewDeck(ctx context.Context, user *models.User, chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.setState(user.TelegramID, &userState{action: stateAwaitingDeckName})
		b.reply(chatID, "📝 Send me the name for the new deck.\nTo cancel, send /cancel")
		return
	}
	b.createDeck(ctx, user, chatID, name)
}

func (b *Bot) createDeck(ctx context.Context, user *models.User, chatID int64, name string) {
	if len([]rune(name)) > 64 {
		b.reply(chatID, "⚠️ Deck names are capped at 64 characters. Try a shorter one.")
		return
	}

	if _, err := b.decks.DeckByName(ctx, user.ID, name); err == nil {
		b.reply(chatID, fmt.Sprintf("⚠️ You already have a deck named %q.", name))
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		b.logger.Error("failed to check deck name", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}

	deck := &models.Deck{UserID: user.ID, Name: name, DailyScaler: models.DefaultDailyScaler}
	if err := b.decks.CreateDeck(ctx, deck); err != nil {
		b.logger.Error("failed to create deck", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	b.replyWithMenu(chatID, fmt.Sprintf("🗂 Deck %q created. Add cards with /add or /import.", name))
}

func (b *Bot) handleDecks(ctx context.Context, user *models.User, chatID int64) {
	decks, err := b.decks.DecksByUser(ctx, user.ID)
	if err != nil {
		b.logger.Error("failed to list decks", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	if len(decks) == 0 {
		b.replyWithMenu(chatID, "🗂 You have no decks yet. Create one with /newdeck <name>.")
		return
	}

	now := b.now()
	var text strings.Builder
	text.WriteString("🗂 Your decks:\n\n")
	var rows [][]MenuButton
	for i, deck := range decks {
		counts, err := b.cards.CountCards(ctx, deck.ID, user.ID, now)
		if err != nil {
			b.logger.Warn("failed to count cards", "deck_id", deck.ID, "error", err)
		}
		fmt.Fprintf(&text, "%d. %s · %d cards, %d due (scaler ×%s)\n",
			i+1, deck.Name, counts.Total, counts.Due, formatScaler(deck.DailyScaler))
		if i < maxDeckButtons {
			rows = append(rows, []MenuButton{{Text: "📖 " + deck.Name, CallbackData: fmt.Sprintf("study_%d", deck.ID)}})
		}
	}
	text.WriteString("\n/newdeck <name> · /scaler <number> <value> · /deldeck <number>")
	rows = append(rows, []MenuButton{{Text: "« Back to Menu", CallbackData: "main_menu"}})

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = createKeyboard(rows)
	b.sendMessage(msg)
}

func (b *Bot) handleDeleteDeck(ctx context.Context, user *models.User, chatID int64, args string) {
	index, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		b.reply(chatID, "Usage: /deldeck <number>. /decks shows the numbers.")
		return
	}

	deck, err := b.deckByIndex(ctx, user, index)
	if errors.Is(err, database.ErrNotFound) {
		b.reply(chatID, "⚠️ There is no deck with that number. /decks lists yours.")
		return
	}
	if err != nil {
		b.logger.Error("failed to resolve deck", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}

	if err := b.decks.DeleteDeck(ctx, deck.ID, user.ID); err != nil {
		b.logger.Error("failed to delete deck", "user_id", user.ID, "deck_id", deck.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	b.replyWithMenu(chatID, fmt.Sprintf("🗑 Deck %q deleted along with its cards.", deck.Name))
}

func (b *Bot) handleScaler(ctx context.Context, user *models.User, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(chatID, "Usage: /scaler <number> <value>, e.g. /scaler 1 0.5. /decks shows the numbers.")
		return
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		b.reply(chatID, "Usage: /scaler <number> <value>, e.g. /scaler 1 0.5. /decks shows the numbers.")
		return
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || value < 0 || value > 10 {
		b.reply(chatID, "⚠️ The scaler must be a number between 0 and 10.")
		return
	}

	deck, err := b.deckByIndex(ctx, user, index)
	if errors.Is(err, database.ErrNotFound) {
		b.reply(chatID, "⚠️ There is no deck with that number. /decks lists yours.")
		return
	}
	if err != nil {
		b.logger.Error("failed to resolve deck", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}

	if err := b.decks.SetDailyScaler(ctx, deck.ID, user.ID, value); err != nil {
		b.logger.Error("failed to set scaler", "user_id", user.ID, "deck_id", deck.ID, "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("⚖️ %q now gets ×%s of your daily limits. A scaler of 0 pauses the deck.",
		deck.Name, formatScaler(value)))
}

// deckByIndex resolves the 1-based position shown by /decks.
func (b *Bot) deckByIndex(ctx context.Context, user *models.User, index int) (*models.Deck, error) {
	decks, err := b.decks.DecksByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(decks) {
		return nil, database.ErrNotFound
	}
	return &decks[index-1], nil
}

func (b *Bot) handleStats(ctx context.Context, user *models.User, chatID int64) {
	now := b.now()
	counts, err := b.cards.CountCards(ctx, 0, user.ID, now)
	if err != nil {
		b.logger.Error("failed to count cards", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Statistics are unavailable right now. Please try again later.")
		return
	}
	recent, err := b.logs.CountsSince(ctx, user.ID, 0, now.Add(-24*time.Hour))
	if err != nil {
		b.logger.Warn("failed to count recent reviews", "user_id", user.ID, "error", err)
	}

	var text strings.Builder
	text.WriteString("📊 Your statistics\n\n")
	fmt.Fprintf(&text, "Cards: %d total\n", counts.Total)
	fmt.Fprintf(&text, "  🆕 New: %d · 📚 Learning: %d\n", counts.New, counts.Learning)
	fmt.Fprintf(&text, "  🔁 Review: %d · 🩹 Relearning: %d\n", counts.Review, counts.Relearning)
	fmt.Fprintf(&text, "⏰ Due now: %d\n", counts.Due)
	fmt.Fprintf(&text, "\nLast 24 hours: %d new cards, %d reviews\n", recent.NewCards, recent.ReviewCards)

	if entries, err := b.logs.RecentByUser(ctx, user.ID, 5); err == nil && len(entries) > 0 {
		text.WriteString("\nRecent answers:\n")
		for _, entry := range entries {
			fmt.Fprintf(&text, "  %s · %s\n", entry.Rating, entry.ReviewedAt.Format("Jan 2 15:04"))
		}
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "📖 Study now", CallbackData: "study_0"}},
		{{Text: "« Back to Menu", CallbackData: "main_menu"}},
	})
	b.sendMessage(msg)
}

// loadSettings fetches the settings row, seeding defaults for accounts that
// somehow lost theirs.
func (b *Bot) loadSettings(ctx context.Context, user *models.User) (*models.UserSettings, error) {
	settings, err := b.settings.Settings(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		settings = database.DefaultSettings(user.ID)
		if err := b.settings.Upsert(ctx, settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	return settings, err
}

func (b *Bot) sendSettings(ctx context.Context, user *models.User, chatID int64) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Could not load your settings. Please try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, settingsText(settings))
	msg.ReplyMarkup = createKeyboard(settingsButtons(settings))
	b.sendMessage(msg)
}

// editToSettings repaints the settings page over a submenu message.
func (b *Bot) editToSettings(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		return
	}

	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		settingsText(settings),
		createKeyboard(settingsButtons(settings)),
	)
	b.sendMessage(msg)
}

func settingsText(s *models.UserSettings) string {
	fuzz := "off"
	if s.EnableFuzz {
		fuzz = "on"
	}
	return fmt.Sprintf(`⚙️ Your settings

🎯 Desired retention: %.0f%%
📈 Maximum interval: %d days
🎲 Interval fuzz: %s
🆕 New cards per day: %d
🔁 Reviews per day: %d

Changes apply to the next queue you build.`,
		s.RequestRetention*100, s.MaximumInterval, fuzz, s.NewPerDay, s.MaxReviewsPerDay)
}

func settingsButtons(s *models.UserSettings) [][]MenuButton {
	fuzzLabel := "🎲 Fuzz: off"
	if s.EnableFuzz {
		fuzzLabel = "🎲 Fuzz: on"
	}
	return [][]MenuButton{
		{
			{Text: "🎯 Retention", CallbackData: "retention_menu"},
			{Text: "🆕 New/day", CallbackData: "new_menu"},
		},
		{
			{Text: "🔁 Reviews/day", CallbackData: "rev_menu"},
			{Text: fuzzLabel, CallbackData: "toggle_fuzz"},
		},
		{
			{Text: "↩️ Reset to defaults", CallbackData: "settings_reset"},
			{Text: "« Back to Menu", CallbackData: "main_menu"},
		},
	}
}

func (b *Bot) showRetentionMenu(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		return
	}

	var rows [][]MenuButton
	for _, option := range retentionOptions {
		label := fmt.Sprintf("%.0f%%", option*100)
		if math.Abs(settings.RequestRetention-option) < 1e-9 {
			label = "✅ " + label
		}
		rows = append(rows, []MenuButton{{Text: label, CallbackData: fmt.Sprintf("set_retention_%.0f", option*100)}})
	}
	rows = append(rows, []MenuButton{{Text: "« Back to Settings", CallbackData: "settings"}})

	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		"🎯 How much should you remember at review time?\nHigher retention means shorter intervals and more daily reviews.",
		createKeyboard(rows),
	)
	b.sendMessage(msg)
}

func (b *Bot) showNewLimitMenu(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		return
	}

	var rows [][]MenuButton
	for _, option := range newLimitOptions {
		label := fmt.Sprintf("%d cards", option)
		if settings.NewPerDay == option {
			label = "✅ " + label
		}
		rows = append(rows, []MenuButton{{Text: label, CallbackData: fmt.Sprintf("set_new_%d", option)}})
	}
	rows = append(rows, []MenuButton{{Text: "« Back to Settings", CallbackData: "settings"}})

	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		"🆕 How many new cards should enter the rotation per day?",
		createKeyboard(rows),
	)
	b.sendMessage(msg)
}

func (b *Bot) showReviewLimitMenu(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		return
	}

	var rows [][]MenuButton
	for _, option := range reviewLimitOptions {
		label := fmt.Sprintf("%d reviews", option)
		if settings.MaxReviewsPerDay == option {
			label = "✅ " + label
		}
		rows = append(rows, []MenuButton{{Text: label, CallbackData: fmt.Sprintf("set_rev_%d", option)}})
	}
	rows = append(rows, []MenuButton{{Text: "« Back to Settings", CallbackData: "settings"}})

	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		"🔁 How many due cards at most per day?",
		createKeyboard(rows),
	)
	b.sendMessage(msg)
}

// applySetting persists one settings change and drops the user's cached
// scheduler so the next queue is built from the new values.
func (b *Bot) applySetting(ctx context.Context, user *models.User, chatID int64, confirmation string, apply func(*models.UserSettings)) {
	settings, err := b.loadSettings(ctx, user)
	if err != nil {
		b.logger.Error("failed to load settings", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Error updating settings. Please try again.")
		return
	}

	apply(settings)
	if err := b.settings.Upsert(ctx, settings); err != nil {
		b.logger.Error("failed to update settings", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Error updating settings. Please try again.")
		return
	}
	b.svc.InvalidateParameters(user.ID)

	b.reply(chatID, confirmation)
	b.sendSettings(ctx, user, chatID)
}

func (b *Bot) toggleFuzz(ctx context.Context, user *models.User, chatID int64) {
	b.applySetting(ctx, user, chatID, "✅ Interval fuzz toggled.", func(s *models.UserSettings) {
		s.EnableFuzz = !s.EnableFuzz
	})
}

func (b *Bot) resetSettings(ctx context.Context, user *models.User, chatID int64) {
	if err := b.settings.ResetToDefault(ctx, user.ID); err != nil {
		b.logger.Error("failed to reset settings", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Error updating settings. Please try again.")
		return
	}
	b.svc.InvalidateParameters(user.ID)

	b.reply(chatID, "↩️ Settings are back to defaults.")
	b.sendSettings(ctx, user, chatID)
}

func (b *Bot) handleImport(user *models.User, chatID int64) {
	if !b.isAdmin(user) {
		b.replyWithMenu(chatID, "This command is only available for administrators.")
		return
	}

	b.markAwaitingUpload(user.TelegramID)
	b.reply(chatID, "📥 Send me an .xlsx or .csv file.\n\n"+
		"Columns: A = front, B = back, C = deck (optional).\n"+
		"The first row is treated as a header.\n"+
		"To cancel, send /cancel")
}

func (b *Bot) handleUploadedFile(ctx context.Context, user *models.User, message *tgbotapi.Message) {
	doc := message.Document
	chatID := message.Chat.ID

	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		b.markAwaitingUpload(user.TelegramID)
		b.reply(chatID, "⚠️ I can read .xlsx and .csv files only. Try again, or send /cancel.")
		return
	}
	if int64(doc.FileSize) > b.cfg.MaxImportBytes {
		b.markAwaitingUpload(user.TelegramID)
		b.reply(chatID, fmt.Sprintf("⚠️ That file is too big (the limit is %d MB). Try a smaller one, or send /cancel.", b.cfg.MaxImportBytes>>20))
		return
	}

	path, err := b.downloadDocument(ctx, doc.FileID, ext)
	if err != nil {
		b.logger.Error("failed to download import file", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Could not download the file from Telegram. Please try again.")
		return
	}
	defer os.Remove(path)

	result, err := b.importer.ImportCards(ctx, user.ID, excel.DefaultImportConfig(path))
	if err != nil {
		b.logger.Error("import failed", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Import failed: "+err.Error())
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "✅ Import finished:\n- Created: %d\n- Updated: %d\n- Skipped: %d\n",
		result.Created, result.Updated, result.Skipped)
	if result.DecksCreated > 0 {
		fmt.Fprintf(&text, "- New decks: %d\n", result.DecksCreated)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(&text, "\n❌ Bad rows (%d):\n", len(result.Errors))
		for i, rowErr := range result.Errors {
			if i == maxReportedErrors {
				text.WriteString("- …\n")
				break
			}
			text.WriteString("- " + rowErr + "\n")
		}
	}
	b.replyWithMenu(chatID, text.String())
}

// downloadDocument fetches an uploaded Telegram file into a temp file and
// returns its path. The caller removes the file.
func (b *Bot) downloadDocument(ctx context.Context, fileID, ext string) (string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s while fetching file", resp.Status)
	}

	tmp, err := os.CreateTemp("", "flashdeck-import-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, b.cfg.MaxImportBytes)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (b *Bot) handleExport(ctx context.Context, user *models.User, chatID int64, args string) {
	if !b.isAdmin(user) {
		b.replyWithMenu(chatID, "This command is only available for administrators.")
		return
	}

	var deckID int64
	if name := strings.TrimSpace(args); name != "" {
		deck, err := b.decks.DeckByName(ctx, user.ID, name)
		if errors.Is(err, database.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("⚠️ No deck named %q. /decks lists yours.", name))
			return
		}
		if err != nil {
			b.logger.Error("failed to look up deck", "user_id", user.ID, "error", err)
			b.reply(chatID, "❌ Something went wrong. Please try again later.")
			return
		}
		deckID = deck.ID
	}

	tmp, err := os.CreateTemp("", "flashdeck-export-*.csv")
	if err != nil {
		b.logger.Error("failed to create export file", "error", err)
		b.reply(chatID, "❌ Export failed. Please try again later.")
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	count, err := b.exporter.ExportCards(ctx, user.ID, deckID, path)
	if err != nil {
		b.logger.Error("export failed", "user_id", user.ID, "error", err)
		b.reply(chatID, "❌ Export failed. Please try again later.")
		return
	}
	if count == 0 {
		b.reply(chatID, "🗂 Nothing to export yet.")
		return
	}

	docMsg := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	docMsg.Caption = fmt.Sprintf("%d cards", count)
	b.sendMessage(docMsg)
}

func (b *Bot) handleAdminStats(ctx context.Context, user *models.User, chatID int64) {
	if !b.isAdmin(user) {
		b.replyWithMenu(chatID, "This command is only available for administrators.")
		return
	}

	users, err := b.users.All(ctx)
	if err != nil {
		b.logger.Error("failed to list users", "error", err)
		b.reply(chatID, "❌ Something went wrong. Please try again later.")
		return
	}
	var demo int
	for _, u := range users {
		if u.IsDemo {
			demo++
		}
	}

	statsText := "System statistics\n\n" +
		fmt.Sprintf("Total users: %d\n", len(users)) +
		fmt.Sprintf("Demo users: %d\n", demo) +
		fmt.Sprintf("Server time: %s\n", b.now().Format("2006-01-02 15:04:05"))
	b.reply(chatID, statsText)
}

func (b *Bot) handleCancel(user *models.User, chatID int64) {
	b.clearInteraction(user.TelegramID)
	b.replyWithMenu(chatID, "Action cancelled. Choose another command:")
}

// handleCallback routes inline button presses.
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || callback.Message == nil {
		return
	}

	// Always answer the callback query to remove the client's loading state.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}

	user, err := b.ensureUser(ctx, callback.From)
	if err != nil {
		b.logger.Error("failed to resolve user", "telegram_id", callback.From.ID, "error", err)
		return
	}
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case "main_menu":
		b.editToMainMenu(callback)
	case "show_stats":
		b.handleStats(ctx, user, chatID)
	case "decks":
		b.handleDecks(ctx, user, chatID)
	case "settings":
		b.editToSettings(ctx, user, callback)
	case "retention_menu":
		b.showRetentionMenu(ctx, user, callback)
	case "new_menu":
		b.showNewLimitMenu(ctx, user, callback)
	case "rev_menu":
		b.showReviewLimitMenu(ctx, user, callback)
	case "toggle_fuzz":
		b.toggleFuzz(ctx, user, chatID)
	case "settings_reset":
		b.resetSettings(ctx, user, chatID)
	case "quiz_pick":
		b.handleQuizCommand(ctx, user, chatID, "")
	case "study_stop":
		b.stopStudy(user.TelegramID, chatID)
	default:
		b.handlePrefixCallback(ctx, user, callback)
	}
}

// handlePrefixCallback routes the parameterized callbacks, whose suffix
// carries an ID. Exact matches are handled before this is reached.
func (b *Bot) handlePrefixCallback(ctx context.Context, user *models.User, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "study_"):
		if deckID, err := strconv.ParseInt(strings.TrimPrefix(data, "study_"), 10, 64); err == nil {
			b.startStudy(ctx, user, chatID, deckID)
		}
	case strings.HasPrefix(data, "quizdeck_"):
		if deckID, err := strconv.ParseInt(strings.TrimPrefix(data, "quizdeck_"), 10, 64); err == nil {
			b.startQuiz(ctx, user, chatID, deckID)
		}
	case strings.HasPrefix(data, "add_to_"):
		deckID, err := strconv.ParseInt(strings.TrimPrefix(data, "add_to_"), 10, 64)
		if err != nil {
			return
		}
		deck, err := b.decks.Deck(ctx, deckID, user.ID)
		if err != nil {
			b.reply(chatID, "⚠️ That deck no longer exists.")
			return
		}
		b.beginCardEntry(user, chatID, deck.ID, deck.Name)
	case strings.HasPrefix(data, "reveal_"):
		if cardID, err := strconv.ParseInt(strings.TrimPrefix(data, "reveal_"), 10, 64); err == nil {
			b.handleReveal(user, callback, cardID)
		}
	case strings.HasPrefix(data, "rate_"):
		if rating, cardID, err := parseRatingCallback(data); err == nil {
			b.handleRate(ctx, user, callback, rating, cardID)
		}
	case strings.HasPrefix(data, "answer_"):
		if questionIdx, optionIdx, err := parseAnswerCallback(data); err == nil {
			b.handleQuizAnswer(user, callback, questionIdx, optionIdx)
		}
	case strings.HasPrefix(data, "explain_"):
		if cardID, err := strconv.ParseInt(strings.TrimPrefix(data, "explain_"), 10, 64); err == nil {
			b.handleExplain(ctx, user, chatID, cardID)
		}
	case strings.HasPrefix(data, "set_retention_"):
		if pct, err := strconv.Atoi(strings.TrimPrefix(data, "set_retention_")); err == nil {
			b.applySetting(ctx, user, chatID, fmt.Sprintf("✅ Desired retention set to %d%%.", pct),
				func(s *models.UserSettings) { s.RequestRetention = float64(pct) / 100 })
		}
	case strings.HasPrefix(data, "set_new_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, "set_new_")); err == nil {
			b.applySetting(ctx, user, chatID, fmt.Sprintf("✅ New cards per day set to %d.", n),
				func(s *models.UserSettings) { s.NewPerDay = n })
		}
	case strings.HasPrefix(data, "set_rev_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, "set_rev_")); err == nil {
			b.applySetting(ctx, user, chatID, fmt.Sprintf("✅ Reviews per day set to %d.", n),
				func(s *models.UserSettings) { s.MaxReviewsPerDay = n })
		}
	default:
		b.logger.Warn("unknown callback", "data", data)
	}
}

// parseRatingCallback splits "rate_<rating>_<cardID>".
func parseRatingCallback(data string) (models.Rating, int64, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed rating callback %q", data)
	}
	value, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	cardID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return models.Rating(value), cardID, nil
}

// parseAnswerCallback splits "answer_<questionIdx>_<optionIdx>".
func parseAnswerCallback(data string) (int, int, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed answer callback %q", data)
	}
	questionIdx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	optionIdx, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, err
	}
	return questionIdx, optionIdx, nil
}

func formatScaler(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
