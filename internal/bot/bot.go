// Package bot is the Telegram front end. It walks users through study
// sessions, deck management, settings, practice quizzes and import/export,
// and delegates every scheduling decision to the study service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/flashdeck/internal/ai"
	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/excel"
	"github.com/example/flashdeck/internal/quiz"
	"github.com/example/flashdeck/internal/study"
	"github.com/example/flashdeck/pkg/models"
)

// updateTimeout bounds the handling of a single Telegram update.
const updateTimeout = time.Minute

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// userState tracks a multi-step text interaction, such as naming a new deck
// or pasting a card list.
type userState struct {
	action  string
	deckID  int64
	started time.Time
}

const (
	stateAwaitingDeckName = "awaiting_deck_name"
	stateAwaitingCards    = "awaiting_cards"
)

// Deps bundles the collaborators the bot is wired with.
type Deps struct {
	Study    *study.Service
	Users    database.UserStore
	Cards    database.CardStore
	Decks    database.DeckStore
	Settings database.SettingsStore
	Logs     database.ReviewLogStore
	Config   *Config
	Logger   *slog.Logger
}

// Bot represents the Telegram bot application
type Bot struct {
	api   *tgbotapi.BotAPI
	token string

	svc      *study.Service
	users    database.UserStore
	cards    database.CardStore
	decks    database.DeckStore
	settings database.SettingsStore
	logs     database.ReviewLogStore

	quizzes   *quiz.Builder
	importer  *excel.Importer
	exporter  *excel.Exporter
	explainer *ai.Explainer // nil when OPENAI_API_KEY is absent

	cfg    *Config
	logger *slog.Logger
	now    func() time.Time

	adminIDs map[int64]bool

	mu             sync.Mutex // guards the four session maps
	sessions       map[int64]*studySession
	quizSessions   map[int64]*quizSession
	states         map[int64]*userState
	awaitingUpload map[int64]bool
}

// New creates a bot from its collaborators and the environment.
// TELEGRAM_BOT_TOKEN must be set. ADMIN_USER_IDS optionally names the
// Telegram accounts allowed to run import/export as a comma-separated list.
// AI explanations switch on only when OPENAI_API_KEY is present.
func New(deps Deps) (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if deps.Study == nil {
		return nil, fmt.Errorf("bot: study service is required")
	}

	cfg := deps.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		token:          token,
		svc:            deps.Study,
		users:          deps.Users,
		cards:          deps.Cards,
		decks:          deps.Decks,
		settings:       deps.Settings,
		logs:           deps.Logs,
		quizzes:        quiz.NewBuilder(deps.Cards, nil),
		importer:       excel.NewImporter(deps.Cards, deps.Decks),
		exporter:       excel.NewExporter(deps.Cards, deps.Decks),
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
		adminIDs:       parseAdminIDs(os.Getenv("ADMIN_USER_IDS"), logger),
		sessions:       make(map[int64]*studySession),
		quizSessions:   make(map[int64]*quizSession),
		states:         make(map[int64]*userState),
		awaitingUpload: make(map[int64]bool),
	}

	explainer, err := ai.New(logger)
	if err != nil {
		logger.Warn("card explanations disabled", "reason", err)
	} else {
		b.explainer = explainer
	}

	return b, nil
}

// parseAdminIDs reads a comma-separated list of Telegram user IDs, skipping
// entries that do not parse.
func parseAdminIDs(raw string, logger *slog.Logger) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("ignoring malformed admin ID", "value", part)
			continue
		}
		ids[id] = true
	}
	return ids
}

// Start connects to Telegram and blocks handling updates until the update
// channel closes, which happens after Stop.
func (b *Bot) Start() error {
	api, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.api = api
	b.logger.Info("authorized on telegram", "account", api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.PollTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	for update := range updates {
		go b.handleUpdate(update)
	}
	return nil
}

// Stop closes the update stream, letting Start return.
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	b.logger.Info("bot stopped")
}

// handleUpdate dispatches one incoming update.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		b.logger.Error("failed to resolve user", "telegram_id", message.From.ID, "error", err)
		b.reply(message.Chat.ID, "❌ Something went wrong. Please try again later.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, user, message)
		return
	}

	if message.Document != nil && b.takeAwaitingUpload(user.TelegramID) {
		b.handleUploadedFile(ctx, user, message)
		return
	}

	if state := b.takeState(user.TelegramID); state != nil {
		b.handleStatefulInput(ctx, user, message, state)
		return
	}

	b.replyWithMenu(message.Chat.ID, "I don't understand. Use /menu to show the main menu.")
}

// ensureUser resolves the Telegram sender to an account row, creating the
// account and seeding its default settings on first contact.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	user, err := b.users.ByTelegramID(ctx, from.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
	}
	if err := b.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	if err := b.settings.Upsert(ctx, database.DefaultSettings(user.ID)); err != nil {
		return nil, fmt.Errorf("failed to seed default settings: %w", err)
	}
	b.logger.Info("new user registered", "user_id", user.ID, "telegram_id", user.TelegramID)
	return user, nil
}

// isAdmin reports whether the user may run admin commands. The environment
// allowlist wins; the stored flag covers accounts promoted at runtime.
func (b *Bot) isAdmin(user *models.User) bool {
	return b.adminIDs[user.TelegramID] || user.IsAdmin
}

// SendDueReminder implements the notifier hook of the background scheduler.
// For direct chats the chat ID equals the Telegram user ID.
func (b *Bot) SendDueReminder(user models.User, dueCount int) error {
	if b.api == nil {
		return fmt.Errorf("bot is not started")
	}

	noun := "cards"
	if dueCount == 1 {
		noun = "card"
	}
	text := fmt.Sprintf("🔔 You have %d %s ready for review. A few minutes now keeps them fresh!", dueCount, noun)

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "📖 Study now", CallbackData: "study_0"}},
	})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", user.ID, err)
	}
	return nil
}

// sendMessage sends any chattable and logs delivery failures.
func (b *Bot) sendMessage(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("failed to send message", "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyWithMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	b.sendMessage(msg)
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📖 Study", CallbackData: "study_0"},
			{Text: "📊 Statistics", CallbackData: "show_stats"},
		},
		{
			{Text: "🗂 Decks", CallbackData: "decks"},
			{Text: "❓ Quiz", CallbackData: "quiz_pick"},
		},
		{
			{Text: "⚙️ Settings", CallbackData: "settings"},
		},
	}
}

func (b *Bot) setState(userID int64, state *userState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state.started.IsZero() {
		state.started = time.Now()
	}
	b.states[userID] = state
}

// takeState removes and returns the user's pending input state. Expired
// states are discarded.
func (b *Bot) takeState(userID int64) *userState {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.states[userID]
	if !ok {
		return nil
	}
	delete(b.states, userID)
	if time.Since(state.started) > b.cfg.SessionTTL {
		return nil
	}
	return state
}

func (b *Bot) markAwaitingUpload(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaitingUpload[userID] = true
}

func (b *Bot) takeAwaitingUpload(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.awaitingUpload[userID] {
		return false
	}
	delete(b.awaitingUpload, userID)
	return true
}

// clearInteraction drops every pending state for the user: text input,
// upload mode, and any open study or quiz session.
func (b *Bot) clearInteraction(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, userID)
	delete(b.awaitingUpload, userID)
	delete(b.sessions, userID)
	delete(b.quizSessions, userID)
}
