// Package quiz builds multiple-choice practice rounds over a user's cards.
// Quizzes are checked in memory and leave schedules and daily quotas alone.
package quiz

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// ErrNotEnoughCards means the scope holds too few cards to form a question
// with at least one wrong option.
var ErrNotEnoughCards = errors.New("quiz: not enough cards")

// optionCount is the answer buttons per question, correct one included.
const optionCount = 4

// CardSource supplies the card pool a quiz draws from.
type CardSource interface {
	CardsByDeck(ctx context.Context, deckID, userID int64) ([]models.Card, error)
}

// Question is a single prompt: the card's front with one correct back among
// the options.
type Question struct {
	Card         models.Card `json:"card"`
	Options      []string    `json:"options"`
	CorrectIndex int         `json:"correct_index"`
}

// Check reports whether the chosen option index is the correct answer.
func (q Question) Check(index int) bool {
	return index == q.CorrectIndex
}

// Builder assembles quiz rounds. Safe for concurrent use.
type Builder struct {
	cards CardSource

	mu  sync.Mutex
	rng *rand.Rand
}

func NewBuilder(cards CardSource, rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{cards: cards, rng: rng}
}

// Build returns up to n questions over the user's cards, scoped to one deck
// or, with deckID zero, to the whole collection. Wrong options are drawn
// from the prompted card's own deck first so they stay plausible.
func (b *Builder) Build(ctx context.Context, userID, deckID int64, n int) ([]Question, error) {
	pool, err := b.cards.CardsByDeck(ctx, deckID, userID)
	if err != nil {
		return nil, err
	}
	if len(pool) < 2 {
		return nil, ErrNotEnoughCards
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := b.rng.Perm(len(pool))
	if n > len(order) {
		n = len(order)
	}
	questions := make([]Question, 0, n)
	for _, idx := range order[:n] {
		questions = append(questions, b.buildQuestion(pool[idx], pool))
	}
	return questions, nil
}

func (b *Builder) buildQuestion(card models.Card, pool []models.Card) Question {
	options := append(b.distractors(card, pool, optionCount-1), card.Back)
	correct := len(options) - 1

	// Shuffle while tracking where the correct answer lands.
	b.rng.Shuffle(len(options), func(i, j int) {
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return Question{Card: card, Options: options, CorrectIndex: correct}
}

// distractors picks up to count wrong answers, preferring the card's own
// deck and skipping backs that duplicate an already chosen option.
func (b *Builder) distractors(card models.Card, pool []models.Card, count int) []string {
	var sameDeck, otherDecks []string
	seen := map[string]bool{card.Back: true}

	for _, idx := range b.rng.Perm(len(pool)) {
		c := pool[idx]
		if c.ID == card.ID || seen[c.Back] {
			continue
		}
		seen[c.Back] = true
		if c.DeckID == card.DeckID {
			sameDeck = append(sameDeck, c.Back)
		} else {
			otherDecks = append(otherDecks, c.Back)
		}
	}

	picked := append(sameDeck, otherDecks...)
	if len(picked) > count {
		picked = picked[:count]
	}
	return picked
}
