// Package ai generates card explanations and example sentences through the
// OpenAI chat completions API. Everything here is best-effort flavor text;
// callers fall back to canned output when the API is unreachable.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// Explainer is a client for the OpenAI chat completions API.
type Explainer struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

// New builds an Explainer from the OPENAI_API_KEY environment variable.
func New(logger *slog.Logger) (*Explainer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Explainer{
		apiKey:      apiKey,
		apiURL:      defaultAPIURL,
		model:       "gpt-3.5-turbo",
		maxTokens:   200,
		temperature: 0.7,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExplainCard asks for a short explanation or mnemonic connecting the
// card's front to its back.
func (e *Explainer) ExplainCard(ctx context.Context, card *models.Card) (string, error) {
	prompt := fmt.Sprintf(
		"A flashcard shows %q on the front and %q on the back. "+
			"Explain the connection in at most three sentences, with a mnemonic if one comes naturally.",
		card.Front, card.Back,
	)
	return e.complete(ctx, prompt, e.temperature)
}

// ExampleSentence asks for one practical sentence using the card's front.
func (e *Explainer) ExampleSentence(ctx context.Context, card *models.Card) (string, error) {
	prompt := fmt.Sprintf(
		"Write one short, practical example sentence that naturally uses %q (meaning: %q). "+
			"Return only the sentence.",
		card.Front, card.Back,
	)
	return e.complete(ctx, prompt, e.temperature)
}

// ExplainWithFallback never fails: on any API problem it logs the error and
// returns a plain restatement of the card.
func (e *Explainer) ExplainWithFallback(ctx context.Context, card *models.Card) string {
	explanation, err := e.ExplainCard(ctx, card)
	if err != nil {
		e.logger.Warn("card explanation failed", "card_id", card.ID, "error", err)
		return fmt.Sprintf("%s means: %s", card.Front, card.Back)
	}
	return explanation
}

func (e *Explainer) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := chatRequest{
		Model: e.model,
		Messages: []message{
			{Role: "system", Content: "You are a study assistant helping a learner remember flashcards."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   e.maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
