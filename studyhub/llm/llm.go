package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var ErrTimedOut = errors.New("model request timed out")

// Provider generates study material from source text. Implementations must
// either return a fully valid batch or an error; partial batches are never
// returned.
type Provider interface {
	GenerateQuizQuestions(ctx context.Context, material string, numQuestions int) ([]GeneratedQuestion, error)
	GenerateFlashcards(ctx context.Context, material string, numCards int) ([]GeneratedFlashcard, error)
}

func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 90 * time.Second}
}

type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = DefaultHTTPClient()
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: 60 * time.Second,
	}
}

const quizPromptTemplate = "Based on the following study material, generate %d multiple-choice questions. " +
	"Respond with only a JSON array, no other text. Each element must have the keys " +
	`"question" (string), "options" (array of 4 strings), and "correct" (the exact text of the right option).` +
	"\n\nStudy material:\n%s"

const flashcardPromptTemplate = "Based on the following study material, generate %d flashcards. " +
	"Respond with only a JSON array, no other text. Each element must have the keys " +
	`"question" (string) and "answer" (string).` +
	"\n\nStudy material:\n%s"

func (p *OpenAIProvider) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a study assistant that responds only with JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimedOut
		}
		return "", fmt.Errorf("error generating completion: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "model returned no choices"}
	}

	return res.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// frequently add around JSON output despite instructions not to.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func (p *OpenAIProvider) GenerateQuizQuestions(ctx context.Context, material string, numQuestions int) ([]GeneratedQuestion, error) {
	raw, err := p.complete(ctx, fmt.Sprintf(quizPromptTemplate, numQuestions, material))
	if err != nil {
		return nil, err
	}
	return ParseQuestionBatch(raw)
}

func (p *OpenAIProvider) GenerateFlashcards(ctx context.Context, material string, numCards int) ([]GeneratedFlashcard, error) {
	raw, err := p.complete(ctx, fmt.Sprintf(flashcardPromptTemplate, numCards, material))
	if err != nil {
		return nil, err
	}
	return ParseFlashcardBatch(raw)
}

// ParseQuestionBatch decodes and validates a question batch. Validation is
// all-or-nothing: a single bad row rejects the whole batch.
func ParseQuestionBatch(raw string) ([]GeneratedQuestion, error) {
	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &questions); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("invalid json: %v", err), Raw: raw}
	}

	if len(questions) == 0 {
		return nil, &MalformedResponseError{Reason: "model returned an empty batch", Raw: raw}
	}

	for _, q := range questions {
		if err := validateQuestion(q); err != nil {
			return nil, &MalformedResponseError{Reason: err.Error(), Raw: raw}
		}
	}

	return questions, nil
}

func ParseFlashcardBatch(raw string) ([]GeneratedFlashcard, error) {
	var cards []GeneratedFlashcard
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &cards); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("invalid json: %v", err), Raw: raw}
	}

	if len(cards) == 0 {
		return nil, &MalformedResponseError{Reason: "model returned an empty batch", Raw: raw}
	}

	for _, c := range cards {
		if err := validateFlashcard(c); err != nil {
			return nil, &MalformedResponseError{Reason: err.Error(), Raw: raw}
		}
	}

	return cards, nil
}
