package llm

import (
	"fmt"
	"slices"
	"strings"
)

// GeneratedQuestion is a single multiple-choice question returned by a
// provider. Correct must be the exact text of one of the Options.
type GeneratedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  string   `json:"correct"`
}

type GeneratedFlashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MalformedResponseError indicates the provider returned output that could
// not be interpreted as the expected batch. Raw preserves the original
// payload so callers can surface it for debugging.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Reason)
}

func validateQuestion(q GeneratedQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %q must have at least 2 options", q.Question)
	}
	if !slices.Contains(q.Options, q.Correct) {
		return fmt.Errorf("correct answer %q for question %q is not one of the options", q.Correct, q.Question)
	}
	return nil
}

func validateFlashcard(c GeneratedFlashcard) error {
	if strings.TrimSpace(c.Question) == "" {
		return fmt.Errorf("flashcard question is empty")
	}
	if strings.TrimSpace(c.Answer) == "" {
		return fmt.Errorf("flashcard %q has no answer", c.Question)
	}
	return nil
}
