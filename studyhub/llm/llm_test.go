package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuestionBatch(t *testing.T) {
	payload := `[
		{"question": "What is the powerhouse of the cell?", "options": ["Nucleus", "Mitochondria"], "correct": "Mitochondria"}
	]`

	questions, err := ParseQuestionBatch(payload)
	assert.NoError(t, err)
	assert.Len(t, questions, 1)
	assert.Equal(t, "Mitochondria", questions[0].Correct)
}

func TestParseQuestionBatchStripsCodeFence(t *testing.T) {
	payload := "```json\n" + `[{"question": "q", "options": ["a", "b"], "correct": "a"}]` + "\n```"

	questions, err := ParseQuestionBatch(payload)
	assert.NoError(t, err)
	assert.Len(t, questions, 1)
}

func TestParseQuestionBatchInvalidJson(t *testing.T) {
	_, err := ParseQuestionBatch("not json")

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, "not json", malformed.Raw)
}

func TestParseQuestionBatchEmpty(t *testing.T) {
	_, err := ParseQuestionBatch("[]")

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}

func TestParseQuestionBatchCorrectNotInOptions(t *testing.T) {
	payload := `[{"question": "q", "options": ["a", "b"], "correct": "c"}]`

	_, err := ParseQuestionBatch(payload)

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}

func TestParseQuestionBatchRejectsWholeBatch(t *testing.T) {
	// One bad row poisons the batch, nothing partial is returned.
	payload := `[
		{"question": "q1", "options": ["a", "b"], "correct": "a"},
		{"question": "q2", "options": ["only one"], "correct": "only one"}
	]`

	questions, err := ParseQuestionBatch(payload)
	assert.Error(t, err)
	assert.Nil(t, questions)
}

func TestParseFlashcardBatch(t *testing.T) {
	payload := `[{"question": "Define osmosis", "answer": "Water movement across a membrane"}]`

	cards, err := ParseFlashcardBatch(payload)
	assert.NoError(t, err)
	assert.Len(t, cards, 1)
	assert.Equal(t, "Define osmosis", cards[0].Question)
}

func TestParseFlashcardBatchMissingAnswer(t *testing.T) {
	_, err := ParseFlashcardBatch(`[{"question": "q"}]`)

	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}
