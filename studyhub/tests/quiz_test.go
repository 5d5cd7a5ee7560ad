package tests

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"studyhub/studyhub/llm"
	"studyhub/studyhub/schema"

	"github.com/google/uuid"
)

type quizResult struct {
	Id        uuid.UUID `json:"id"`
	NoteId    uuid.UUID `json:"note_id"`
	NoteTitle string    `json:"note_title"`
	CreatedAt time.Time `json:"created_at"`
	Questions []struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Correct  string   `json:"correct"`
	} `json:"questions"`
}

func createNoteForQuiz(t *testing.T, c *client) string {
	notebookId, err := c.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := c.createNote(notebookId, "mitochondria", "the powerhouse of the cell")
	if err != nil {
		t.Fatal(err)
	}
	return noteId
}

func TestGenerateQuiz(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	quiz, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	if quiz.Questions[0].Correct != "Mitochondria" || len(quiz.Questions[0].Options) != 4 {
		t.Fatalf("unexpected question: %+v", quiz.Questions[0])
	}

	// The quiz and its questions are persisted.
	fetched, err := get[quizResult](&alice, fmt.Sprintf("/quiz/%v", quiz.Id))
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched.Questions) != 2 || fetched.NoteTitle != "mitochondria" {
		t.Fatalf("unexpected stored quiz: %+v", fetched)
	}

	latest, err := get[quizResult](&alice, fmt.Sprintf("/quiz/note/%v", noteId))
	if err != nil {
		t.Fatal(err)
	}
	if latest.Id != quiz.Id {
		t.Fatalf("expected latest quiz %v, got %v", quiz.Id, latest.Id)
	}

	listed, err := get[[]map[string]interface{}](&alice, "/quiz/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0]["question_count"].(float64) != 2 {
		t.Fatalf("unexpected quiz list: %v", listed)
	}
}

func TestGenerateQuizMalformedResponse(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	env.provider.quizPayload = "not json"

	_, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if errStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected internal server error for malformed response, got %v", err)
	}

	// Nothing is persisted on a failed generation.
	var count int64
	if err := env.db.Model(&schema.Quiz{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no quizzes stored, found %d", count)
	}
}

func TestGenerateQuizTimeout(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	env.provider.err = llm.ErrTimedOut

	_, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if errStatus(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected service unavailable on timeout, got %v", err)
	}
}

func TestGenerateQuizProviderError(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	env.provider.err = errors.New("rate limited")

	_, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if errStatus(err) != http.StatusBadGateway {
		t.Fatalf("expected bad gateway on provider error, got %v", err)
	}
}

func TestGenerateQuizEmptyNote(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "empty", "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if errStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity for empty note, got %v", err)
	}
}

func TestQuizAccessHiddenFromOthers(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	eve := env.newUser(t, "eve")
	noteId := createNoteForQuiz(t, &alice)

	quiz, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = get[quizResult](&eve, fmt.Sprintf("/quiz/%v", quiz.Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found for another user's quiz, got %v", err)
	}

	err = deleteReq(&eve, fmt.Sprintf("/quiz/%v", quiz.Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found deleting another user's quiz, got %v", err)
	}
}

func TestSharedQuizVisibleToGroupMembers(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil); err != nil {
		t.Fatal(err)
	}

	noteId := createNoteForQuiz(t, &alice)
	quiz, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = get[quizResult](&bob, fmt.Sprintf("/quiz/%v", quiz.Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found before sharing, got %v", err)
	}

	if err := alice.shareContent(groupId, "quiz", quiz.Id.String()); err != nil {
		t.Fatal(err)
	}

	shared, err := get[quizResult](&bob, fmt.Sprintf("/quiz/%v", quiz.Id))
	if err != nil {
		t.Fatal(err)
	}
	if len(shared.Questions) != 2 {
		t.Fatalf("expected member to read shared quiz, got %+v", shared)
	}
}

func TestDeleteQuiz(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	quiz, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := deleteReq(&alice, fmt.Sprintf("/quiz/%v", quiz.Id)); err != nil {
		t.Fatal(err)
	}

	var questions int64
	if err := env.db.Model(&schema.Question{}).Count(&questions).Error; err != nil {
		t.Fatal(err)
	}
	if questions != 0 {
		t.Fatalf("expected questions deleted with quiz, found %d", questions)
	}
}
