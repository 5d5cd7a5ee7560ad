package tests

import (
	"fmt"
	"net/http"
	"testing"

	"studyhub/studyhub/schema"

	"github.com/google/uuid"
)

type flashcardResult struct {
	Id       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	NoteId   uuid.UUID `json:"note_id"`
}

func TestGenerateFlashcards(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	cards, err := post[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 flashcards, got %d", len(cards))
	}
	if cards[0].Question != "Define osmosis" {
		t.Fatalf("unexpected flashcard: %+v", cards[0])
	}

	listed, err := get[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/note/%v", noteId))
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 stored flashcards, got %d", len(listed))
	}
}

func TestGenerateFlashcardsMalformedResponse(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	env.provider.flashcardPayload = `[{"question": "no answer field"}]`

	_, err := post[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/generate/%v", noteId), nil)
	if errStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected internal server error for malformed response, got %v", err)
	}

	var count int64
	if err := env.db.Model(&schema.Flashcard{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no flashcards stored, found %d", count)
	}
}

func TestManualFlashcardLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	noteId := createNoteForQuiz(t, &alice)

	card, err := postJson[flashcardResult](&alice, fmt.Sprintf("/flashcard/create/%v", noteId), map[string]string{
		"question": "What is ATP?", "answer": "The cell's energy currency",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := postJson[flashcardResult](&alice, fmt.Sprintf("/flashcard/%v/update", card.Id), map[string]string{
		"answer": "Adenosine triphosphate, the cell's energy currency",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Question != "What is ATP?" || updated.Answer == card.Answer {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := deleteReq(&alice, fmt.Sprintf("/flashcard/%v", card.Id)); err != nil {
		t.Fatal(err)
	}

	_, err = get[flashcardResult](&alice, fmt.Sprintf("/flashcard/%v", card.Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestFlashcardHiddenFromOthers(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	eve := env.newUser(t, "eve")
	noteId := createNoteForQuiz(t, &alice)

	cards, err := post[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = get[flashcardResult](&eve, fmt.Sprintf("/flashcard/%v", cards[0].Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found for another user's flashcard, got %v", err)
	}

	_, err = get[[]flashcardResult](&eve, fmt.Sprintf("/flashcard/note/%v", noteId))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found listing another user's note, got %v", err)
	}
}

func TestSharedFlashcardVisibleToGroupMembers(t *testing.T) {
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
	cards, err := post[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.shareContent(groupId, "flashcard", cards[0].Id.String()); err != nil {
		t.Fatal(err)
	}

	shared, err := get[flashcardResult](&bob, fmt.Sprintf("/flashcard/%v", cards[0].Id))
	if err != nil {
		t.Fatal(err)
	}
	if shared.Question != "Define osmosis" {
		t.Fatalf("unexpected shared flashcard: %+v", shared)
	}

	_, err = get[flashcardResult](&bob, fmt.Sprintf("/flashcard/%v", cards[1].Id))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected unshared flashcard to stay hidden, got %v", err)
	}
}
