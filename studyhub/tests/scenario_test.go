package tests

import (
	"fmt"
	"net/http"
	"testing"

	"studyhub/studyhub/schema"
)

// Walks the full study-group workflow: notes, generated material, a private
// group built up by invitation, shared resources, likes, and chat.
func TestStudyGroupWorkflow(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	notebookId, err := alice.createNotebook("Biology 101")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "Cell Structure", "Cells contain organelles such as mitochondria and ribosomes.")
	if err != nil {
		t.Fatal(err)
	}

	quiz, err := post[quizResult](&alice, fmt.Sprintf("/quiz/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}
	cards, err := post[[]flashcardResult](&alice, fmt.Sprintf("/flashcard/generate/%v", noteId), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(quiz.Questions) != 2 || len(cards) != 2 {
		t.Fatalf("unexpected generated material: %d questions, %d cards", len(quiz.Questions), len(cards))
	}

	groupId, err := alice.createGroup("Biology Study Group", true)
	if err != nil {
		t.Fatal(err)
	}

	// Private group, bob has to be invited.
	if _, err := post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil); errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden joining private group, got %v", err)
	}

	invitationId, err := alice.invite(groupId, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if err := bob.acceptInvitation(invitationId); err != nil {
		t.Fatal(err)
	}

	if err := alice.shareContent(groupId, "quiz", quiz.Id.String()); err != nil {
		t.Fatal(err)
	}

	res, err := alice.shareResource(groupId, "note", noteId, "Cell Structure notes")
	if err != nil {
		t.Fatal(err)
	}

	if status, body := bob.resolveLink(res["link_id"], true); status != http.StatusOK {
		t.Fatalf("expected bob to open the shared note, got %d", status)
	} else if body["content_type"] != "note" {
		t.Fatalf("unexpected link payload: %v", body)
	}

	like, err := bob.toggleLike(groupId, res["resource_id"])
	if err != nil {
		t.Fatal(err)
	}
	if !like.Liked || like.LikeCount != 1 {
		t.Fatalf("unexpected like state: %+v", like)
	}

	if err := bob.postChatMessage(groupId, "thanks for the notes!"); err != nil {
		t.Fatal(err)
	}

	sharedQuiz, err := get[quizResult](&bob, fmt.Sprintf("/quiz/%v", quiz.Id))
	if err != nil {
		t.Fatal(err)
	}
	if sharedQuiz.Questions[0].Correct != "Mitochondria" {
		t.Fatalf("unexpected shared quiz: %+v", sharedQuiz)
	}

	messages, err := get[[]map[string]interface{}](&alice, fmt.Sprintf("/group/%v/chat", groupId))
	if err != nil {
		t.Fatal(err)
	}

	var sawJoin, sawResource, sawText bool
	for _, msg := range messages {
		switch msg["type"] {
		case schema.SystemMessage:
			sawJoin = sawJoin || msg["message"] == "bob joined the group"
		case schema.ResourceMessage:
			sawResource = true
		case schema.TextMessage:
			sawText = sawText || msg["message"] == "thanks for the notes!"
		}
	}
	if !sawJoin || !sawResource || !sawText {
		t.Fatalf("chat log missing events (join=%v resource=%v text=%v): %v", sawJoin, sawResource, sawText, messages)
	}
}
