package tests

import (
	"fmt"
	"net/http"
	"testing"
)

type sharedContent struct {
	Notes      []map[string]interface{} `json:"notes"`
	Quizzes    []map[string]interface{} `json:"quizzes"`
	Flashcards []map[string]interface{} `json:"flashcards"`
}

func TestShareNoteIntoGroup(t *testing.T) {
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

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "mitochondria", "the powerhouse of the cell")
	if err != nil {
		t.Fatal(err)
	}

	if err := alice.shareContent(groupId, "note", noteId); err != nil {
		t.Fatal(err)
	}

	// Sharing the same note twice conflicts.
	err = alice.shareContent(groupId, "note", noteId)
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate share, got %v", err)
	}

	shared, err := get[sharedContent](&bob, fmt.Sprintf("/group/%v/share", groupId))
	if err != nil {
		t.Fatal(err)
	}
	if len(shared.Notes) != 1 || len(shared.Quizzes) != 0 || len(shared.Flashcards) != 0 {
		t.Fatalf("unexpected shared content: %+v", shared)
	}
	if shared.Notes[0]["title"] != "mitochondria" {
		t.Fatalf("unexpected shared note: %v", shared.Notes[0])
	}
}

func TestOnlyOwnerCanShare(t *testing.T) {
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

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "mitochondria", "atp synthesis")
	if err != nil {
		t.Fatal(err)
	}

	err = bob.shareContent(groupId, "note", noteId)
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-owner share, got %v", err)
	}
}

func TestUnshareContent(t *testing.T) {
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

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "mitochondria", "atp synthesis")
	if err != nil {
		t.Fatal(err)
	}
	if err := alice.shareContent(groupId, "note", noteId); err != nil {
		t.Fatal(err)
	}

	payload := map[string]string{"content_type": "note", "content_id": noteId}

	err = deleteJson(&bob, fmt.Sprintf("/group/%v/share", groupId), payload)
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-sharer unshare, got %v", err)
	}

	if err := deleteJson(&alice, fmt.Sprintf("/group/%v/share", groupId), payload); err != nil {
		t.Fatal(err)
	}

	shared, err := get[sharedContent](&bob, fmt.Sprintf("/group/%v/share", groupId))
	if err != nil {
		t.Fatal(err)
	}
	if len(shared.Notes) != 0 {
		t.Fatalf("expected no shared notes after unshare, got %v", shared.Notes)
	}

	err = deleteJson(&alice, fmt.Sprintf("/group/%v/share", groupId), payload)
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found unsharing absent content, got %v", err)
	}
}

func TestShareInvalidContentType(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}

	err = alice.shareContent(groupId, "podcast", "00000000-0000-0000-0000-000000000000")
	if errStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity for bad content type, got %v", err)
	}
}
