package tests

import (
	"fmt"
	"net/http"
	"testing"

	"studyhub/studyhub/schema"
)

func TestNotebookLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")

	notebookId, err := alice.createNotebook("Biology 101")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alice.createNote(notebookId, "Cell Structure", "organelles"); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.createNote(notebookId, "Photosynthesis", "light reactions"); err != nil {
		t.Fatal(err)
	}

	notebooks, err := get[[]map[string]interface{}](&alice, "/notebook/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(notebooks) != 1 || notebooks[0]["note_count"].(float64) != 2 {
		t.Fatalf("unexpected notebook list: %v", notebooks)
	}

	if _, err := postJson[NoBody](&alice, fmt.Sprintf("/notebook/%v/update", notebookId), map[string]string{"title": "Biology 102"}); err != nil {
		t.Fatal(err)
	}

	notebook, err := get[map[string]interface{}](&alice, fmt.Sprintf("/notebook/%v", notebookId))
	if err != nil {
		t.Fatal(err)
	}
	if notebook["title"] != "Biology 102" {
		t.Fatalf("expected renamed notebook, got %v", notebook)
	}

	if err := deleteReq(&alice, fmt.Sprintf("/notebook/%v", notebookId)); err != nil {
		t.Fatal(err)
	}

	// Notes go with the notebook.
	var notes int64
	if err := env.db.Model(&schema.Note{}).Count(&notes).Error; err != nil {
		t.Fatal(err)
	}
	if notes != 0 {
		t.Fatalf("expected notes deleted with notebook, found %d", notes)
	}

	_, err = get[map[string]interface{}](&alice, fmt.Sprintf("/notebook/%v", notebookId))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestNotePartialUpdate(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "mitochondria", "atp")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := postJson[NoBody](&alice, fmt.Sprintf("/notebook/notes/%v/update", noteId), map[string]string{"content": "atp synthesis"}); err != nil {
		t.Fatal(err)
	}

	note, err := get[map[string]interface{}](&alice, fmt.Sprintf("/notebook/notes/%v", noteId))
	if err != nil {
		t.Fatal(err)
	}
	if note["title"] != "mitochondria" || note["content"] != "atp synthesis" {
		t.Fatalf("unexpected note after partial update: %v", note)
	}
}

func TestNotebookHiddenFromOthers(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	eve := env.newUser(t, "eve")

	notebookId, err := alice.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := alice.createNote(notebookId, "mitochondria", "atp")
	if err != nil {
		t.Fatal(err)
	}

	// Other users' notebooks and notes read as not found, never forbidden.
	_, err = get[map[string]interface{}](&eve, fmt.Sprintf("/notebook/%v", notebookId))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found for another user's notebook, got %v", err)
	}

	_, err = postJson[NoBody](&eve, fmt.Sprintf("/notebook/%v/update", notebookId), map[string]string{"title": "mine now"})
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found updating another user's notebook, got %v", err)
	}

	err = deleteReq(&eve, fmt.Sprintf("/notebook/%v", notebookId))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found deleting another user's notebook, got %v", err)
	}

	_, err = get[map[string]interface{}](&eve, fmt.Sprintf("/notebook/notes/%v", noteId))
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found for another user's note, got %v", err)
	}

	_, err = postJson[NoBody](&eve, fmt.Sprintf("/notebook/%v/notes", notebookId), map[string]string{"title": "intruder"})
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found creating a note in another user's notebook, got %v", err)
	}

	notebooks, err := get[[]map[string]interface{}](&eve, "/notebook/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(notebooks) != 0 {
		t.Fatalf("expected empty list for eve, got %v", notebooks)
	}
}
