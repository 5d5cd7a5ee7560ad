package tests

import (
	"fmt"
	"net/http"
	"testing"
)

func createNoteLink(t *testing.T, c *client, access string, groupId *string) string {
	notebookId, err := c.createNotebook("cells")
	if err != nil {
		t.Fatal(err)
	}
	noteId, err := c.createNote(notebookId, "mitochondria", "the powerhouse of the cell")
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]interface{}{
		"content_type": "note", "content_id": noteId, "access_level": access, "title": "cell notes",
	}
	if groupId != nil {
		payload["group_id"] = *groupId
	}

	link, err := c.createLink(payload)
	if err != nil {
		t.Fatal(err)
	}
	return link["link_id"].(string)
}

func TestPublicLinkAccess(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	stranger := env.newUser(t, "eve")
	anon := env.newClient()

	linkId := createNoteLink(t, &alice, "public", nil)

	for _, c := range []*client{&alice, &stranger, &anon} {
		status, body := c.resolveLink(linkId, c.token != "")
		if status != http.StatusOK {
			t.Fatalf("expected public link to resolve, got status %d", status)
		}
		content, ok := body["content"].(map[string]interface{})
		if !ok || content["title"] != "mitochondria" {
			t.Fatalf("unexpected link payload: %v", body)
		}
	}
}

func TestPrivateLinkAccess(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	stranger := env.newUser(t, "eve")
	anon := env.newClient()

	linkId := createNoteLink(t, &alice, "private", nil)

	if status, _ := alice.resolveLink(linkId, true); status != http.StatusOK {
		t.Fatalf("expected creator to resolve private link, got %d", status)
	}
	if status, _ := stranger.resolveLink(linkId, true); status != http.StatusForbidden {
		t.Fatalf("expected forbidden for stranger, got %d", status)
	}
	if status, _ := anon.resolveLink(linkId, false); status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for anonymous, got %d", status)
	}
}

func TestGroupLinkAccess(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	stranger := env.newUser(t, "eve")
	anon := env.newClient()

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil); err != nil {
		t.Fatal(err)
	}

	linkId := createNoteLink(t, &alice, "group", &groupId)

	if status, _ := alice.resolveLink(linkId, true); status != http.StatusOK {
		t.Fatalf("expected creator to resolve group link, got %d", status)
	}
	if status, _ := bob.resolveLink(linkId, true); status != http.StatusOK {
		t.Fatalf("expected group member to resolve group link, got %d", status)
	}
	if status, _ := stranger.resolveLink(linkId, true); status != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-member, got %d", status)
	}
	if status, _ := anon.resolveLink(linkId, false); status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for anonymous, got %d", status)
	}
}

func TestGroupLinkRequiresGroupId(t *testing.T) {
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

	_, err = alice.createLink(map[string]interface{}{
		"content_type": "note", "content_id": noteId, "access_level": "group",
	})
	if errStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity for group link without group, got %v", err)
	}
}

func TestUnknownLinkNotFound(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()
	if status, _ := anon.resolveLink("does-not-exist-id-000", false); status != http.StatusNotFound {
		t.Fatalf("expected not found for unknown link, got %d", status)
	}
}

func TestDeleteLink(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	eve := env.newUser(t, "eve")

	linkId := createNoteLink(t, &alice, "public", nil)

	err := deleteReq(&eve, fmt.Sprintf("/shared/links/%v", linkId))
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden deleting another user's link, got %v", err)
	}

	if err := deleteReq(&alice, fmt.Sprintf("/shared/links/%v", linkId)); err != nil {
		t.Fatal(err)
	}

	anon := env.newClient()
	if status, _ := anon.resolveLink(linkId, false); status != http.StatusNotFound {
		t.Fatalf("expected not found after link deletion, got %d", status)
	}
}

func TestLinkToDeletedContent(t *testing.T) {
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

	link, err := alice.createLink(map[string]interface{}{
		"content_type": "note", "content_id": noteId, "access_level": "public",
	})
	if err != nil {
		t.Fatal(err)
	}
	linkId := link["link_id"].(string)

	if err := deleteReq(&alice, fmt.Sprintf("/notebook/notes/%v", noteId)); err != nil {
		t.Fatal(err)
	}

	if status, _ := alice.resolveLink(linkId, true); status != http.StatusNotFound {
		t.Fatalf("expected not found for dangling link, got %d", status)
	}
}
