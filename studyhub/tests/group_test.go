package tests

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGroupCreatorBecomesAdmin(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}

	members, err := get[[]map[string]interface{}](&alice, fmt.Sprintf("/group/%v/members", groupId))
	if err != nil {
		t.Fatal(err)
	}

	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0]["role"] != "admin" {
		t.Fatalf("expected creator role admin, got %v", members[0]["role"])
	}
	if members[0]["user_id"] != alice.userId {
		t.Fatalf("expected creator as member, got %v", members[0]["user_id"])
	}
}

func TestJoinPublicGroup(t *testing.T) {
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

	// Joining again is a conflict, one membership row per (user, group).
	_, err = post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil)
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict on duplicate join, got %v", err)
	}

	members, err := get[[]map[string]interface{}](&bob, fmt.Sprintf("/group/%v/members", groupId))
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestJoinPrivateGroupRejected(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	groupId, err := alice.createGroup("secret club", true)
	if err != nil {
		t.Fatal(err)
	}

	_, err = post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil)
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden joining private group, got %v", err)
	}
}

func TestSoleAdminCannotLeave(t *testing.T) {
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

	_, err = post[NoBody](&alice, fmt.Sprintf("/group/%v/leave", groupId), nil)
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict when sole admin leaves, got %v", err)
	}

	// After promoting bob, alice can leave.
	if _, err := post[NoBody](&alice, fmt.Sprintf("/group/%v/members/%v/promote", groupId, bob.userId), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := post[NoBody](&alice, fmt.Sprintf("/group/%v/leave", groupId), nil); err != nil {
		t.Fatal(err)
	}

	members, err := get[[]map[string]interface{}](&bob, fmt.Sprintf("/group/%v/members", groupId))
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0]["role"] != "admin" {
		t.Fatalf("expected bob as sole admin, got %v", members)
	}
}

func TestRemoveMemberRequiresGroupAdmin(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	eve := env.newUser(t, "eve")

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := post[NoBody](&bob, fmt.Sprintf("/group/%v/join", groupId), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := post[NoBody](&eve, fmt.Sprintf("/group/%v/join", groupId), nil); err != nil {
		t.Fatal(err)
	}

	err = deleteReq(&bob, fmt.Sprintf("/group/%v/members/%v", groupId, eve.userId))
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-admin removal, got %v", err)
	}

	if err := deleteReq(&alice, fmt.Sprintf("/group/%v/members/%v", groupId, eve.userId)); err != nil {
		t.Fatal(err)
	}

	members, err := get[[]map[string]interface{}](&alice, fmt.Sprintf("/group/%v/members", groupId))
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members after removal, got %d", len(members))
	}
}

func TestDemoteSoleGroupAdminRejected(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")

	groupId, err := alice.createGroup("biology", false)
	if err != nil {
		t.Fatal(err)
	}

	_, err = post[NoBody](&alice, fmt.Sprintf("/group/%v/members/%v/demote", groupId, alice.userId), nil)
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict demoting sole group admin, got %v", err)
	}
}

func TestListGroups(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	if _, err := alice.createGroup("biology", false); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.createGroup("chemistry", true); err != nil {
		t.Fatal(err)
	}

	mine, err := get[[]map[string]interface{}](&alice, "/group/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 groups for alice, got %d", len(mine))
	}

	public, err := get[[]map[string]interface{}](&bob, "/group/public")
	if err != nil {
		t.Fatal(err)
	}
	if len(public) != 1 || public[0]["name"] != "biology" {
		t.Fatalf("expected only the public group, got %v", public)
	}
}
