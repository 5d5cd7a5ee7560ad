package tests

import (
	"net/http"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	login, err := c.signup("alice", "alice@mail.com", "alice_password")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.login(login); err != nil {
		t.Fatal(err)
	}

	info, err := get[map[string]interface{}](&c, "/user/info")
	if err != nil {
		t.Fatal(err)
	}
	if info["username"] != "alice" {
		t.Fatalf("expected username alice, got %v", info["username"])
	}
	if info["admin"] != false {
		t.Fatal("new user should not be admin")
	}
}

func TestSignupRejectsInvalidFields(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()

	_, err := c.signup("a!", "alice@mail.com", "alice_password")
	if errStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity for bad username, got %v", err)
	}

	_, err = c.signup("alice", "not-an-email", "alice_password")
	if errStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity for bad email, got %v", err)
	}
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	if _, err := c.signup("alice", "Alice@Mail.com", "alice_password"); err != nil {
		t.Fatal(err)
	}

	if err := c.login(loginInfo{Email: "ALICE@mail.com", Password: "alice_password"}); err != nil {
		t.Fatalf("expected login to ignore email case, got %v", err)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	if _, err := c.signup("alice", "alice@mail.com", "password1"); err != nil {
		t.Fatal(err)
	}

	_, err := c.signup("alice", "other@mail.com", "password2")
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	_, err = c.signup("alice2", "alice@mail.com", "password3")
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	if _, err := c.signup("alice", "alice@mail.com", "alice_password"); err != nil {
		t.Fatal(err)
	}

	err := c.login(loginInfo{Email: "alice@mail.com", Password: "wrong_password"})
	if errStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	err = c.login(loginInfo{Email: "nobody@mail.com", Password: "whatever"})
	if errStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdminOnlyEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.newUser(t, "alice")

	_, err := get[[]map[string]interface{}](&alice, "/user/list")
	if errStatus(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-admin list, got %v", err)
	}

	admin := env.adminClient(t)
	users, err := get[[]map[string]interface{}](&admin, "/user/list")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestCannotDemoteLastAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)

	err := deleteReq(&admin, "/user/"+admin.userId+"/admin")
	if errStatus(err) != http.StatusConflict {
		t.Fatalf("expected conflict demoting last admin, got %v", err)
	}
}
