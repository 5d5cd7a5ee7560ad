package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

type client struct {
	api    chi.Router
	token  string
	userId string
}

type loginInfo struct {
	Email    string
	Password string
}

var ErrUnauthorized = errors.New("unauthorized")

// statusError preserves the response code so tests can assert on the exact
// failure.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status %d and res '%v'", e.code, e.body)
}

// errStatus returns the response code behind an error, or 0 if the error did
// not come from an http response.
func errStatus(err error) int {
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.code
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return 0
}

func jsonError(err error) error {
	return fmt.Errorf("json encode/decode error: %w", err)
}

type NoBody struct{}

func (c *client) do(method, endpoint string, body []byte, headers map[string]string) (*http.Response, string) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, endpoint, reader)
	if c.token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.token))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	return w.Result(), w.Body.String()
}

func request[T any](c *client, method, endpoint string, body []byte, headers map[string]string) (T, error) {
	var data T

	res, resBody := c.do(method, endpoint, body, headers)
	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return data, ErrUnauthorized
		}
		return data, &statusError{code: res.StatusCode, body: resBody}
	}

	err := json.NewDecoder(res.Body).Decode(&data)
	if err != nil {
		return data, err
	}

	return data, nil
}

func get[T any](c *client, endpoint string) (T, error) {
	return request[T](c, "GET", endpoint, nil, nil)
}

func post[T any](c *client, endpoint string, body []byte) (T, error) {
	return request[T](c, "POST", endpoint, body, nil)
}

func postJson[T any](c *client, endpoint string, payload interface{}) (T, error) {
	var data T
	body, err := json.Marshal(payload)
	if err != nil {
		return data, jsonError(err)
	}
	return post[T](c, endpoint, body)
}

func deleteReq(c *client, endpoint string) error {
	_, err := request[NoBody](c, "DELETE", endpoint, nil, nil)
	return err
}

func deleteJson(c *client, endpoint string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return jsonError(err)
	}
	_, err = request[NoBody](c, "DELETE", endpoint, body, nil)
	return err
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	_, err := postJson[map[string]string](c, "/user/signup", map[string]string{
		"email": email, "username": username, "password": password,
	})
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	req := httptest.NewRequest("GET", "/user/login", nil)
	req.SetBasicAuth(login.Email, login.Password)

	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return &statusError{code: res.StatusCode, body: w.Body.String()}
	}

	var data map[string]string
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return jsonError(err)
	}

	c.token = data["access_token"]
	c.userId = data["user_id"]

	return nil
}

func (c *client) createNotebook(title string) (string, error) {
	res, err := postJson[map[string]string](c, "/notebook/create", map[string]string{"title": title})
	if err != nil {
		return "", err
	}
	return res["notebook_id"], nil
}

func (c *client) createNote(notebookId, title, content string) (string, error) {
	res, err := postJson[map[string]string](c, fmt.Sprintf("/notebook/%v/notes", notebookId), map[string]string{
		"title": title, "content": content,
	})
	if err != nil {
		return "", err
	}
	return res["note_id"], nil
}

func (c *client) createGroup(name string, private bool) (string, error) {
	res, err := postJson[map[string]string](c, "/group/create", map[string]interface{}{
		"name": name, "is_private": private,
	})
	if err != nil {
		return "", err
	}
	return res["group_id"], nil
}

func (c *client) invite(groupId, username string) (string, error) {
	res, err := postJson[map[string]string](c, fmt.Sprintf("/group/%v/invitations", groupId), map[string]string{
		"username": username,
	})
	if err != nil {
		return "", err
	}
	return res["invitation_id"], nil
}

func (c *client) acceptInvitation(invitationId string) error {
	_, err := post[NoBody](c, fmt.Sprintf("/invitation/%v/accept", invitationId), nil)
	return err
}

func (c *client) declineInvitation(invitationId string) error {
	_, err := post[NoBody](c, fmt.Sprintf("/invitation/%v/decline", invitationId), nil)
	return err
}

func (c *client) shareContent(groupId, contentType, contentId string) error {
	_, err := postJson[NoBody](c, fmt.Sprintf("/group/%v/share", groupId), map[string]string{
		"content_type": contentType, "content_id": contentId,
	})
	return err
}

func (c *client) shareResource(groupId, resourceType, resourceId, title string) (map[string]string, error) {
	return postJson[map[string]string](c, fmt.Sprintf("/group/%v/resources", groupId), map[string]string{
		"resource_type": resourceType, "resource_id": resourceId, "title": title,
	})
}

type likeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

func (c *client) toggleLike(groupId, resourceId string) (likeResult, error) {
	return post[likeResult](c, fmt.Sprintf("/group/%v/resources/%v/like", groupId, resourceId), nil)
}

func (c *client) createLink(payload interface{}) (map[string]interface{}, error) {
	return postJson[map[string]interface{}](c, "/shared/links", payload)
}

// resolveLink dereferences a shared link, optionally with the client's bearer
// token, returning the status code and decoded body.
func (c *client) resolveLink(linkId string, withToken bool) (int, map[string]interface{}) {
	req := httptest.NewRequest("GET", fmt.Sprintf("/shared/%v", linkId), nil)
	if withToken && c.token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.token))
	}

	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	if res.StatusCode != http.StatusOK {
		return res.StatusCode, nil
	}

	var data map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return res.StatusCode, nil
	}
	return res.StatusCode, data
}

func (c *client) postChatMessage(groupId, message string) error {
	_, err := postJson[map[string]interface{}](c, fmt.Sprintf("/group/%v/chat", groupId), map[string]string{
		"message": message,
	})
	return err
}
