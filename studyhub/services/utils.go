package services

import (
	"errors"
	"log/slog"
	"net/http"
	"studyhub/studyhub/schema"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

const linkIdLength = 21

// newLinkId generates the url-safe public identifier for a shared link.
func newLinkId() (string, error) {
	return gonanoid.New(linkIdLength)
}

func checkGroupExists(txn *gorm.DB, groupId uuid.UUID) error {
	if _, err := schema.GetGroup(groupId, txn); err != nil {
		if errors.Is(err, schema.ErrGroupNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkGroupMember(txn *gorm.DB, groupId, userId uuid.UUID) error {
	if _, err := schema.GetMembership(groupId, userId, txn); err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return CodedError(errors.New("user is not a member of group"), http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkContentExists(txn *gorm.DB, ref schema.ContentRef) error {
	exists, err := ref.Exists(txn)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}
	if !exists {
		return CodedError(schema.ContentNotFoundError(ref.Type), http.StatusNotFound)
	}
	return nil
}
