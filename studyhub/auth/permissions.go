package auth

import (
	"errors"
	"fmt"
	"net/http"
	"studyhub/studyhub/schema"
	"studyhub/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// GetGroupRole returns the caller's role in the group, or ErrMembershipNotFound
// if the user is not a member.
func GetGroupRole(groupId, userId uuid.UUID, db *gorm.DB) (string, error) {
	membership, err := schema.GetMembership(groupId, userId, db)
	if err != nil {
		return "", err
	}
	return membership.Role, nil
}

func isGroupAdmin(groupId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	role, err := GetGroupRole(groupId, userId, db)
	if err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}

	return role == schema.AdminRole, nil
}

func GroupAdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			groupId, err := utils.URLParamUUID(r, "group_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			isAdmin, err := isGroupAdmin(groupId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !isAdmin {
				http.Error(w, "user must be admin or group admin to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func GroupMemberOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			groupId, err := utils.URLParamUUID(r, "group_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			isMember, err := schema.IsMember(groupId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !isMember {
				http.Error(w, "user must be group member to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// CanViewLink reports whether the actor may resolve a shared link. Public links
// are visible to anyone, including unauthenticated callers (actor == nil).
// Private links are visible only to their creator, group links only to members
// of the attached group.
func CanViewLink(actor *schema.User, link schema.SharedLink, db *gorm.DB) (bool, error) {
	switch link.AccessLevel {
	case schema.Public:
		return true, nil
	case schema.Private:
		if actor == nil {
			return false, nil
		}
		return actor.IsAdmin || actor.Id == link.CreatedById, nil
	case schema.GroupOnly:
		if actor == nil {
			return false, nil
		}
		if actor.IsAdmin || actor.Id == link.CreatedById {
			return true, nil
		}
		if link.GroupId == nil {
			return false, nil
		}
		return schema.IsMember(*link.GroupId, actor.Id, db)
	default:
		return false, fmt.Errorf("link %v has invalid access level '%v'", link.LinkId, link.AccessLevel)
	}
}

// CanViewContent checks direct access to a piece of content outside of any
// link: owners always see their own material, admins see everything, and
// group members see content that has been shared into one of their groups.
func CanViewContent(actor schema.User, ref schema.ContentRef, db *gorm.DB) (bool, error) {
	if actor.IsAdmin {
		return true, nil
	}

	ownerId, err := ref.Owner(db)
	if err != nil {
		return false, err
	}
	if ownerId == actor.Id {
		return true, nil
	}

	groupIds, err := sharedGroupIds(ref, db)
	if err != nil {
		return false, err
	}

	for _, groupId := range groupIds {
		isMember, err := schema.IsMember(groupId, actor.Id, db)
		if err != nil {
			return false, err
		}
		if isMember {
			return true, nil
		}
	}

	return false, nil
}

func sharedGroupIds(ref schema.ContentRef, db *gorm.DB) ([]uuid.UUID, error) {
	var groupIds []uuid.UUID

	var result *gorm.DB
	switch ref.Type {
	case schema.NoteContent:
		result = db.Model(&schema.SharedNote{}).Where("note_id = ?", ref.Id).Pluck("group_id", &groupIds)
	case schema.QuizContent:
		result = db.Model(&schema.SharedQuiz{}).Where("quiz_id = ?", ref.Id).Pluck("group_id", &groupIds)
	case schema.FlashcardContent:
		result = db.Model(&schema.SharedFlashcard{}).Where("flashcard_id = ?", ref.Id).Pluck("group_id", &groupIds)
	default:
		return nil, fmt.Errorf("invalid content type '%v'", ref.Type)
	}

	if result.Error != nil {
		return nil, schema.ErrDbAccessFailed
	}

	return groupIds, nil
}
