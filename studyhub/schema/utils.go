package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNotebookNotFound   = errors.New("notebook not found")
	ErrNoteNotFound       = errors.New("note not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrFlashcardNotFound  = errors.New("flashcard not found")
	ErrGroupNotFound      = errors.New("study group not found")
	ErrMembershipNotFound = errors.New("group membership not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrLinkNotFound       = errors.New("shared link not found")
	ErrResourceNotFound   = errors.New("group resource not found")
	ErrDbAccessFailed     = errors.New("db access failed")
)

// ContentNotFoundError maps a content type to its not-found sentinel.
func ContentNotFoundError(contentType string) error {
	switch contentType {
	case QuizContent:
		return ErrQuizNotFound
	case FlashcardContent:
		return ErrFlashcardNotFound
	default:
		return ErrNoteNotFound
	}
}

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByUsername(username string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by username", "username", username, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetNotebook(notebookId uuid.UUID, db *gorm.DB) (Notebook, error) {
	var notebook Notebook

	result := db.First(&notebook, "id = ?", notebookId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return notebook, ErrNotebookNotFound
		}
		slog.Error("sql error in get notebook", "notebook_id", notebookId, "error", result.Error)
		return notebook, ErrDbAccessFailed
	}

	return notebook, nil
}

func GetNote(noteId uuid.UUID, db *gorm.DB) (Note, error) {
	var note Note

	result := db.Preload("Notebook").First(&note, "id = ?", noteId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return note, ErrNoteNotFound
		}
		slog.Error("sql error in get note", "note_id", noteId, "error", result.Error)
		return note, ErrDbAccessFailed
	}

	return note, nil
}

func GetQuiz(quizId uuid.UUID, db *gorm.DB, loadQuestions bool) (Quiz, error) {
	var quiz Quiz

	var result *gorm.DB = db.Preload("Note").Preload("Note.Notebook")
	if loadQuestions {
		result = result.Preload("Questions")
	}
	result = result.First(&quiz, "id = ?", quizId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return quiz, ErrQuizNotFound
		}
		slog.Error("sql error in get quiz", "quiz_id", quizId, "error", result.Error)
		return quiz, ErrDbAccessFailed
	}

	return quiz, nil
}

func GetFlashcard(flashcardId uuid.UUID, db *gorm.DB) (Flashcard, error) {
	var flashcard Flashcard

	result := db.Preload("Note").Preload("Note.Notebook").First(&flashcard, "id = ?", flashcardId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return flashcard, ErrFlashcardNotFound
		}
		slog.Error("sql error in get flashcard", "flashcard_id", flashcardId, "error", result.Error)
		return flashcard, ErrDbAccessFailed
	}

	return flashcard, nil
}

func GetGroup(groupId uuid.UUID, db *gorm.DB) (StudyGroup, error) {
	var group StudyGroup

	result := db.First(&group, "id = ?", groupId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return group, ErrGroupNotFound
		}
		slog.Error("sql error in get group", "group_id", groupId, "error", result.Error)
		return group, ErrDbAccessFailed
	}

	return group, nil
}

func GetMembership(groupId, userId uuid.UUID, db *gorm.DB) (GroupMembership, error) {
	var membership GroupMembership

	result := db.First(&membership, "group_id = ? and user_id = ?", groupId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return membership, ErrMembershipNotFound
		}
		slog.Error("sql error in get membership", "group_id", groupId, "user_id", userId, "error", result.Error)
		return membership, ErrDbAccessFailed
	}

	return membership, nil
}

// IsMember is the membership gate used by the access evaluator and the group
// scoped endpoints. A db failure is reported as an error rather than a deny so
// that callers can distinguish the two.
func IsMember(groupId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	_, err := GetMembership(groupId, userId, db)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func CountAdmins(groupId uuid.UUID, db *gorm.DB) (int64, error) {
	var count int64
	result := db.Model(&GroupMembership{}).Where("group_id = ? and role = ?", groupId, AdminRole).Count(&count)
	if result.Error != nil {
		slog.Error("sql error counting group admins", "group_id", groupId, "error", result.Error)
		return 0, ErrDbAccessFailed
	}
	return count, nil
}

func GetInvitation(invitationId uuid.UUID, db *gorm.DB) (GroupInvitation, error) {
	var invitation GroupInvitation

	result := db.Preload("Group").Preload("InvitedBy").First(&invitation, "id = ?", invitationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return invitation, ErrInvitationNotFound
		}
		slog.Error("sql error in get invitation", "invitation_id", invitationId, "error", result.Error)
		return invitation, ErrDbAccessFailed
	}

	return invitation, nil
}

func GetSharedLink(linkId string, db *gorm.DB) (SharedLink, error) {
	var link SharedLink

	result := db.First(&link, "link_id = ?", linkId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return link, ErrLinkNotFound
		}
		slog.Error("sql error in get shared link", "link_id", linkId, "error", result.Error)
		return link, ErrDbAccessFailed
	}

	return link, nil
}

func GetGroupResource(resourceId uuid.UUID, db *gorm.DB) (GroupResource, error) {
	var resource GroupResource

	result := db.First(&resource, "id = ?", resourceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return resource, ErrResourceNotFound
		}
		slog.Error("sql error in get group resource", "resource_id", resourceId, "error", result.Error)
		return resource, ErrDbAccessFailed
	}

	return resource, nil
}
