package schema

import "fmt"

const (
	Private   = "private"
	Public    = "public"
	GroupOnly = "group"
)

func CheckValidAccess(access string) error {
	if access == Public || access == Private || access == GroupOnly {
		return nil
	}
	return fmt.Errorf("invalid access level '%v', must be 'public', 'private', or 'group'", access)
}

const (
	AdminRole  = "admin"
	MemberRole = "member"
)

func CheckValidRole(role string) error {
	if role == AdminRole || role == MemberRole {
		return nil
	}
	return fmt.Errorf("invalid role '%v', must be 'admin' or 'member'", role)
}

const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

const (
	NoteContent      = "note"
	QuizContent      = "quiz"
	FlashcardContent = "flashcard"
)

func CheckValidContentType(contentType string) error {
	if contentType == NoteContent || contentType == QuizContent || contentType == FlashcardContent {
		return nil
	}
	return fmt.Errorf("invalid content type '%v', must be 'note', 'quiz', or 'flashcard'", contentType)
}

const (
	TextMessage     = "text"
	ResourceMessage = "resource"
	SystemMessage   = "system"
)

func CheckValidMessageType(messageType string) error {
	if messageType == TextMessage || messageType == ResourceMessage || messageType == SystemMessage {
		return nil
	}
	return fmt.Errorf("invalid message type '%v', must be 'text', 'resource', or 'system'", messageType)
}
