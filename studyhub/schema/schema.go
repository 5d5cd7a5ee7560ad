package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	Notebooks []Notebook `gorm:"constraint:OnDelete:CASCADE"`
}

type Notebook struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title     string `gorm:"size:255;not null"`
	CreatedAt time.Time

	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	User   *User

	Notes []Note `gorm:"constraint:OnDelete:CASCADE"`
}

type Note struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title     string `gorm:"size:255;not null"`
	Content   string
	CreatedAt time.Time

	NotebookId uuid.UUID `gorm:"type:uuid;not null;index"`
	Notebook   *Notebook

	Quizzes    []Quiz      `gorm:"constraint:OnDelete:CASCADE"`
	Flashcards []Flashcard `gorm:"constraint:OnDelete:CASCADE"`
}

type Quiz struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time

	NoteId uuid.UUID `gorm:"type:uuid;not null;index"`
	Note   *Note

	Questions []Question `gorm:"constraint:OnDelete:CASCADE"`
}

type Question struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	QuizId uuid.UUID `gorm:"type:uuid;not null;index"`

	Question string `gorm:"not null"`
	// Options is a json encoded list of strings, Correct is the text of the
	// correct option, not an index into the list.
	Options string `gorm:"not null"`
	Correct string `gorm:"size:255;not null"`
}

func (q *Question) OptionList() ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(q.Options), &options); err != nil {
		return nil, err
	}
	return options, nil
}

func EncodeOptions(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type Flashcard struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Question string `gorm:"not null"`
	Answer   string `gorm:"not null"`

	NoteId uuid.UUID `gorm:"type:uuid;not null;index"`
	Note   *Note
}

type StudyGroup struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"size:100;not null"`
	Description string
	IsPrivate   bool `gorm:"not null;default:false"`
	CreatedAt   time.Time

	CreatedById uuid.UUID `gorm:"type:uuid;not null"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedById"`

	Members []GroupMembership `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`
}

type GroupMembership struct {
	UserId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Role     string `gorm:"size:20;not null;default:'member'"`
	JoinedAt time.Time

	User  *User       `gorm:"constraint:OnDelete:CASCADE"`
	Group *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`
}

// The unique index spans (group, invited user, status), not (group, invited
// user). Resolved invitations accumulate as history rows, and a user can be
// re-invited after declining because the duplicate check only ever matches
// pending rows.
type GroupInvitation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	GroupId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invitation_status"`
	Group   *StudyGroup

	InvitedUserId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invitation_status"`
	InvitedUser   *User     `gorm:"foreignKey:InvitedUserId;constraint:OnDelete:CASCADE"`

	InvitedById uuid.UUID `gorm:"type:uuid;not null"`
	InvitedBy   *User     `gorm:"foreignKey:InvitedById"`

	Status    string `gorm:"size:20;not null;default:'pending';uniqueIndex:idx_invitation_status"`
	CreatedAt time.Time
}

type SharedNote struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	NoteId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shared_note"`
	Note   *Note     `gorm:"constraint:OnDelete:CASCADE"`

	GroupId uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_shared_note"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	SharedById uuid.UUID `gorm:"type:uuid;not null"`
	SharedBy   *User     `gorm:"foreignKey:SharedById"`

	SharedAt time.Time
}

type SharedQuiz struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	QuizId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shared_quiz"`
	Quiz   *Quiz     `gorm:"constraint:OnDelete:CASCADE"`

	GroupId uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_shared_quiz"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	SharedById uuid.UUID `gorm:"type:uuid;not null"`
	SharedBy   *User     `gorm:"foreignKey:SharedById"`

	SharedAt time.Time
}

type SharedFlashcard struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	FlashcardId uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_shared_flashcard"`
	Flashcard   *Flashcard `gorm:"constraint:OnDelete:CASCADE"`

	GroupId uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_shared_flashcard"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	SharedById uuid.UUID `gorm:"type:uuid;not null"`
	SharedBy   *User     `gorm:"foreignKey:SharedById"`

	SharedAt time.Time
}

// A SharedLink is the externally dereferenceable pointer to a single content
// item. Multiple links may point at the same content; each LinkId is globally
// unique.
type SharedLink struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	LinkId string `gorm:"unique;size:30;not null"`

	ContentType string    `gorm:"size:20;not null"`
	ContentId   uuid.UUID `gorm:"type:uuid;not null"`

	AccessLevel string `gorm:"size:10;not null;default:'public'"`

	GroupId *uuid.UUID  `gorm:"type:uuid"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	CreatedById uuid.UUID `gorm:"type:uuid;not null"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedById;constraint:OnDelete:CASCADE"`

	Title       string `gorm:"size:255"`
	Description string

	CreatedAt time.Time
}

// A GroupResource announces a content item inside a group. It owns the group
// scoped SharedLink created alongside it (LinkId), so removing the resource
// removes the link with it.
type GroupResource struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	GroupId uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_group_resource"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	ResourceType string    `gorm:"size:20;not null;uniqueIndex:idx_group_resource"`
	ResourceId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_resource"`

	LinkId string `gorm:"size:30;not null"`

	Title       string `gorm:"size:255"`
	Description string

	SharedById uuid.UUID `gorm:"type:uuid;not null"`
	SharedBy   *User     `gorm:"foreignKey:SharedById"`

	SharedAt time.Time

	Likes []ResourceLike `gorm:"foreignKey:ResourceId;references:Id;constraint:OnDelete:CASCADE"`
}

// Row presence is the like state, there is no boolean flag.
type ResourceLike struct {
	ResourceId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	LikedAt time.Time

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type ChatMessage struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	GroupId uuid.UUID   `gorm:"type:uuid;not null;index"`
	Group   *StudyGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`

	Message string `gorm:"not null"`
	Type    string `gorm:"size:20;not null;default:'text'"`

	ResourceType *string
	ResourceId   *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
}
