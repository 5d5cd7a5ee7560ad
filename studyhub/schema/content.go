package schema

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentRef identifies one note, quiz, or flashcard. The original endpoints
// dispatched on a raw content_type string at every call site; resolving
// through a single ref keeps the three way dispatch in one place.
type ContentRef struct {
	Type string
	Id   uuid.UUID
}

func NewContentRef(contentType string, contentId uuid.UUID) (ContentRef, error) {
	if err := CheckValidContentType(contentType); err != nil {
		return ContentRef{}, err
	}
	return ContentRef{Type: contentType, Id: contentId}, nil
}

// Owner resolves the user that transitively owns the referenced content
// through its parent chain (notebook -> note -> quiz/flashcard).
func (ref ContentRef) Owner(db *gorm.DB) (uuid.UUID, error) {
	switch ref.Type {
	case NoteContent:
		note, err := GetNote(ref.Id, db)
		if err != nil {
			return uuid.Nil, err
		}
		return note.Notebook.UserId, nil
	case QuizContent:
		quiz, err := GetQuiz(ref.Id, db, false)
		if err != nil {
			return uuid.Nil, err
		}
		return quiz.Note.Notebook.UserId, nil
	case FlashcardContent:
		flashcard, err := GetFlashcard(ref.Id, db)
		if err != nil {
			return uuid.Nil, err
		}
		return flashcard.Note.Notebook.UserId, nil
	}
	return uuid.Nil, CheckValidContentType(ref.Type)
}

// Exists reports whether the referenced content is present, without loading
// its parent chain.
func (ref ContentRef) Exists(db *gorm.DB) (bool, error) {
	var count int64
	var result *gorm.DB
	switch ref.Type {
	case NoteContent:
		result = db.Model(&Note{}).Where("id = ?", ref.Id).Count(&count)
	case QuizContent:
		result = db.Model(&Quiz{}).Where("id = ?", ref.Id).Count(&count)
	case FlashcardContent:
		result = db.Model(&Flashcard{}).Where("id = ?", ref.Id).Count(&count)
	default:
		return false, CheckValidContentType(ref.Type)
	}
	if result.Error != nil {
		return false, ErrDbAccessFailed
	}
	return count > 0, nil
}
