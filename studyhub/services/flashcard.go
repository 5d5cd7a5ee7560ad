package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"studyhub/studyhub/auth"
	"studyhub/studyhub/llm"
	"studyhub/studyhub/schema"
	"studyhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type FlashcardService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	provider llm.Provider
}

func (s *FlashcardService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/generate/{note_id}", s.Generate)
	r.Post("/create/{note_id}", s.CreateFlashcard)
	r.Get("/note/{note_id}", s.ListForNote)
	r.Get("/{flashcard_id}", s.GetFlashcard)
	r.Post("/{flashcard_id}/update", s.UpdateFlashcard)
	r.Delete("/{flashcard_id}", s.DeleteFlashcard)

	return r
}

type generateFlashcardsRequest struct {
	NumCards int `json:"num_cards"`
}

const defaultNumCards = 10

type flashcardInfo struct {
	Id       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	NoteId   uuid.UUID `json:"note_id"`
}

func (s *FlashcardService) Generate(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(flashcardGenerationMetric)
	defer timer.ObserveDuration()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteId, err := utils.URLParamUUID(r, "note_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := generateFlashcardsRequest{NumCards: defaultNumCards}
	if r.ContentLength > 0 && !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.NumCards < 1 || params.NumCards > 50 {
		http.Error(w, "num_cards must be between 1 and 50", http.StatusUnprocessableEntity)
		return
	}

	note, err := getOwnedNote(noteId, user, s.db)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	if note.Content == "" {
		http.Error(w, "note has no content to generate flashcards from", http.StatusUnprocessableEntity)
		return
	}

	slog.Info("generating flashcards", "note_id", noteId, "num_cards", params.NumCards)

	generated, err := s.provider.GenerateFlashcards(r.Context(), note.Content, params.NumCards)
	if err != nil {
		generationFailures.Inc()
		slog.Error("flashcard generation failed", "note_id", noteId, "error", err)
		http.Error(w, generationErrorMessage("error generating flashcards", err), generationErrorCode(err))
		return
	}

	flashcards := make([]schema.Flashcard, 0, len(generated))
	for _, c := range generated {
		flashcards = append(flashcards, schema.Flashcard{Id: uuid.New(), Question: c.Question, Answer: c.Answer, NoteId: noteId})
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&flashcards)
		if result.Error != nil {
			slog.Error("sql error creating flashcards", "note_id", noteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error saving flashcards: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("flashcards generated", "note_id", noteId, "count", len(flashcards))

	infos := make([]flashcardInfo, 0, len(flashcards))
	for _, f := range flashcards {
		infos = append(infos, flashcardInfo{Id: f.Id, Question: f.Question, Answer: f.Answer, NoteId: f.NoteId})
	}
	utils.WriteJsonResponse(w, infos)
}

type createFlashcardRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *FlashcardService) CreateFlashcard(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteId, err := utils.URLParamUUID(r, "note_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createFlashcardRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Question == "" || params.Answer == "" {
		http.Error(w, "question and answer must be specified", http.StatusBadRequest)
		return
	}

	flashcard := schema.Flashcard{Id: uuid.New(), Question: params.Question, Answer: params.Answer, NoteId: noteId}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getOwnedNote(noteId, user, txn); err != nil {
			return err
		}

		result := txn.Create(&flashcard)
		if result.Error != nil {
			slog.Error("sql error creating flashcard", "note_id", noteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating flashcard: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, flashcardInfo{Id: flashcard.Id, Question: flashcard.Question, Answer: flashcard.Answer, NoteId: noteId})
}

func (s *FlashcardService) ListForNote(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteId, err := utils.URLParamUUID(r, "note_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getOwnedNote(noteId, user, s.db); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var flashcards []schema.Flashcard
	result := s.db.Find(&flashcards, "note_id = ?", noteId)
	if result.Error != nil {
		slog.Error("sql error listing flashcards", "note_id", noteId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]flashcardInfo, 0, len(flashcards))
	for _, f := range flashcards {
		infos = append(infos, flashcardInfo{Id: f.Id, Question: f.Question, Answer: f.Answer, NoteId: f.NoteId})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *FlashcardService) getAccessibleFlashcard(flashcardId uuid.UUID, user schema.User) (schema.Flashcard, error) {
	flashcard, err := schema.GetFlashcard(flashcardId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrFlashcardNotFound) {
			return flashcard, CodedError(err, http.StatusNotFound)
		}
		return flashcard, CodedError(err, http.StatusInternalServerError)
	}

	ref := schema.ContentRef{Type: schema.FlashcardContent, Id: flashcardId}
	canView, err := auth.CanViewContent(user, ref, s.db)
	if err != nil {
		return flashcard, CodedError(err, http.StatusInternalServerError)
	}
	if !canView {
		return flashcard, CodedError(schema.ErrFlashcardNotFound, http.StatusNotFound)
	}

	return flashcard, nil
}

func (s *FlashcardService) GetFlashcard(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flashcardId, err := utils.URLParamUUID(r, "flashcard_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flashcard, err := s.getAccessibleFlashcard(flashcardId, user)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, flashcardInfo{Id: flashcard.Id, Question: flashcard.Question, Answer: flashcard.Answer, NoteId: flashcard.NoteId})
}

func (s *FlashcardService) UpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flashcardId, err := utils.URLParamUUID(r, "flashcard_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createFlashcardRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var updated schema.Flashcard

	err = s.db.Transaction(func(txn *gorm.DB) error {
		flashcard, err := schema.GetFlashcard(flashcardId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrFlashcardNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if flashcard.Note.Notebook.UserId != user.Id && !user.IsAdmin {
			return CodedError(schema.ErrFlashcardNotFound, http.StatusNotFound)
		}

		if params.Question != "" {
			flashcard.Question = params.Question
		}
		if params.Answer != "" {
			flashcard.Answer = params.Answer
		}

		result := txn.Model(&schema.Flashcard{Id: flashcardId}).Updates(map[string]interface{}{
			"question": flashcard.Question, "answer": flashcard.Answer,
		})
		if result.Error != nil {
			slog.Error("sql error updating flashcard", "flashcard_id", flashcardId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = flashcard
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating flashcard: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, flashcardInfo{Id: updated.Id, Question: updated.Question, Answer: updated.Answer, NoteId: updated.NoteId})
}

func (s *FlashcardService) DeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flashcardId, err := utils.URLParamUUID(r, "flashcard_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		flashcard, err := schema.GetFlashcard(flashcardId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrFlashcardNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if flashcard.Note.Notebook.UserId != user.Id && !user.IsAdmin {
			return CodedError(schema.ErrFlashcardNotFound, http.StatusNotFound)
		}

		result := txn.Delete(&schema.Flashcard{Id: flashcardId})
		if result.Error != nil {
			slog.Error("sql error deleting flashcard", "flashcard_id", flashcardId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting flashcard: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
