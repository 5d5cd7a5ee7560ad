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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type QuizService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	provider llm.Provider
}

func (s *QuizService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/generate/{note_id}", s.Generate)
	r.Get("/list", s.List)
	r.Get("/note/{note_id}", s.LatestForNote)
	r.Get("/{quiz_id}", s.GetQuiz)
	r.Delete("/{quiz_id}", s.DeleteQuiz)

	return r
}

type generateQuizRequest struct {
	NumQuestions int `json:"num_questions"`
}

const defaultNumQuestions = 5

// generationErrorCode maps provider failures to response codes. Timeouts and
// quota errors indicate the upstream is unavailable, a malformed payload is an
// internal failure whose raw payload is surfaced for debugging.
func generationErrorCode(err error) int {
	if errors.Is(err, llm.ErrTimedOut) {
		return http.StatusServiceUnavailable
	}
	var malformed *llm.MalformedResponseError
	if errors.As(err, &malformed) {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func generationErrorMessage(op string, err error) string {
	var malformed *llm.MalformedResponseError
	if errors.As(err, &malformed) {
		return fmt.Sprintf("%v: %v: %v", op, malformed.Reason, malformed.Raw)
	}
	return fmt.Sprintf("%v: %v", op, err)
}

func (s *QuizService) Generate(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(quizGenerationMetric)
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

	params := generateQuizRequest{NumQuestions: defaultNumQuestions}
	if r.ContentLength > 0 && !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.NumQuestions < 1 || params.NumQuestions > 20 {
		http.Error(w, "num_questions must be between 1 and 20", http.StatusUnprocessableEntity)
		return
	}

	note, err := getOwnedNote(noteId, user, s.db)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	if note.Content == "" {
		http.Error(w, "note has no content to generate a quiz from", http.StatusUnprocessableEntity)
		return
	}

	slog.Info("generating quiz", "note_id", noteId, "num_questions", params.NumQuestions)

	generated, err := s.provider.GenerateQuizQuestions(r.Context(), note.Content, params.NumQuestions)
	if err != nil {
		generationFailures.Inc()
		slog.Error("quiz generation failed", "note_id", noteId, "error", err)
		http.Error(w, generationErrorMessage("error generating quiz", err), generationErrorCode(err))
		return
	}

	quiz := schema.Quiz{Id: uuid.New(), CreatedAt: time.Now().UTC(), NoteId: noteId}
	questions := make([]schema.Question, 0, len(generated))
	for _, q := range generated {
		options, err := schema.EncodeOptions(q.Options)
		if err != nil {
			http.Error(w, fmt.Sprintf("error encoding question options: %v", err), http.StatusInternalServerError)
			return
		}
		questions = append(questions, schema.Question{
			Id: uuid.New(), QuizId: quiz.Id, Question: q.Question, Options: options, Correct: q.Correct,
		})
	}
	quiz.Questions = questions

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&quiz)
		if result.Error != nil {
			slog.Error("sql error creating quiz", "note_id", noteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error saving quiz: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("quiz generated", "quiz_id", quiz.Id, "note_id", noteId, "questions", len(questions))

	s.writeQuiz(w, quiz, note)
}

type questionInfo struct {
	Id       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	Correct  string    `json:"correct"`
}

type quizInfo struct {
	Id        uuid.UUID      `json:"id"`
	NoteId    uuid.UUID      `json:"note_id"`
	NoteTitle string         `json:"note_title"`
	CreatedAt time.Time      `json:"created_at"`
	Questions []questionInfo `json:"questions"`
}

func quizResponse(quiz schema.Quiz, note schema.Note) (quizInfo, error) {
	info := quizInfo{Id: quiz.Id, NoteId: note.Id, NoteTitle: note.Title, CreatedAt: quiz.CreatedAt}
	for _, q := range quiz.Questions {
		options, err := q.OptionList()
		if err != nil {
			return info, fmt.Errorf("error decoding options for question %v: %w", q.Id, err)
		}
		info.Questions = append(info.Questions, questionInfo{Id: q.Id, Question: q.Question, Options: options, Correct: q.Correct})
	}
	return info, nil
}

func (s *QuizService) writeQuiz(w http.ResponseWriter, quiz schema.Quiz, note schema.Note) {
	info, err := quizResponse(quiz, note)
	if err != nil {
		slog.Error("error building quiz response", "quiz_id", quiz.Id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, info)
}

type quizListEntry struct {
	Id        uuid.UUID `json:"id"`
	NoteId    uuid.UUID `json:"note_id"`
	NoteTitle string    `json:"note_title"`
	CreatedAt time.Time `json:"created_at"`
	Questions int64     `json:"question_count"`
}

func (s *QuizService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var quizzes []schema.Quiz
	result := s.db.Preload("Note").
		Joins("JOIN notes ON notes.id = quizzes.note_id").
		Joins("JOIN notebooks ON notebooks.id = notes.notebook_id").
		Where("notebooks.user_id = ?", user.Id).
		Order("quizzes.created_at desc").
		Find(&quizzes)
	if result.Error != nil {
		slog.Error("sql error listing quizzes", "user_id", user.Id, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]quizListEntry, 0, len(quizzes))
	for _, quiz := range quizzes {
		entry := quizListEntry{Id: quiz.Id, NoteId: quiz.NoteId, CreatedAt: quiz.CreatedAt}
		if quiz.Note != nil {
			entry.NoteTitle = quiz.Note.Title
		}

		result := s.db.Model(&schema.Question{}).Where("quiz_id = ?", quiz.Id).Count(&entry.Questions)
		if result.Error != nil {
			slog.Error("sql error counting questions", "quiz_id", quiz.Id, "error", result.Error)
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
			return
		}

		entries = append(entries, entry)
	}

	utils.WriteJsonResponse(w, entries)
}

func (s *QuizService) GetQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	quizId, err := utils.URLParamUUID(r, "quiz_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quiz, err := s.getAccessibleQuiz(quizId, user)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	s.writeQuiz(w, quiz, *quiz.Note)
}

// getAccessibleQuiz permits the owner, admins, and members of any group the
// quiz has been shared into.
func (s *QuizService) getAccessibleQuiz(quizId uuid.UUID, user schema.User) (schema.Quiz, error) {
	quiz, err := schema.GetQuiz(quizId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrQuizNotFound) {
			return quiz, CodedError(err, http.StatusNotFound)
		}
		return quiz, CodedError(err, http.StatusInternalServerError)
	}

	ref := schema.ContentRef{Type: schema.QuizContent, Id: quizId}
	canView, err := auth.CanViewContent(user, ref, s.db)
	if err != nil {
		return quiz, CodedError(err, http.StatusInternalServerError)
	}
	if !canView {
		return quiz, CodedError(schema.ErrQuizNotFound, http.StatusNotFound)
	}

	return quiz, nil
}

func (s *QuizService) LatestForNote(w http.ResponseWriter, r *http.Request) {
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

	note, err := getOwnedNote(noteId, user, s.db)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var quiz schema.Quiz
	result := s.db.Preload("Questions").Order("created_at desc").Limit(1).Find(&quiz, "note_id = ?", noteId)
	if result.Error != nil {
		slog.Error("sql error loading latest quiz", "note_id", noteId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, schema.ErrQuizNotFound.Error(), http.StatusNotFound)
		return
	}

	s.writeQuiz(w, quiz, note)
}

func (s *QuizService) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	quizId, err := utils.URLParamUUID(r, "quiz_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		quiz, err := schema.GetQuiz(quizId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrQuizNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if quiz.Note.Notebook.UserId != user.Id && !user.IsAdmin {
			return CodedError(schema.ErrQuizNotFound, http.StatusNotFound)
		}

		result := txn.Select("Questions").Delete(&schema.Quiz{Id: quizId})
		if result.Error != nil {
			slog.Error("sql error deleting quiz", "quiz_id", quizId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting quiz: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
