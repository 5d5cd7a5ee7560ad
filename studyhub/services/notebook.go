package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"studyhub/studyhub/auth"
	"studyhub/studyhub/schema"
	"studyhub/utils"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotebookService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *NotebookService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateNotebook)
	r.Get("/list", s.List)

	r.Route("/{notebook_id}", func(r chi.Router) {
		r.Get("/", s.GetNotebook)
		r.Post("/update", s.UpdateNotebook)
		r.Delete("/", s.DeleteNotebook)

		r.Post("/notes", s.CreateNote)
		r.Get("/notes", s.ListNotes)
	})

	r.Route("/notes/{note_id}", func(r chi.Router) {
		r.Get("/", s.GetNote)
		r.Post("/update", s.UpdateNote)
		r.Delete("/", s.DeleteNote)
	})

	return r
}

// getOwnedNotebook loads a notebook and verifies the actor owns it. Other
// users' notebooks are reported as not found so their existence does not leak.
func getOwnedNotebook(notebookId uuid.UUID, actor schema.User, db *gorm.DB) (schema.Notebook, error) {
	notebook, err := schema.GetNotebook(notebookId, db)
	if err != nil {
		if errors.Is(err, schema.ErrNotebookNotFound) {
			return notebook, CodedError(err, http.StatusNotFound)
		}
		return notebook, CodedError(err, http.StatusInternalServerError)
	}

	if notebook.UserId != actor.Id && !actor.IsAdmin {
		return notebook, CodedError(schema.ErrNotebookNotFound, http.StatusNotFound)
	}

	return notebook, nil
}

func getOwnedNote(noteId uuid.UUID, actor schema.User, db *gorm.DB) (schema.Note, error) {
	note, err := schema.GetNote(noteId, db)
	if err != nil {
		if errors.Is(err, schema.ErrNoteNotFound) {
			return note, CodedError(err, http.StatusNotFound)
		}
		return note, CodedError(err, http.StatusInternalServerError)
	}

	if note.Notebook.UserId != actor.Id && !actor.IsAdmin {
		return note, CodedError(schema.ErrNoteNotFound, http.StatusNotFound)
	}

	return note, nil
}

type createNotebookRequest struct {
	Title string `json:"title"`
}

type createNotebookResponse struct {
	NotebookId uuid.UUID `json:"notebook_id"`
}

func (s *NotebookService) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createNotebookRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "notebook title must be specified", http.StatusBadRequest)
		return
	}

	notebook := schema.Notebook{Id: uuid.New(), Title: params.Title, CreatedAt: time.Now().UTC(), UserId: user.Id}

	result := s.db.Create(&notebook)
	if result.Error != nil {
		slog.Error("sql error creating notebook", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, createNotebookResponse{NotebookId: notebook.Id})
}

type notebookInfo struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	NoteCount int64     `json:"note_count"`
}

func (s *NotebookService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var notebooks []schema.Notebook
	result := s.db.Preload("Notes").Order("created_at desc").Find(&notebooks, "user_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing notebooks", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]notebookInfo, 0, len(notebooks))
	for _, notebook := range notebooks {
		infos = append(infos, notebookInfo{
			Id: notebook.Id, Title: notebook.Title, CreatedAt: notebook.CreatedAt, NoteCount: int64(len(notebook.Notes)),
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *NotebookService) GetNotebook(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	notebookId, err := utils.URLParamUUID(r, "notebook_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	notebook, err := getOwnedNotebook(notebookId, user, s.db)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, notebookInfo{Id: notebook.Id, Title: notebook.Title, CreatedAt: notebook.CreatedAt})
}

func (s *NotebookService) UpdateNotebook(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	notebookId, err := utils.URLParamUUID(r, "notebook_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createNotebookRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "notebook title must be specified", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		notebook, err := getOwnedNotebook(notebookId, user, txn)
		if err != nil {
			return err
		}

		result := txn.Model(&notebook).Update("title", params.Title)
		if result.Error != nil {
			slog.Error("sql error updating notebook", "notebook_id", notebookId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating notebook: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *NotebookService) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	notebookId, err := utils.URLParamUUID(r, "notebook_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		notebook, err := getOwnedNotebook(notebookId, user, txn)
		if err != nil {
			return err
		}

		result := txn.Select("Notes").Delete(&notebook)
		if result.Error != nil {
			slog.Error("sql error deleting notebook", "notebook_id", notebookId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting notebook: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createNoteResponse struct {
	NoteId uuid.UUID `json:"note_id"`
}

func (s *NotebookService) CreateNote(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	notebookId, err := utils.URLParamUUID(r, "notebook_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createNoteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "note title must be specified", http.StatusBadRequest)
		return
	}

	note := schema.Note{Id: uuid.New(), Title: params.Title, Content: params.Content, CreatedAt: time.Now().UTC(), NotebookId: notebookId}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getOwnedNotebook(notebookId, user, txn); err != nil {
			return err
		}

		result := txn.Create(&note)
		if result.Error != nil {
			slog.Error("sql error creating note", "notebook_id", notebookId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating note: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createNoteResponse{NoteId: note.Id})
}

type noteInfo struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *NotebookService) ListNotes(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	notebookId, err := utils.URLParamUUID(r, "notebook_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getOwnedNotebook(notebookId, user, s.db); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var notes []schema.Note
	result := s.db.Order("created_at desc").Find(&notes, "notebook_id = ?", notebookId)
	if result.Error != nil {
		slog.Error("sql error listing notes", "notebook_id", notebookId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]noteInfo, 0, len(notes))
	for _, note := range notes {
		infos = append(infos, noteInfo{Id: note.Id, Title: note.Title, Content: note.Content, CreatedAt: note.CreatedAt})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *NotebookService) GetNote(w http.ResponseWriter, r *http.Request) {
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

	utils.WriteJsonResponse(w, noteInfo{Id: note.Id, Title: note.Title, Content: note.Content, CreatedAt: note.CreatedAt})
}

func (s *NotebookService) UpdateNote(w http.ResponseWriter, r *http.Request) {
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

	var params createNoteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		note, err := getOwnedNote(noteId, user, txn)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if params.Title != "" {
			updates["title"] = params.Title
		}
		if params.Content != "" {
			updates["content"] = params.Content
		}
		if len(updates) == 0 {
			return nil
		}

		result := txn.Model(&note).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating note", "note_id", noteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating note: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *NotebookService) DeleteNote(w http.ResponseWriter, r *http.Request) {
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		note, err := getOwnedNote(noteId, user, txn)
		if err != nil {
			return err
		}

		result := txn.Delete(&schema.Note{Id: note.Id})
		if result.Error != nil {
			slog.Error("sql error deleting note", "note_id", noteId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting note: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
