package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"studyhub/studyhub/auth"
	"studyhub/studyhub/schema"
	"studyhub/utils"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type SharingService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	jwtManager *auth.JwtManager
}

// GroupRoutes is mounted under /group/{group_id}/share behind the member-only
// middleware.
func (s *SharingService) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.ShareContent)
	r.Delete("/", s.UnshareContent)
	r.Get("/", s.ListShared)

	return r
}

// Routes is the top-level /shared router. Link resolution takes an optional
// bearer token instead of the auth middleware chain so public links work
// without an account.
func (s *SharingService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{link_id}", s.ResolveLink)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/links", s.CreateLink)
		r.Get("/links", s.ListMyLinks)
		r.Delete("/links/{link_id}", s.DeleteLink)
	})

	return r
}

type shareContentRequest struct {
	ContentType string    `json:"content_type"`
	ContentId   uuid.UUID `json:"content_id"`
}

func (s *SharingService) parseContentRef(w http.ResponseWriter, r *http.Request) (schema.ContentRef, bool) {
	var params shareContentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return schema.ContentRef{}, false
	}

	ref, err := schema.NewContentRef(params.ContentType, params.ContentId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return schema.ContentRef{}, false
	}

	return ref, true
}

// checkContentOwner verifies the actor owns the content being shared.
func checkContentOwner(txn *gorm.DB, ref schema.ContentRef, user schema.User) error {
	ownerId, err := ref.Owner(txn)
	if err != nil {
		if errors.Is(err, schema.ContentNotFoundError(ref.Type)) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}

	if ownerId != user.Id && !user.IsAdmin {
		return CodedError(fmt.Errorf("only the owner can share a %v", ref.Type), http.StatusForbidden)
	}

	return nil
}

// shareIntoGroup inserts the per-type share row, reporting duplicates as
// conflicts.
func shareIntoGroup(txn *gorm.DB, ref schema.ContentRef, groupId, sharerId uuid.UUID) error {
	now := time.Now().UTC()

	var existing int64
	var row interface{}

	switch ref.Type {
	case schema.NoteContent:
		result := txn.Model(&schema.SharedNote{}).Where("note_id = ? and group_id = ?", ref.Id, groupId).Count(&existing)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate share", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		row = &schema.SharedNote{Id: uuid.New(), NoteId: ref.Id, GroupId: groupId, SharedById: sharerId, SharedAt: now}
	case schema.QuizContent:
		result := txn.Model(&schema.SharedQuiz{}).Where("quiz_id = ? and group_id = ?", ref.Id, groupId).Count(&existing)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate share", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		row = &schema.SharedQuiz{Id: uuid.New(), QuizId: ref.Id, GroupId: groupId, SharedById: sharerId, SharedAt: now}
	case schema.FlashcardContent:
		result := txn.Model(&schema.SharedFlashcard{}).Where("flashcard_id = ? and group_id = ?", ref.Id, groupId).Count(&existing)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate share", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		row = &schema.SharedFlashcard{Id: uuid.New(), FlashcardId: ref.Id, GroupId: groupId, SharedById: sharerId, SharedAt: now}
	}

	if existing != 0 {
		return CodedError(fmt.Errorf("%v is already shared with this group", ref.Type), http.StatusConflict)
	}

	result := txn.Create(row)
	if result.Error != nil {
		slog.Error("sql error creating share", "content_type", ref.Type, "group_id", groupId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

func (s *SharingService) ShareContent(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref, ok := s.parseContentRef(w, r)
	if !ok {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkContentExists(txn, ref); err != nil {
			return err
		}
		if err := checkContentOwner(txn, ref, user); err != nil {
			return err
		}
		return shareIntoGroup(txn, ref, groupId, user.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error sharing content: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("content shared with group", "content_type", ref.Type, "content_id", ref.Id, "group_id", groupId)

	utils.WriteSuccess(w)
}

func (s *SharingService) UnshareContent(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref, ok := s.parseContentRef(w, r)
	if !ok {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var sharerId uuid.UUID
		var find, del *gorm.DB

		switch ref.Type {
		case schema.NoteContent:
			var share schema.SharedNote
			find = txn.Limit(1).Find(&share, "note_id = ? and group_id = ?", ref.Id, groupId)
			sharerId = share.SharedById
			del = txn.Where("note_id = ? and group_id = ?", ref.Id, groupId).Delete(&schema.SharedNote{})
		case schema.QuizContent:
			var share schema.SharedQuiz
			find = txn.Limit(1).Find(&share, "quiz_id = ? and group_id = ?", ref.Id, groupId)
			sharerId = share.SharedById
			del = txn.Where("quiz_id = ? and group_id = ?", ref.Id, groupId).Delete(&schema.SharedQuiz{})
		case schema.FlashcardContent:
			var share schema.SharedFlashcard
			find = txn.Limit(1).Find(&share, "flashcard_id = ? and group_id = ?", ref.Id, groupId)
			sharerId = share.SharedById
			del = txn.Where("flashcard_id = ? and group_id = ?", ref.Id, groupId).Delete(&schema.SharedFlashcard{})
		}

		if find.Error != nil {
			slog.Error("sql error looking up share", "error", find.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if find.RowsAffected == 0 {
			return CodedError(fmt.Errorf("%v is not shared with this group", ref.Type), http.StatusNotFound)
		}

		if sharerId != user.Id && !user.IsAdmin {
			return CodedError(errors.New("only the user who shared the content can unshare it"), http.StatusForbidden)
		}

		if del.Error != nil {
			slog.Error("sql error deleting share", "error", del.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error unsharing content: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type sharedContentEntry struct {
	ContentId uuid.UUID `json:"content_id"`
	Title     string    `json:"title"`
	SharedBy  uuid.UUID `json:"shared_by"`
	SharedAt  time.Time `json:"shared_at"`
}

type sharedContentResponse struct {
	Notes      []sharedContentEntry `json:"notes"`
	Quizzes    []sharedContentEntry `json:"quizzes"`
	Flashcards []sharedContentEntry `json:"flashcards"`
}

func (s *SharingService) ListShared(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := sharedContentResponse{
		Notes:      []sharedContentEntry{},
		Quizzes:    []sharedContentEntry{},
		Flashcards: []sharedContentEntry{},
	}

	var sharedNotes []schema.SharedNote
	result := s.db.Preload("Note").Find(&sharedNotes, "group_id = ?", groupId)
	if result.Error != nil {
		slog.Error("sql error listing shared notes", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	for _, share := range sharedNotes {
		entry := sharedContentEntry{ContentId: share.NoteId, SharedBy: share.SharedById, SharedAt: share.SharedAt}
		if share.Note != nil {
			entry.Title = share.Note.Title
		}
		res.Notes = append(res.Notes, entry)
	}

	var sharedQuizzes []schema.SharedQuiz
	result = s.db.Preload("Quiz").Preload("Quiz.Note").Find(&sharedQuizzes, "group_id = ?", groupId)
	if result.Error != nil {
		slog.Error("sql error listing shared quizzes", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	for _, share := range sharedQuizzes {
		entry := sharedContentEntry{ContentId: share.QuizId, SharedBy: share.SharedById, SharedAt: share.SharedAt}
		if share.Quiz != nil && share.Quiz.Note != nil {
			entry.Title = share.Quiz.Note.Title
		}
		res.Quizzes = append(res.Quizzes, entry)
	}

	var sharedFlashcards []schema.SharedFlashcard
	result = s.db.Preload("Flashcard").Find(&sharedFlashcards, "group_id = ?", groupId)
	if result.Error != nil {
		slog.Error("sql error listing shared flashcards", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	for _, share := range sharedFlashcards {
		entry := sharedContentEntry{ContentId: share.FlashcardId, SharedBy: share.SharedById, SharedAt: share.SharedAt}
		if share.Flashcard != nil {
			entry.Title = share.Flashcard.Question
		}
		res.Flashcards = append(res.Flashcards, entry)
	}

	utils.WriteJsonResponse(w, res)
}

type createLinkRequest struct {
	ContentType string     `json:"content_type"`
	ContentId   uuid.UUID  `json:"content_id"`
	AccessLevel string     `json:"access_level"`
	GroupId     *uuid.UUID `json:"group_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

type linkInfo struct {
	LinkId      string     `json:"link_id"`
	ContentType string     `json:"content_type"`
	ContentId   uuid.UUID  `json:"content_id"`
	AccessLevel string     `json:"access_level"`
	GroupId     *uuid.UUID `json:"group_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

func linkResponse(link schema.SharedLink) linkInfo {
	return linkInfo{
		LinkId: link.LinkId, ContentType: link.ContentType, ContentId: link.ContentId,
		AccessLevel: link.AccessLevel, GroupId: link.GroupId,
		Title: link.Title, Description: link.Description, CreatedAt: link.CreatedAt,
	}
}

func (s *SharingService) CreateLink(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createLinkRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.AccessLevel == "" {
		params.AccessLevel = schema.Public
	}
	if err := schema.CheckValidAccess(params.AccessLevel); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ref, err := schema.NewContentRef(params.ContentType, params.ContentId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.AccessLevel == schema.GroupOnly && params.GroupId == nil {
		http.Error(w, "group_id must be specified for group level links", http.StatusUnprocessableEntity)
		return
	}
	if params.AccessLevel != schema.GroupOnly {
		params.GroupId = nil
	}

	linkId, err := newLinkId()
	if err != nil {
		slog.Error("error generating link id", "error", err)
		http.Error(w, "error generating link id", http.StatusInternalServerError)
		return
	}

	link := schema.SharedLink{
		Id: uuid.New(), LinkId: linkId,
		ContentType: ref.Type, ContentId: ref.Id,
		AccessLevel: params.AccessLevel, GroupId: params.GroupId,
		CreatedById: user.Id, Title: params.Title, Description: params.Description,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkContentExists(txn, ref); err != nil {
			return err
		}
		if err := checkContentOwner(txn, ref, user); err != nil {
			return err
		}

		if params.GroupId != nil {
			if err := checkGroupExists(txn, *params.GroupId); err != nil {
				return err
			}
			isMember, err := schema.IsMember(*params.GroupId, user.Id, txn)
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			if !isMember && !user.IsAdmin {
				return CodedError(errors.New("must be a member of the group to create a group level link"), http.StatusForbidden)
			}
		}

		result := txn.Create(&link)
		if result.Error != nil {
			slog.Error("sql error creating shared link", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating shared link: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("shared link created", "link_id", link.LinkId, "content_type", ref.Type, "access_level", link.AccessLevel)

	utils.WriteJsonResponse(w, linkResponse(link))
}

func (s *SharingService) ListMyLinks(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var links []schema.SharedLink
	result := s.db.Order("created_at desc").Find(&links, "created_by_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing shared links", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]linkInfo, 0, len(links))
	for _, link := range links {
		infos = append(infos, linkResponse(link))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *SharingService) DeleteLink(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	linkId, err := utils.URLParam(r, "link_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		link, err := schema.GetSharedLink(linkId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrLinkNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if link.CreatedById != user.Id && !user.IsAdmin {
			return CodedError(errors.New("only the creator of a link can delete it"), http.StatusForbidden)
		}

		result := txn.Delete(&schema.SharedLink{Id: link.Id})
		if result.Error != nil {
			slog.Error("sql error deleting shared link", "link_id", linkId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting shared link: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// actorFromOptionalBearer returns the authenticated user if the request
// carries a valid bearer token, nil if it carries none. An invalid or expired
// token is an error so that a caller with bad credentials is not silently
// downgraded to anonymous.
func (s *SharingService) actorFromOptionalBearer(r *http.Request) (*schema.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return nil, errors.New("malformed Authorization header")
	}

	userId, err := s.jwtManager.DecodeUserJwt(token)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

type resolvedLinkResponse struct {
	LinkId      string      `json:"link_id"`
	ContentType string      `json:"content_type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Content     interface{} `json:"content"`
}

func (s *SharingService) linkPayload(link schema.SharedLink) (interface{}, error) {
	switch link.ContentType {
	case schema.NoteContent:
		note, err := schema.GetNote(link.ContentId, s.db)
		if err != nil {
			return nil, err
		}
		payload := map[string]interface{}{
			"title": note.Title, "content": note.Content, "created_at": note.CreatedAt,
		}
		if note.Notebook != nil {
			payload["notebook_title"] = note.Notebook.Title
		}
		return payload, nil
	case schema.QuizContent:
		quiz, err := schema.GetQuiz(link.ContentId, s.db, true)
		if err != nil {
			return nil, err
		}
		questions := make([]questionInfo, 0, len(quiz.Questions))
		for _, q := range quiz.Questions {
			options, err := q.OptionList()
			if err != nil {
				return nil, fmt.Errorf("error decoding options for question %v: %w", q.Id, err)
			}
			questions = append(questions, questionInfo{Id: q.Id, Question: q.Question, Options: options, Correct: q.Correct})
		}
		payload := map[string]interface{}{"quiz_id": quiz.Id, "questions": questions}
		if quiz.Note != nil {
			payload["title"] = quiz.Note.Title
		}
		return payload, nil
	case schema.FlashcardContent:
		flashcard, err := schema.GetFlashcard(link.ContentId, s.db)
		if err != nil {
			return nil, err
		}
		payload := map[string]interface{}{"question": flashcard.Question, "answer": flashcard.Answer}
		if flashcard.Note != nil {
			payload["note_title"] = flashcard.Note.Title
		}
		return payload, nil
	}
	return nil, fmt.Errorf("link has invalid content type '%v'", link.ContentType)
}

func (s *SharingService) ResolveLink(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(linkResolutionMetric)
	defer timer.ObserveDuration()

	linkId, err := utils.URLParam(r, "link_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	link, err := schema.GetSharedLink(linkId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrLinkNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	actor, err := s.actorFromOptionalBearer(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	canView, err := auth.CanViewLink(actor, link, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !canView {
		linkDeniedCounter.Inc()
		if actor == nil {
			http.Error(w, "authentication required to view this link", http.StatusUnauthorized)
			return
		}
		http.Error(w, "you do not have access to this link", http.StatusForbidden)
		return
	}

	payload, err := s.linkPayload(link)
	if err != nil {
		// Dangling links are possible since content deletion does not sweep
		// link rows. Report the content, not the link, as missing.
		if errors.Is(err, schema.ContentNotFoundError(link.ContentType)) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("error building link payload", "link_id", linkId, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, resolvedLinkResponse{
		LinkId: link.LinkId, ContentType: link.ContentType,
		Title: link.Title, Description: link.Description, Content: payload,
	})
}
