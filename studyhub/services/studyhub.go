package services

import (
	"log"
	"net/http"
	"os"
	"studyhub/studyhub/auth"
	"studyhub/studyhub/llm"
	"studyhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type StudyHub struct {
	user      UserService
	notebook  NotebookService
	quiz      QuizService
	flashcard FlashcardService
	group     GroupService
	invite    InvitationService
	sharing   SharingService

	db *gorm.DB
}

func NewStudyHub(db *gorm.DB, userAuth auth.IdentityProvider, provider llm.Provider, secret []byte) StudyHub {
	invite := InvitationService{db: db, userAuth: userAuth}
	sharing := SharingService{db: db, userAuth: userAuth, jwtManager: auth.NewJwtManager(secret)}
	resources := ResourceService{db: db, userAuth: userAuth}
	chat := ChatService{db: db, userAuth: userAuth}

	return StudyHub{
		user:      UserService{db: db, userAuth: userAuth},
		notebook:  NotebookService{db: db, userAuth: userAuth},
		quiz:      QuizService{db: db, userAuth: userAuth, provider: provider},
		flashcard: FlashcardService{db: db, userAuth: userAuth, provider: provider},
		group: GroupService{
			db: db, userAuth: userAuth,
			invitations: &invite, sharing: &sharing, resources: &resources, chat: &chat,
		},
		invite:  invite,
		sharing: sharing,
		db:      db,
	}
}

func (h *StudyHub) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", h.user.Routes())
	r.Mount("/notebook", h.notebook.Routes())
	r.Mount("/quiz", h.quiz.Routes())
	r.Mount("/flashcard", h.flashcard.Routes())
	r.Mount("/group", h.group.Routes())
	r.Mount("/invitation", h.invite.Routes())
	r.Mount("/shared", h.sharing.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
