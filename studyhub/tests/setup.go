package tests

import (
	"context"
	"io"
	"testing"

	"studyhub/studyhub/auth"
	"studyhub/studyhub/llm"
	"studyhub/studyhub/schema"
	"studyhub/studyhub/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"

	jwtSecret = "test-secret"
)

// fakeProvider returns canned payloads and runs them through the same batch
// parsing the real provider uses, so malformed payloads fail identically.
type fakeProvider struct {
	quizPayload      string
	flashcardPayload string
	err              error
}

func (f *fakeProvider) GenerateQuizQuestions(ctx context.Context, material string, numQuestions int) ([]llm.GeneratedQuestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return llm.ParseQuestionBatch(f.quizPayload)
}

func (f *fakeProvider) GenerateFlashcards(ctx context.Context, material string, numCards int) ([]llm.GeneratedFlashcard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return llm.ParseFlashcardBatch(f.flashcardPayload)
}

type testEnv struct {
	api      chi.Router
	db       *gorm.DB
	provider *fakeProvider
}

func setupTestEnv(t *testing.T) testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.Notebook{}, &schema.Note{},
		&schema.Quiz{}, &schema.Question{}, &schema.Flashcard{},
		&schema.StudyGroup{}, &schema.GroupMembership{}, &schema.GroupInvitation{},
		&schema.SharedNote{}, &schema.SharedQuiz{}, &schema.SharedFlashcard{},
		&schema.SharedLink{}, &schema.GroupResource{}, &schema.ResourceLike{},
		&schema.ChatMessage{},
	)
	if err != nil {
		t.Fatal(err)
	}

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(io.Discard),
		auth.BasicProviderArgs{
			Secret:        []byte(jwtSecret),
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		quizPayload:      defaultQuizPayload,
		flashcardPayload: defaultFlashcardPayload,
	}

	studyHub := services.NewStudyHub(db, identityProvider, provider, []byte(jwtSecret))

	return testEnv{api: studyHub.Routes(), db: db, provider: provider}
}

const defaultQuizPayload = `[
	{"question": "What is the powerhouse of the cell?", "options": ["Nucleus", "Mitochondria", "Ribosome", "Golgi body"], "correct": "Mitochondria"},
	{"question": "What molecule carries genetic information?", "options": ["RNA", "ATP", "DNA", "Lipid"], "correct": "DNA"}
]`

const defaultFlashcardPayload = `[
	{"question": "Define osmosis", "answer": "Movement of water across a semipermeable membrane"},
	{"question": "Define diffusion", "answer": "Movement of particles from high to low concentration"}
]`

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(tt *testing.T, username string) client {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		tt.Fatal(err)
	}

	if err := c.login(login); err != nil {
		tt.Fatal(err)
	}

	return c
}

func (t *testEnv) adminClient(tt *testing.T) client {
	c := t.newClient()
	if err := c.login(loginInfo{Email: adminEmail, Password: adminPassword}); err != nil {
		tt.Fatal(err)
	}
	return c
}
