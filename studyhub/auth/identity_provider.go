package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"studyhub/studyhub/schema"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFoundWithEmail = errors.New("no user found for given email")
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrGeneratingJwt         = errors.New("error generating jwt")
	ErrEmailAlreadyInUse     = errors.New("email is already in use")
	ErrUsernameAlreadyInUse  = errors.New("username is already in use")
	ErrInvalidUsername       = errors.New("usernames must be 3 to 32 characters of letters, digits, or underscores")
	ErrInvalidEmail          = errors.New("invalid email address")
)

// Usernames appear in chat system messages and invitations, so they are
// restricted to a shape that is safe to render anywhere.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

func checkNewUserFields(username, email string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

// IdentityProvider abstracts account management so the services never touch
// credentials directly. BasicIdentityProvider is the bcrypt-backed
// implementation; an SSO-backed provider would disable direct signup and
// implement LoginWithToken instead.
type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	AllowDirectSignup() bool

	LoginWithEmail(email, password string) (LoginResult, error)

	LoginWithToken(accessToken string) (LoginResult, error)

	CreateUser(username, email, password string) (uuid.UUID, error)

	DeleteUser(userId uuid.UUID) error

	GetTokenExpiration(r *http.Request) (time.Time, error)
}

// seedAdminUser guarantees a usable admin account on startup. If the
// configured account already exists it is promoted to admin rather than
// recreated, so a restart never clobbers its password.
func seedAdminUser(db *gorm.DB, username, email string, password []byte) error {
	return db.Transaction(func(txn *gorm.DB) error {
		var existing schema.User
		result := txn.Limit(1).Find(&existing, "username = ? or email = ?", username, email)
		if result.Error != nil {
			slog.Error("sql error checking for existing admin user", "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		if result.RowsAffected != 0 {
			if existing.IsAdmin {
				return nil
			}
			result := txn.Model(&schema.User{Id: existing.Id}).Update("is_admin", true)
			if result.Error != nil {
				slog.Error("sql error promoting seed admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			slog.Info("promoted existing user to admin", "username", username)
			return nil
		}

		admin := schema.User{
			Id: uuid.New(), Username: username, Email: email,
			Password: password, IsAdmin: true,
		}
		result = txn.Create(&admin)
		if result.Error != nil {
			slog.Error("sql error creating seed admin user", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		slog.Info("created admin user", "username", username)
		return nil
	})
}

type requestContextKey string

const UserRequestContextKey requestContextKey = "user"
