package services

import (
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

type ChatService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// GroupRoutes is mounted under /group/{group_id}/chat behind the member-only
// middleware.
func (s *ChatService) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.PostMessage)
	r.Get("/", s.ListMessages)

	return r
}

// postSystemMessage records membership events (joins, leaves) in the group's
// chat history.
func postSystemMessage(txn *gorm.DB, groupId, userId uuid.UUID, message string) error {
	msg := schema.ChatMessage{
		Id: uuid.New(), GroupId: groupId, UserId: userId,
		Message: message, Type: schema.SystemMessage, CreatedAt: time.Now().UTC(),
	}
	result := txn.Create(&msg)
	if result.Error != nil {
		slog.Error("sql error creating system message", "group_id", groupId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

// postResourceMessage links a chat message to a resource shared into the
// group.
func postResourceMessage(txn *gorm.DB, groupId, userId uuid.UUID, message, resourceType string, resourceId uuid.UUID) error {
	msg := schema.ChatMessage{
		Id: uuid.New(), GroupId: groupId, UserId: userId,
		Message: message, Type: schema.ResourceMessage,
		ResourceType: &resourceType, ResourceId: &resourceId,
		CreatedAt: time.Now().UTC(),
	}
	result := txn.Create(&msg)
	if result.Error != nil {
		slog.Error("sql error creating resource message", "group_id", groupId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

type postMessageRequest struct {
	Message string `json:"message"`
}

type messageInfo struct {
	Id           uuid.UUID  `json:"id"`
	UserId       uuid.UUID  `json:"user_id"`
	Username     string     `json:"username"`
	Message      string     `json:"message"`
	Type         string     `json:"type"`
	ResourceType *string    `json:"resource_type,omitempty"`
	ResourceId   *uuid.UUID `json:"resource_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *ChatService) PostMessage(w http.ResponseWriter, r *http.Request) {
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

	var params postMessageRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Message == "" {
		http.Error(w, "message cannot be empty", http.StatusBadRequest)
		return
	}

	msg := schema.ChatMessage{
		Id: uuid.New(), GroupId: groupId, UserId: user.Id,
		Message: params.Message, Type: schema.TextMessage, CreatedAt: time.Now().UTC(),
	}

	result := s.db.Create(&msg)
	if result.Error != nil {
		slog.Error("sql error creating chat message", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, messageInfo{
		Id: msg.Id, UserId: user.Id, Username: user.Username,
		Message: msg.Message, Type: msg.Type, CreatedAt: msg.CreatedAt,
	})
}

const defaultMessageLimit = 100

func (s *ChatService) ListMessages(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 1 || limit > 1000 {
			http.Error(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
	}

	query := s.db.Preload("User").Where("group_id = ?", groupId)

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid 'since' timestamp: %v", err), http.StatusBadRequest)
			return
		}
		query = query.Where("created_at > ?", since)
	}

	var messages []schema.ChatMessage
	result := query.Order("created_at asc").Limit(limit).Find(&messages)
	if result.Error != nil {
		slog.Error("sql error listing chat messages", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]messageInfo, 0, len(messages))
	for _, msg := range messages {
		info := messageInfo{
			Id: msg.Id, UserId: msg.UserId, Message: msg.Message, Type: msg.Type,
			ResourceType: msg.ResourceType, ResourceId: msg.ResourceId, CreatedAt: msg.CreatedAt,
		}
		if msg.User != nil {
			info.Username = msg.User.Username
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}
