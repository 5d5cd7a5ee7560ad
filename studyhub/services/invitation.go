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

type InvitationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// GroupRoutes is mounted under /group/{group_id}/invitations behind the
// member-only middleware.
func (s *InvitationService) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Invite)
	r.Get("/", s.ListForGroup)

	return r
}

// Routes is the top-level /invitation router for invitee-facing operations.
func (s *InvitationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.ListMine)
	r.Post("/{invitation_id}/accept", s.Accept)
	r.Post("/{invitation_id}/decline", s.Decline)

	return r
}

type inviteRequest struct {
	Username string `json:"username"`
}

type inviteResponse struct {
	InvitationId uuid.UUID `json:"invitation_id"`
}

func (s *InvitationService) Invite(w http.ResponseWriter, r *http.Request) {
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

	var params inviteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Username == "" {
		http.Error(w, "username must be specified", http.StatusBadRequest)
		return
	}

	invitation := schema.GroupInvitation{
		Id: uuid.New(), GroupId: groupId, InvitedById: user.Id,
		Status: schema.InvitePending, CreatedAt: time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		invitee, err := schema.GetUserByUsername(params.Username, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if invitee.Id == user.Id {
			return CodedError(errors.New("cannot invite yourself to a group"), http.StatusConflict)
		}

		isMember, err := schema.IsMember(groupId, invitee.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if isMember {
			return CodedError(fmt.Errorf("user %v is already a member of the group", params.Username), http.StatusConflict)
		}

		// Only pending rows block re-invitation; resolved rows are history.
		var pending schema.GroupInvitation
		result := txn.Limit(1).Find(&pending, "group_id = ? and invited_user_id = ? and status = ?", groupId, invitee.Id, schema.InvitePending)
		if result.Error != nil {
			slog.Error("sql error checking for pending invitation", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user %v already has a pending invitation to the group", params.Username), http.StatusConflict)
		}

		invitation.InvitedUserId = invitee.Id
		result = txn.Create(&invitation)
		if result.Error != nil {
			slog.Error("sql error creating invitation", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating invitation: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("invitation created", "invitation_id", invitation.Id, "group_id", groupId, "invited_by", user.Id)

	utils.WriteJsonResponse(w, inviteResponse{InvitationId: invitation.Id})
}

type invitationInfo struct {
	Id          uuid.UUID `json:"id"`
	GroupId     uuid.UUID `json:"group_id"`
	GroupName   string    `json:"group_name"`
	InvitedUser uuid.UUID `json:"invited_user_id"`
	InvitedBy   string    `json:"invited_by"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func invitationResponse(inv schema.GroupInvitation) invitationInfo {
	info := invitationInfo{
		Id: inv.Id, GroupId: inv.GroupId, InvitedUser: inv.InvitedUserId,
		Status: inv.Status, CreatedAt: inv.CreatedAt,
	}
	if inv.Group != nil {
		info.GroupName = inv.Group.Name
	}
	if inv.InvitedBy != nil {
		info.InvitedBy = inv.InvitedBy.Username
	}
	return info
}

func (s *InvitationService) ListForGroup(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var invitations []schema.GroupInvitation
	result := s.db.Preload("Group").Preload("InvitedBy").
		Find(&invitations, "group_id = ? and status = ?", groupId, schema.InvitePending)
	if result.Error != nil {
		slog.Error("sql error listing group invitations", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]invitationInfo, 0, len(invitations))
	for _, inv := range invitations {
		infos = append(infos, invitationResponse(inv))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *InvitationService) ListMine(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var invitations []schema.GroupInvitation
	result := s.db.Preload("Group").Preload("InvitedBy").
		Find(&invitations, "invited_user_id = ? and status = ?", user.Id, schema.InvitePending)
	if result.Error != nil {
		slog.Error("sql error listing user invitations", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]invitationInfo, 0, len(invitations))
	for _, inv := range invitations {
		infos = append(infos, invitationResponse(inv))
	}

	utils.WriteJsonResponse(w, infos)
}

// resolveInvitation transitions a pending invitation to accepted or declined.
// Only the invitee may resolve it; for anyone else the invitation does not
// exist.
func (s *InvitationService) resolveInvitation(w http.ResponseWriter, r *http.Request, accept bool) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	invitationId, err := utils.URLParamUUID(r, "invitation_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		invitation, err := schema.GetInvitation(invitationId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrInvitationNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if invitation.InvitedUserId != user.Id {
			return CodedError(schema.ErrInvitationNotFound, http.StatusNotFound)
		}

		if invitation.Status != schema.InvitePending {
			return CodedError(fmt.Errorf("invitation has already been %v", invitation.Status), http.StatusConflict)
		}

		newStatus := schema.InviteDeclined
		if accept {
			newStatus = schema.InviteAccepted
		}

		result := txn.Model(&schema.GroupInvitation{Id: invitationId}).Update("status", newStatus)
		if result.Error != nil {
			slog.Error("sql error updating invitation status", "invitation_id", invitationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if !accept {
			return nil
		}

		// Accepting when already a member still resolves the invitation.
		err = addMember(txn, invitation.GroupId, user.Id, schema.MemberRole)
		if err != nil {
			if GetResponseCode(err) == http.StatusConflict {
				return nil
			}
			return err
		}

		return postSystemMessage(txn, invitation.GroupId, user.Id, fmt.Sprintf("%v joined the group", user.Username))
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error resolving invitation: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *InvitationService) Accept(w http.ResponseWriter, r *http.Request) {
	s.resolveInvitation(w, r, true)
}

func (s *InvitationService) Decline(w http.ResponseWriter, r *http.Request) {
	s.resolveInvitation(w, r, false)
}
