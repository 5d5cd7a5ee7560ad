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

type GroupService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	invitations *InvitationService
	sharing     *SharingService
	resources   *ResourceService
	chat        *ChatService
}

func (s *GroupService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateGroup)
	r.Get("/list", s.ListMine)
	r.Get("/public", s.ListPublic)

	r.Route("/{group_id}", func(r chi.Router) {
		r.Get("/", s.GetGroup)
		r.Post("/join", s.JoinGroup)
		r.Post("/leave", s.LeaveGroup)

		r.Group(func(r chi.Router) {
			r.Use(auth.GroupAdminOnly(s.db))

			r.Post("/update", s.UpdateGroup)
			r.Delete("/", s.DeleteGroup)

			r.Delete("/members/{user_id}", s.RemoveMember)
			r.Post("/members/{user_id}/promote", s.PromoteMember)
			r.Post("/members/{user_id}/demote", s.DemoteMember)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.GroupMemberOnly(s.db))

			r.Get("/members", s.ListMembers)

			r.Mount("/invitations", s.invitations.GroupRoutes())
			r.Mount("/share", s.sharing.GroupRoutes())
			r.Mount("/resources", s.resources.GroupRoutes())
			r.Mount("/chat", s.chat.GroupRoutes())
		})
	})

	return r
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

type createGroupResponse struct {
	GroupId uuid.UUID `json:"group_id"`
}

func (s *GroupService) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createGroupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "group name must be specified", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	group := schema.StudyGroup{
		Id: uuid.New(), Name: params.Name, Description: params.Description,
		IsPrivate: params.IsPrivate, CreatedAt: now, CreatedById: user.Id,
	}

	// The creator becomes an admin member in the same transaction so a group
	// can never exist without at least one admin.
	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&group)
		if result.Error != nil {
			slog.Error("sql error creating group", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		membership := schema.GroupMembership{UserId: user.Id, GroupId: group.Id, Role: schema.AdminRole, JoinedAt: now}
		result = txn.Create(&membership)
		if result.Error != nil {
			slog.Error("sql error creating creator membership", "group_id", group.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating group: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("group created", "group_id", group.Id, "created_by", user.Id)

	utils.WriteJsonResponse(w, createGroupResponse{GroupId: group.Id})
}

type groupInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   uuid.UUID `json:"created_by"`
	MemberCount int64     `json:"member_count"`
}

func groupResponse(group schema.StudyGroup, memberCount int64) groupInfo {
	return groupInfo{
		Id: group.Id, Name: group.Name, Description: group.Description,
		IsPrivate: group.IsPrivate, CreatedAt: group.CreatedAt, CreatedBy: group.CreatedById,
		MemberCount: memberCount,
	}
}

func (s *GroupService) listGroups(w http.ResponseWriter, groups []schema.StudyGroup) {
	infos := make([]groupInfo, 0, len(groups))
	for _, group := range groups {
		infos = append(infos, groupResponse(group, int64(len(group.Members))))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *GroupService) ListMine(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var groups []schema.StudyGroup
	result := s.db.Preload("Members").
		Joins("join group_memberships on group_memberships.group_id = study_groups.id").
		Where("group_memberships.user_id = ?", user.Id).
		Find(&groups)
	if result.Error != nil {
		slog.Error("sql error listing user groups", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	s.listGroups(w, groups)
}

func (s *GroupService) ListPublic(w http.ResponseWriter, r *http.Request) {
	var groups []schema.StudyGroup
	result := s.db.Preload("Members").Find(&groups, "is_private = ?", false)
	if result.Error != nil {
		slog.Error("sql error listing public groups", "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	s.listGroups(w, groups)
}

func (s *GroupService) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	group, err := schema.GetGroup(groupId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrGroupNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var memberCount int64
	result := s.db.Model(&schema.GroupMembership{}).Where("group_id = ?", groupId).Count(&memberCount)
	if result.Error != nil {
		slog.Error("sql error counting group members", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, groupResponse(group, memberCount))
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

func (s *GroupService) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateGroupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Name != nil {
		if *params.Name == "" {
			http.Error(w, "group name cannot be empty", http.StatusBadRequest)
			return
		}
		updates["name"] = *params.Name
	}
	if params.Description != nil {
		updates["description"] = *params.Description
	}
	if params.IsPrivate != nil {
		updates["is_private"] = *params.IsPrivate
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		if len(updates) == 0 {
			return nil
		}

		result := txn.Model(&schema.StudyGroup{Id: groupId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating group", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		result := txn.Delete(&schema.StudyGroup{Id: groupId})
		if result.Error != nil {
			slog.Error("sql error deleting group", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// addMember inserts a membership row, translating the duplicate case into a
// conflict. Used by join and by invitation acceptance.
func addMember(txn *gorm.DB, groupId, userId uuid.UUID, role string) error {
	var existing schema.GroupMembership
	result := txn.Limit(1).Find(&existing, "group_id = ? and user_id = ?", groupId, userId)
	if result.Error != nil {
		slog.Error("sql error checking for existing membership", "group_id", groupId, "user_id", userId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected != 0 {
		return CodedError(fmt.Errorf("user %v is already a member of group %v", userId, groupId), http.StatusConflict)
	}

	membership := schema.GroupMembership{UserId: userId, GroupId: groupId, Role: role, JoinedAt: time.Now().UTC()}
	result = txn.Create(&membership)
	if result.Error != nil {
		slog.Error("sql error creating membership", "group_id", groupId, "user_id", userId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

// removeMember deletes a membership row after verifying the group is not left
// without an admin.
func removeMember(txn *gorm.DB, groupId, userId uuid.UUID) error {
	membership, err := schema.GetMembership(groupId, userId, txn)
	if err != nil {
		if errors.Is(err, schema.ErrMembershipNotFound) {
			return CodedError(errors.New("user is not a member of group"), http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}

	if membership.Role == schema.AdminRole {
		admins, err := schema.CountAdmins(groupId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if admins <= 1 {
			return CodedError(errors.New("cannot remove the only admin of the group"), http.StatusConflict)
		}
	}

	result := txn.Delete(&schema.GroupMembership{UserId: userId, GroupId: groupId})
	if result.Error != nil {
		slog.Error("sql error deleting membership", "group_id", groupId, "user_id", userId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

func (s *GroupService) JoinGroup(w http.ResponseWriter, r *http.Request) {
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		group, err := schema.GetGroup(groupId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrGroupNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if group.IsPrivate {
			return CodedError(errors.New("private groups can only be joined by invitation"), http.StatusForbidden)
		}

		if err := addMember(txn, groupId, user.Id, schema.MemberRole); err != nil {
			return err
		}

		return postSystemMessage(txn, groupId, user.Id, fmt.Sprintf("%v joined the group", user.Username))
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error joining group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) LeaveGroup(w http.ResponseWriter, r *http.Request) {
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		if err := removeMember(txn, groupId, user.Id); err != nil {
			return err
		}

		return postSystemMessage(txn, groupId, user.Id, fmt.Sprintf("%v left the group", user.Username))
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error leaving group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type memberInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func (s *GroupService) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var memberships []schema.GroupMembership
	result := s.db.Preload("User").Order("joined_at asc").Find(&memberships, "group_id = ?", groupId)
	if result.Error != nil {
		slog.Error("sql error listing group members", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]memberInfo, 0, len(memberships))
	for _, m := range memberships {
		info := memberInfo{UserId: m.UserId, Role: m.Role, JoinedAt: m.JoinedAt}
		if m.User != nil {
			info.Username = m.User.Username
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *GroupService) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		return removeMember(txn, groupId, userId)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing member: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) updateRole(w http.ResponseWriter, r *http.Request, role string) {
	groupId, err := utils.URLParamUUID(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		membership, err := schema.GetMembership(groupId, userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMembershipNotFound) {
				return CodedError(errors.New("user is not a member of group"), http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if membership.Role == role {
			return nil
		}

		if role == schema.MemberRole {
			admins, err := schema.CountAdmins(groupId, txn)
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			if admins <= 1 {
				return CodedError(errors.New("cannot demote the only admin of the group"), http.StatusConflict)
			}
		}

		result := txn.Model(&schema.GroupMembership{UserId: userId, GroupId: groupId}).Update("role", role)
		if result.Error != nil {
			slog.Error("sql error updating member role", "group_id", groupId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating member role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) PromoteMember(w http.ResponseWriter, r *http.Request) {
	s.updateRole(w, r, schema.AdminRole)
}

func (s *GroupService) DemoteMember(w http.ResponseWriter, r *http.Request) {
	s.updateRole(w, r, schema.MemberRole)
}
