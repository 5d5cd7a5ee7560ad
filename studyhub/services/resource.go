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
	"gorm.io/gorm/clause"
)

type ResourceService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// GroupRoutes is mounted under /group/{group_id}/resources behind the
// member-only middleware.
func (s *ResourceService) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.ShareResource)
	r.Get("/", s.ListResources)
	r.Post("/{resource_id}/like", s.ToggleLike)
	r.Delete("/{resource_id}", s.UnshareResource)

	return r
}

type shareResourceRequest struct {
	ResourceType string    `json:"resource_type"`
	ResourceId   uuid.UUID `json:"resource_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
}

type shareResourceResponse struct {
	ResourceId uuid.UUID `json:"resource_id"`
	LinkId     string    `json:"link_id"`
}

func (s *ResourceService) ShareResource(w http.ResponseWriter, r *http.Request) {
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

	var params shareResourceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	ref, err := schema.NewContentRef(params.ResourceType, params.ResourceId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	linkId, err := newLinkId()
	if err != nil {
		slog.Error("error generating link id", "error", err)
		http.Error(w, "error generating link id", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	resource := schema.GroupResource{
		Id: uuid.New(), GroupId: groupId,
		ResourceType: ref.Type, ResourceId: ref.Id,
		LinkId: linkId, Title: params.Title, Description: params.Description,
		SharedById: user.Id, SharedAt: now,
	}

	// Any member can announce material as a resource, ownership is not
	// required. The resource owns its link: both rows are written in one
	// transaction and removed together on unshare.
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkContentExists(txn, ref); err != nil {
			return err
		}

		var existing int64
		result := txn.Model(&schema.GroupResource{}).
			Where("group_id = ? and resource_type = ? and resource_id = ?", groupId, ref.Type, ref.Id).
			Count(&existing)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate resource", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if existing != 0 {
			return CodedError(fmt.Errorf("%v is already shared as a resource in this group", ref.Type), http.StatusConflict)
		}

		link := schema.SharedLink{
			Id: uuid.New(), LinkId: linkId,
			ContentType: ref.Type, ContentId: ref.Id,
			AccessLevel: schema.GroupOnly, GroupId: &groupId,
			CreatedById: user.Id, Title: params.Title, Description: params.Description,
			CreatedAt: now,
		}
		result = txn.Create(&link)
		if result.Error != nil {
			slog.Error("sql error creating resource link", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Create(&resource)
		if result.Error != nil {
			slog.Error("sql error creating group resource", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		message := fmt.Sprintf("%v shared a %v", user.Username, ref.Type)
		if params.Title != "" {
			message = fmt.Sprintf("%v shared a %v: %v", user.Username, ref.Type, params.Title)
		}
		return postResourceMessage(txn, groupId, user.Id, message, ref.Type, resource.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error sharing resource: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("resource shared", "resource_id", resource.Id, "group_id", groupId, "link_id", linkId)

	utils.WriteJsonResponse(w, shareResourceResponse{ResourceId: resource.Id, LinkId: linkId})
}

type resourceInfo struct {
	Id           uuid.UUID `json:"id"`
	ResourceType string    `json:"resource_type"`
	ResourceId   uuid.UUID `json:"resource_id"`
	LinkId       string    `json:"link_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SharedBy     uuid.UUID `json:"shared_by"`
	SharedAt     time.Time `json:"shared_at"`
	LikeCount    int       `json:"like_count"`
	LikedByMe    bool      `json:"liked_by_me"`
}

func (s *ResourceService) ListResources(w http.ResponseWriter, r *http.Request) {
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

	var resources []schema.GroupResource
	result := s.db.Preload("Likes").Order("shared_at desc").Find(&resources, "group_id = ?", groupId)
	if result.Error != nil {
		slog.Error("sql error listing group resources", "group_id", groupId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]resourceInfo, 0, len(resources))
	for _, resource := range resources {
		info := resourceInfo{
			Id: resource.Id, ResourceType: resource.ResourceType, ResourceId: resource.ResourceId,
			LinkId: resource.LinkId, Title: resource.Title, Description: resource.Description,
			SharedBy: resource.SharedById, SharedAt: resource.SharedAt,
			LikeCount: len(resource.Likes),
		}
		for _, like := range resource.Likes {
			if like.UserId == user.Id {
				info.LikedByMe = true
				break
			}
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

type toggleLikeResponse struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

func (s *ResourceService) ToggleLike(w http.ResponseWriter, r *http.Request) {
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

	resourceId, err := utils.URLParamUUID(r, "resource_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res toggleLikeResponse

	err = s.db.Transaction(func(txn *gorm.DB) error {
		resource, err := schema.GetGroupResource(resourceId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrResourceNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if resource.GroupId != groupId {
			return CodedError(schema.ErrResourceNotFound, http.StatusNotFound)
		}

		var like schema.ResourceLike
		result := txn.Limit(1).Find(&like, "resource_id = ? and user_id = ?", resourceId, user.Id)
		if result.Error != nil {
			slog.Error("sql error checking for existing like", "resource_id", resourceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result.RowsAffected != 0 {
			result = txn.Delete(&schema.ResourceLike{ResourceId: resourceId, UserId: user.Id})
			if result.Error != nil {
				slog.Error("sql error removing like", "resource_id", resourceId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			res.Liked = false
		} else {
			// A concurrent toggle can insert the like first, losing that race
			// still means the like exists, so the conflict is swallowed.
			newLike := schema.ResourceLike{ResourceId: resourceId, UserId: user.Id, LikedAt: time.Now().UTC()}
			result = txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&newLike)
			if result.Error != nil {
				slog.Error("sql error creating like", "resource_id", resourceId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			res.Liked = true
		}

		result = txn.Model(&schema.ResourceLike{}).Where("resource_id = ?", resourceId).Count(&res.LikeCount)
		if result.Error != nil {
			slog.Error("sql error counting likes", "resource_id", resourceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error toggling like: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

func (s *ResourceService) UnshareResource(w http.ResponseWriter, r *http.Request) {
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

	resourceId, err := utils.URLParamUUID(r, "resource_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		resource, err := schema.GetGroupResource(resourceId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrResourceNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if resource.GroupId != groupId {
			return CodedError(schema.ErrResourceNotFound, http.StatusNotFound)
		}

		if resource.SharedById != user.Id && !user.IsAdmin {
			return CodedError(errors.New("only the user who shared the resource can unshare it"), http.StatusForbidden)
		}

		result := txn.Where("resource_id = ?", resourceId).Delete(&schema.ResourceLike{})
		if result.Error != nil {
			slog.Error("sql error deleting resource likes", "resource_id", resourceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// The resource owns its link row.
		result = txn.Where("link_id = ?", resource.LinkId).Delete(&schema.SharedLink{})
		if result.Error != nil {
			slog.Error("sql error deleting resource link", "link_id", resource.LinkId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.GroupResource{Id: resourceId})
		if result.Error != nil {
			slog.Error("sql error deleting group resource", "resource_id", resourceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error unsharing resource: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
