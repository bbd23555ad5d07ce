package handlers

import (
	"net/http"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/database"
	"travel-diary-backend/pkg/middleware"
	"travel-diary-backend/pkg/models"
	"travel-diary-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CollabHandler 协作者处理器
type CollabHandler struct {
	db      database.DatabaseInterface
	manager *access.CollabManager
	log     *zap.Logger
}

// NewCollabHandler 创建协作者处理器
func NewCollabHandler(db database.DatabaseInterface, manager *access.CollabManager, log *zap.Logger) *CollabHandler {
	return &CollabHandler{
		db:      db,
		manager: manager,
		log:     log,
	}
}

// Invite 邀请协作者。需要 invite_others。
func (h *CollabHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tripID := chi.URLParam(r, "tripID")

	var req models.InviteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	role := models.Role(req.Role)
	if req.Role == "" {
		role = models.RoleViewer
	}

	resp, err := h.manager.Invite(r.Context(), tripID, user.ID, req.Email, role, req.Message)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}

	h.log.Info("collaborator invited",
		zap.String("trip_id", tripID), zap.String("invited_by", user.ID))
	utils.WriteCreatedResponse(w, resp)
}

// List 列出协作者。需要 view。
func (h *CollabHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	collabs, err := h.manager.List(r.Context(), chi.URLParam(r, "tripID"), user.ID)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}
	if collabs == nil {
		collabs = []models.Collaborator{}
	}
	utils.WriteSuccessResponse(w, collabs)
}

// Respond 响应邀请（accept/decline）。公开端点：令牌本身就是凭证。
func (h *CollabHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req models.RespondRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	collab, err := h.manager.Respond(r.Context(), req.InviteToken, req.Action)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}

	h.log.Info("invitation resolved",
		zap.String("trip_id", collab.TripID), zap.String("status", string(collab.Status)))
	utils.WriteSuccessResponse(w, collab)
}

// UpdateRole 修改协作者角色。需要 manage_settings。
func (h *CollabHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tripID := chi.URLParam(r, "tripID")
	collaboratorID := chi.URLParam(r, "collaboratorID")

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	collab, err := h.manager.UpdateRole(r.Context(), tripID, user.ID, collaboratorID, req.Role)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, collab)
}

// Remove 移除协作者。需要 manage_settings，协作者本人随时可以退出。
func (h *CollabHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tripID := chi.URLParam(r, "tripID")
	collaboratorID := chi.URLParam(r, "collaboratorID")

	if err := h.manager.Remove(r.Context(), tripID, user.ID, collaboratorID); err != nil {
		utils.WriteAccessError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Collaborator removed",
	})
}

// MyInvitations 列出发给当前用户邮箱的待处理邀请
func (h *CollabHandler) MyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invitations, err := h.db.ListInvitationsByEmail(r.Context(), user.Email)
	if err != nil {
		h.log.Error("failed to list invitations", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list invitations")
		return
	}
	// 邀请是发给本人的，token 要回传（响应邀请时作为凭证）。
	// Collaborator 的 json tag 会隐藏 token，这里显式带上。
	type invitation struct {
		models.Collaborator
		InviteToken string `json:"invite_token"`
	}
	out := make([]invitation, 0, len(invitations))
	for i := range invitations {
		out = append(out, invitation{
			Collaborator: invitations[i],
			InviteToken:  invitations[i].InviteToken,
		})
	}
	utils.WriteSuccessResponse(w, out)
}
