package handlers

import (
	"net/http"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/middleware"
	"travel-diary-backend/pkg/models"
	"travel-diary-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ShareHandler 分享链接处理器
type ShareHandler struct {
	manager *access.ShareManager
	log     *zap.Logger
}

// NewShareHandler 创建分享链接处理器
func NewShareHandler(manager *access.ShareManager, log *zap.Logger) *ShareHandler {
	return &ShareHandler{
		manager: manager,
		log:     log,
	}
}

// Create 创建分享链接。所有者和已接受的协作者都可以分享。
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tripID := chi.URLParam(r, "tripID")

	var req models.ShareLinkCreateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	resp, err := h.manager.Create(r.Context(), tripID, user.ID, req, user.Email)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}

	h.log.Info("share link created",
		zap.String("trip_id", tripID), zap.String("created_by", user.ID))
	utils.WriteCreatedResponse(w, resp)
}

// List 列出行程的有效分享链接。需要 manage_settings（响应里有活动token）。
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	links, err := h.manager.List(r.Context(), chi.URLParam(r, "tripID"), user.ID)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}
	if links == nil {
		links = []models.ShareLink{}
	}
	utils.WriteSuccessResponse(w, links)
}

// Revoke 吊销分享链接。需要 manage_settings。
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tripID := chi.URLParam(r, "tripID")
	token := chi.URLParam(r, "token")

	if err := h.manager.Revoke(r.Context(), tripID, user.ID, token); err != nil {
		utils.WriteAccessError(w, err)
		return
	}

	h.log.Info("share link revoked", zap.String("trip_id", tripID))
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Share link revoked",
	})
}

// ResolveShared 通过分享token访问行程的公开视图。无需登录。
// 受密码保护的链接从 X-Share-Password 头或 password 查询参数取密码。
func (h *ShareHandler) ResolveShared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	password := r.Header.Get("X-Share-Password")
	if password == "" {
		password = r.URL.Query().Get("password")
	}

	view, link, err := h.manager.Resolve(r.Context(), token, password)
	if err != nil {
		utils.WriteAccessError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"trip":           view,
		"allow_comments": link.Settings.AllowComments,
		"expires_at":     link.ExpiresAt,
	})
}
