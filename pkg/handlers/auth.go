package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"travel-diary-backend/pkg/config"
	"travel-diary-backend/pkg/database"
	"travel-diary-backend/pkg/middleware"
	"travel-diary-backend/pkg/models"
	"travel-diary-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	log    *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
		log:    log,
	}
}

// Register 用户注册
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		utils.WriteValidationErrorResponse(w, "A valid email is required", "")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters", "")
		return
	}

	ctx := r.Context()
	existing, err := h.db.FindUserByEmail(ctx, req.Email)
	if err != nil {
		h.log.Error("register: lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to register user")
		return
	}
	if existing != nil {
		utils.WriteConflictResponse(w, "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error("register: hash failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to register user")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		h.log.Error("register: create failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to register user")
		return
	}

	h.log.Info("user registered", zap.String("user_id", user.ID))
	h.writeLoginResponse(w, user, http.StatusCreated)
}

// Login 用户登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.WriteValidationErrorResponse(w, "Email and password are required", "")
		return
	}

	user, err := h.db.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.Error("login: lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to log in")
		return
	}
	// 统一的错误信息，不暴露账号是否存在
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	h.writeLoginResponse(w, user, http.StatusOK)
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, expiresIn, err := jwtService.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Logout 用户登出。JWT是无状态的，服务端没有会话可销毁，由客户端丢弃令牌。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Logged out",
	})
}

// GetProfile 获取当前用户资料
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	full, err := h.db.GetUserByID(r.Context(), user.ID)
	if err != nil {
		h.log.Error("profile: lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load profile")
		return
	}
	if full == nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}

	utils.WriteSuccessResponse(w, full)
}

// UpdateProfile 更新当前用户资料
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name   *string `json:"name"`
		Avatar *string `json:"avatar"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ctx := r.Context()
	full, err := h.db.GetUserByID(ctx, user.ID)
	if err != nil || full == nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}

	if req.Name != nil {
		full.Name = strings.TrimSpace(*req.Name)
	}
	if req.Avatar != nil {
		full.Avatar = *req.Avatar
	}
	if err := h.db.UpdateUser(ctx, full); err != nil {
		h.log.Error("profile: update failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update profile")
		return
	}

	utils.WriteSuccessResponse(w, full)
}

// HealthCheck 健康检查
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.db.HealthCheck(ctx); err != nil {
		dbStatus = "unavailable"
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      "ok",
		"environment": h.config.Environment,
		"database":    dbStatus,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

// writeLoginResponse 签发令牌对并返回登录响应
func (h *AuthHandler) writeLoginResponse(w http.ResponseWriter, user *models.User, status int) {
	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, refreshToken, expiresIn, err := jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		h.log.Error("failed to generate token pair", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}

	utils.WriteJSONResponse(w, status, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
