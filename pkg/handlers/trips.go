package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/database"
	"travel-diary-backend/pkg/middleware"
	"travel-diary-backend/pkg/models"
	"travel-diary-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TripHandler 行程处理器。所有读写都先过访问网关，处理器内不做权限判断。
type TripHandler struct {
	db      database.DatabaseInterface
	gateway *access.Gateway
	log     *zap.Logger
}

// NewTripHandler 创建行程处理器
func NewTripHandler(db database.DatabaseInterface, gateway *access.Gateway, log *zap.Logger) *TripHandler {
	return &TripHandler{
		db:      db,
		gateway: gateway,
		log:     log,
	}
}

// CreateTrip 创建行程
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.TripCreateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Destination) == "" {
		utils.WriteValidationErrorResponse(w, "title and destination are required", "")
		return
	}
	duration, err := tripDuration(req.StartDate, req.EndDate)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid date range", err.Error())
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	trip := &models.Trip{
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Destination: strings.TrimSpace(req.Destination),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Duration:    duration,
		Status:      models.TripPlanning,
		IsPublic:    req.IsPublic,
		TotalBudget: req.TotalBudget,
		Currency:    currency,
		Wishlist:    []models.Place{},
		Itinerary:   []models.ItineraryItem{},
	}
	if err := h.db.CreateTrip(r.Context(), trip); err != nil {
		h.log.Error("failed to create trip", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to create trip")
		return
	}

	utils.WriteCreatedResponse(w, trip)
}

// ListTrips 列出当前用户可见的行程（自己的 + 已接受协作的）
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(utils.GetQueryParam(r, "limit", "50"))
	offset, _ := strconv.Atoi(utils.GetQueryParam(r, "offset", "0"))

	trips, err := h.db.ListUserTrips(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.log.Error("failed to list trips", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list trips")
		return
	}
	if trips == nil {
		trips = []models.Trip{}
	}

	utils.WriteSuccessResponse(w, trips)
}

// GetTrip 获取单个行程。协作者能看到，陌生人拿到403。
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.authorize(w, r, models.CapView)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"trip":        decision.Trip,
		"permissions": decision.Capabilities.Slice(),
	})
}

// UpdateTrip 更新行程基础字段。需要 edit_itinerary。
func (h *TripHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.authorize(w, r, models.CapEditItinerary)
	if !ok {
		return
	}

	var req models.TripUpdateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	trip := decision.Trip
	if req.Title != nil {
		trip.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		trip.Description = *req.Description
	}
	if req.Destination != nil {
		trip.Destination = strings.TrimSpace(*req.Destination)
	}
	if req.StartDate != nil {
		trip.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		trip.EndDate = *req.EndDate
	}
	if req.StartDate != nil || req.EndDate != nil {
		duration, err := tripDuration(trip.StartDate, trip.EndDate)
		if err != nil {
			utils.WriteValidationErrorResponse(w, "Invalid date range", err.Error())
			return
		}
		trip.Duration = duration
	}
	if req.Status != nil {
		status := models.TripStatus(*req.Status)
		switch status {
		case models.TripPlanning, models.TripOngoing, models.TripCompleted, models.TripCancelled:
			trip.Status = status
		default:
			utils.WriteValidationErrorResponse(w, "Invalid status", string(status))
			return
		}
	}
	if req.IsPublic != nil {
		trip.IsPublic = *req.IsPublic
	}

	if err := h.db.UpdateTrip(r.Context(), trip); err != nil {
		h.log.Error("failed to update trip", zap.String("trip_id", trip.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update trip")
		return
	}

	utils.WriteSuccessResponse(w, trip)
}

// DeleteTrip 删除行程。只有所有者（manage_settings）可以删。
func (h *TripHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.authorize(w, r, models.CapManageSettings)
	if !ok {
		return
	}
	// 删除是所有者专属操作，管理员协作者也不行
	user, _ := middleware.GetUserFromContext(r.Context())
	if user == nil || decision.Trip.UserID != user.ID {
		utils.WriteForbiddenResponse(w, "Only the trip owner can delete a trip")
		return
	}

	if err := h.db.DeleteTrip(r.Context(), decision.Trip.ID); err != nil {
		h.log.Error("failed to delete trip", zap.String("trip_id", decision.Trip.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to delete trip")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Trip deleted",
	})
}

// UpdateItinerary 整体替换行程安排。需要 edit_itinerary。
func (h *TripHandler) UpdateItinerary(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.authorize(w, r, models.CapEditItinerary)
	if !ok {
		return
	}

	var req struct {
		Itinerary []models.ItineraryItem `json:"itinerary"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if err := h.db.UpdateItinerary(r.Context(), decision.Trip.ID, req.Itinerary); err != nil {
		h.log.Error("failed to update itinerary", zap.String("trip_id", decision.Trip.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update itinerary")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"trip_id":   decision.Trip.ID,
		"itinerary": req.Itinerary,
	})
}

// AddToWishlist 添加心愿地点。需要 edit_itinerary。
func (h *TripHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.authorize(w, r, models.CapEditItinerary)
	if !ok {
		return
	}

	var req struct {
		Place models.Place `json:"place"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Place.Name) == "" {
		utils.WriteValidationErrorResponse(w, "place.name is required", "")
		return
	}

	if err := h.db.AddToWishlist(r.Context(), decision.Trip.ID, req.Place); err != nil {
		h.log.Error("failed to add to wishlist", zap.String("trip_id", decision.Trip.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to add to wishlist")
		return
	}

	utils.WriteCreatedResponse(w, req.Place)
}

// authorize 统一的网关检查，失败时直接写响应
func (h *TripHandler) authorize(w http.ResponseWriter, r *http.Request, required models.Capability) (*access.Decision, bool) {
	tripID := chi.URLParam(r, "tripID")
	cred := access.Credential{}
	if user, ok := middleware.GetUserFromContext(r.Context()); ok && user != nil {
		cred.UserID = user.ID
	}

	decision, err := h.gateway.Authorize(r.Context(), tripID, cred, required)
	if err != nil {
		utils.WriteAccessError(w, err)
		return nil, false
	}
	return decision, true
}

// tripDuration 按闭区间天数计算行程时长
func tripDuration(startDate, endDate string) (int, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0, err
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0, err
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return 0, errors.New("end date must not be before start date")
	}
	return days, nil
}
