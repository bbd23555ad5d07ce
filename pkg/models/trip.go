package models

import "time"

// TripStatus 行程状态
type TripStatus string

const (
	TripPlanning  TripStatus = "planning"
	TripOngoing   TripStatus = "ongoing"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Trip is the aggregate root for a planned journey, owned by exactly one user.
// Collaborators and share links are stored in their own tables keyed by trip ID;
// the itinerary and wishlist travel with the trip document itself.
type Trip struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"` // owner
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description,omitempty" db:"description"`
	Destination string          `json:"destination" db:"destination"`
	StartDate   string          `json:"start_date" db:"start_date"`
	EndDate     string          `json:"end_date" db:"end_date"`
	Duration    int             `json:"duration" db:"duration"` // days
	Status      TripStatus      `json:"status" db:"status"`
	IsPublic    bool            `json:"is_public" db:"is_public"`
	TotalBudget float64         `json:"total_budget" db:"total_budget"`
	Currency    string          `json:"currency" db:"currency"`
	Wishlist    []Place         `json:"wishlist" db:"wishlist"`
	Itinerary   []ItineraryItem `json:"itinerary" db:"itinerary"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Place 地点信息（来自地图服务的快照）
type Place struct {
	Name        string             `json:"name"`
	Address     string             `json:"address,omitempty"`
	Coordinates map[string]float64 `json:"coordinates,omitempty"` // lat, lng
	PlaceID     string             `json:"place_id,omitempty"`
	Types       []string           `json:"types,omitempty"`
	Rating      float64            `json:"rating,omitempty"`
	Photos      []string           `json:"photos,omitempty"`
}

// FlightInfo 航班信息（行程项中可选）
type FlightInfo struct {
	Airline          string                 `json:"airline"`
	FlightNumber     string                 `json:"flightNumber"`
	Departure        map[string]interface{} `json:"departure,omitempty"` // airport, airportCode, time, terminal, gate
	Arrival          map[string]interface{} `json:"arrival,omitempty"`
	Duration         string                 `json:"duration,omitempty"`
	Aircraft         string                 `json:"aircraft,omitempty"`
	SeatNumber       string                 `json:"seatNumber,omitempty"`
	BookingReference string                 `json:"bookingReference,omitempty"`
	Status           string                 `json:"status,omitempty"` // scheduled, delayed, ...
}

// ItineraryItem is a single scheduled entry on a trip day.
type ItineraryItem struct {
	Place             Place       `json:"place"`
	Date              string      `json:"date"`
	StartTime         string      `json:"start_time,omitempty"`
	EndTime           string      `json:"end_time,omitempty"`
	EstimatedDuration int         `json:"estimated_duration,omitempty"` // minutes
	Notes             string      `json:"notes,omitempty"`
	Order             int         `json:"order"`
	IsCustom          bool        `json:"is_custom,omitempty"`
	CustomTitle       string      `json:"custom_title,omitempty"`
	CustomDescription string      `json:"custom_description,omitempty"`
	FlightInfo        *FlightInfo `json:"flightInfo,omitempty"`
}

// TripCreateRequest 创建行程请求（前端使用 camelCase 日期字段）
type TripCreateRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Destination string  `json:"destination" validate:"required"`
	StartDate   string  `json:"startDate" validate:"required"`
	EndDate     string  `json:"endDate" validate:"required"`
	TotalBudget float64 `json:"totalBudget"`
	Currency    string  `json:"currency"`
	IsPublic    bool    `json:"isPublic"`
}

// TripUpdateRequest 更新行程请求（仅更新非空字段）
type TripUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Destination *string `json:"destination,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      *string `json:"status,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// TripView is the read-only projection returned for shared trips.
// It never carries collaborator emails, tokens, or owner identifiers.
type TripView struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Destination   string          `json:"destination"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Duration      int             `json:"duration"`
	Itinerary     []ItineraryItem `json:"itinerary"`
	Wishlist      []Place         `json:"wishlist"`
	IsShared      bool            `json:"is_shared"`
	AllowComments bool            `json:"allow_comments"`
}

// NewTripView builds the public projection of a trip for share-link visitors.
func NewTripView(t *Trip, allowComments bool) *TripView {
	return &TripView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Destination:   t.Destination,
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
		Duration:      t.Duration,
		Itinerary:     t.Itinerary,
		Wishlist:      t.Wishlist,
		IsShared:      true,
		AllowComments: allowComments,
	}
}
