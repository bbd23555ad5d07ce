package database

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"travel-diary-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase 内存数据库实现，用于本地开发和测试。
// 进程重启数据即丢失；不要在 Serverless 环境使用。
type MemoryDatabase struct {
	mu sync.RWMutex

	users         map[string]*models.User         // id -> user
	usersByEmail  map[string]string               // email -> id
	trips         map[string]*models.Trip         // id -> trip
	collaborators map[string]*models.Collaborator // id -> collaborator
	collabByToken map[string]string               // invite token -> collaborator id
	shareLinks    map[string]*models.ShareLink    // token -> link
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]string),
		trips:         make(map[string]*models.Trip),
		collaborators: make(map[string]*models.Collaborator),
		collabByToken: make(map[string]string),
		shareLinks:    make(map[string]*models.ShareLink),
	}
}

// ==== 用户管理 ====

func (d *MemoryDatabase) CreateUser(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	d.users[user.ID] = &cp
	d.usersByEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (d *MemoryDatabase) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *d.users[id]
	return &cp, nil
}

func (d *MemoryDatabase) GetUserByID(_ context.Context, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (d *MemoryDatabase) UpdateUser(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Name = user.Name
	stored.Avatar = user.Avatar
	stored.UpdatedAt = time.Now().UTC()
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// ==== 行程管理 ====

func (d *MemoryDatabase) CreateTrip(_ context.Context, trip *models.Trip) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	if trip.Wishlist == nil {
		trip.Wishlist = []models.Place{}
	}
	if trip.Itinerary == nil {
		trip.Itinerary = []models.ItineraryItem{}
	}

	d.trips[trip.ID] = copyTrip(trip)
	return nil
}

func (d *MemoryDatabase) GetTrip(_ context.Context, tripID string) (*models.Trip, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.trips[tripID]
	if !ok {
		return nil, nil
	}
	return copyTrip(t), nil
}

func (d *MemoryDatabase) UpdateTrip(_ context.Context, trip *models.Trip) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.trips[trip.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Title = trip.Title
	stored.Description = trip.Description
	stored.Destination = trip.Destination
	stored.StartDate = trip.StartDate
	stored.EndDate = trip.EndDate
	stored.Duration = trip.Duration
	stored.Status = trip.Status
	stored.IsPublic = trip.IsPublic
	stored.TotalBudget = trip.TotalBudget
	stored.Currency = trip.Currency
	stored.UpdatedAt = time.Now().UTC()
	trip.UpdatedAt = stored.UpdatedAt
	return nil
}

func (d *MemoryDatabase) DeleteTrip(_ context.Context, tripID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.trips[tripID]; !ok {
		return sql.ErrNoRows
	}
	delete(d.trips, tripID)

	// 级联删除协作者和分享链接
	for id, c := range d.collaborators {
		if c.TripID == tripID {
			delete(d.collabByToken, c.InviteToken)
			delete(d.collaborators, id)
		}
	}
	for token, l := range d.shareLinks {
		if l.TripID == tripID {
			delete(d.shareLinks, token)
		}
	}
	return nil
}

func (d *MemoryDatabase) ListUserTrips(_ context.Context, userID string, limit, offset int) ([]models.Trip, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	accessible := make(map[string]bool)
	for _, c := range d.collaborators {
		if c.UserID == userID && c.Status == models.CollaboratorAccepted {
			accessible[c.TripID] = true
		}
	}

	var trips []models.Trip
	for _, t := range d.trips {
		if t.UserID == userID || accessible[t.ID] {
			trips = append(trips, *copyTrip(t))
		}
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].UpdatedAt.After(trips[j].UpdatedAt)
	})

	if limit <= 0 {
		limit = 100
	}
	if offset >= len(trips) {
		return []models.Trip{}, nil
	}
	end := offset + limit
	if end > len(trips) {
		end = len(trips)
	}
	return trips[offset:end], nil
}

func (d *MemoryDatabase) UpdateItinerary(_ context.Context, tripID string, items []models.ItineraryItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.trips[tripID]
	if !ok {
		return sql.ErrNoRows
	}
	if items == nil {
		items = []models.ItineraryItem{}
	}
	stored.Itinerary = append([]models.ItineraryItem(nil), items...)
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (d *MemoryDatabase) AddToWishlist(_ context.Context, tripID string, place models.Place) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.trips[tripID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Wishlist = append(stored.Wishlist, place)
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// ==== 协作者 ====

func (d *MemoryDatabase) AddCollaborator(_ context.Context, c *models.Collaborator) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	cp := *c
	d.collaborators[c.ID] = &cp
	d.collabByToken[c.InviteToken] = c.ID
	return nil
}

func (d *MemoryDatabase) ListCollaborators(_ context.Context, tripID string) ([]models.Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.Collaborator
	for _, c := range d.collaborators {
		if c.TripID == tripID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InvitedAt.Before(out[j].InvitedAt)
	})
	return out, nil
}

func (d *MemoryDatabase) GetCollaboratorByToken(_ context.Context, inviteToken string) (*models.Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.collabByToken[inviteToken]
	if !ok {
		return nil, nil
	}
	cp := *d.collaborators[id]
	return &cp, nil
}

func (d *MemoryDatabase) GetCollaboratorByID(_ context.Context, tripID, collaboratorID string) (*models.Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collaborators[collaboratorID]
	if !ok || c.TripID != tripID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (d *MemoryDatabase) TransitionCollaboratorStatus(_ context.Context, inviteToken string, from, to models.CollaboratorStatus, at time.Time) (bool, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.collabByToken[inviteToken]
	if !ok {
		return false, false, nil
	}
	c := d.collaborators[id]
	if c.Status != from {
		return true, false, nil
	}
	c.Status = to
	c.RespondedAt = &at
	if to == models.CollaboratorAccepted {
		c.AcceptedAt = &at
	}
	return true, true, nil
}

func (d *MemoryDatabase) UpdateCollaboratorRole(_ context.Context, tripID, collaboratorID string, role models.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collaborators[collaboratorID]
	if !ok || c.TripID != tripID {
		return sql.ErrNoRows
	}
	c.Role = role
	return nil
}

func (d *MemoryDatabase) DeleteCollaborator(_ context.Context, tripID, collaboratorID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collaborators[collaboratorID]
	if !ok || c.TripID != tripID {
		return sql.ErrNoRows
	}
	delete(d.collabByToken, c.InviteToken)
	delete(d.collaborators, collaboratorID)
	return nil
}

func (d *MemoryDatabase) ListInvitationsByEmail(_ context.Context, email string) ([]models.Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	email = strings.ToLower(email)
	var out []models.Collaborator
	for _, c := range d.collaborators {
		if strings.ToLower(c.Email) == email && c.Status == models.CollaboratorPending {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InvitedAt.After(out[j].InvitedAt)
	})
	return out, nil
}

// ==== 分享链接 ====

func (d *MemoryDatabase) CreateShareLink(_ context.Context, l *models.ShareLink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	cp := *l
	d.shareLinks[l.Token] = &cp
	return nil
}

func (d *MemoryDatabase) GetShareLinkByToken(_ context.Context, token string) (*models.ShareLink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l, ok := d.shareLinks[token]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (d *MemoryDatabase) ListShareLinks(_ context.Context, tripID string) ([]models.ShareLink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.ShareLink
	for _, l := range d.shareLinks {
		if l.TripID == tripID && l.RevokedAt == nil {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (d *MemoryDatabase) RevokeShareLink(_ context.Context, tripID, token string, at time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.shareLinks[token]
	if !ok || l.TripID != tripID || l.RevokedAt != nil {
		return false, nil
	}
	l.RevokedAt = &at
	return true, nil
}

func (d *MemoryDatabase) RecordShareAccess(_ context.Context, token string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.shareLinks[token]
	if !ok || l.RevokedAt != nil {
		return nil
	}
	l.AccessCount++
	l.LastAccessedAt = &at
	return nil
}

// ==== 健康检查 / 关闭 ====

func (d *MemoryDatabase) HealthCheck(_ context.Context) error {
	return nil
}

func (d *MemoryDatabase) Close() error {
	return nil
}

func copyTrip(t *models.Trip) *models.Trip {
	cp := *t
	cp.Wishlist = append([]models.Place(nil), t.Wishlist...)
	cp.Itinerary = append([]models.ItineraryItem(nil), t.Itinerary...)
	return &cp
}
