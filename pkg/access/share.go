package access

import (
	"context"
	"fmt"
	"time"

	"travel-diary-backend/pkg/email"
	"travel-diary-backend/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultShareExpiryDays is applied when a create request does not specify
// expires_in_days. Configuring ExpiryDays to 0 produces non-expiring links.
const DefaultShareExpiryDays = 30

// ShareManager creates, resolves, and revokes public share links for trips.
type ShareManager struct {
	store    Store
	resolver *Resolver
	sender   email.Sender
	log      *zap.Logger

	// AppURL is the frontend base used to build the public /shared/{token} URL.
	AppURL string
	// ExpiryDays is the default link lifetime; 0 disables default expiry.
	ExpiryDays int
}

// NewShareManager constructs a ShareManager.
func NewShareManager(store Store, sender email.Sender, log *zap.Logger, appURL string, expiryDays int) *ShareManager {
	return &ShareManager{
		store:      store,
		resolver:   NewResolver(store),
		sender:     sender,
		log:        log,
		AppURL:     appURL,
		ExpiryDays: expiryDays,
	}
}

// Create issues a new share link for the trip. Any actor with at least view
// (the owner or any accepted collaborator) may create one; revocation is the
// stricter, manage_settings-only operation.
func (m *ShareManager) Create(ctx context.Context, tripID, creatorID string, req models.ShareLinkCreateRequest, notifyEmail string) (*models.ShareLinkResponse, error) {
	trip, caps, err := m.resolver.ResolveTrip(ctx, tripID, creatorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(models.CapView) {
		return nil, ErrForbidden
	}

	token, err := NewShareToken()
	if err != nil {
		return nil, err
	}

	settings := models.ShareSettings{
		IsPublic:          req.IsPublic,
		AllowComments:     req.AllowComments,
		PasswordProtected: req.PasswordProtected,
	}
	if req.PasswordProtected {
		if req.Password == "" {
			return nil, fmt.Errorf("%w: password required for a protected link", ErrConflict)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		settings.PasswordHash = string(hash)
	}

	now := time.Now().UTC()
	link := &models.ShareLink{
		ID:        uuid.New().String(),
		TripID:    tripID,
		Token:     token,
		CreatedBy: creatorID,
		Settings:  settings,
		CreatedAt: now,
	}
	days := req.ExpiresInDays
	if days <= 0 {
		days = m.ExpiryDays
	}
	if days > 0 {
		expiry := now.Add(time.Duration(days) * 24 * time.Hour)
		link.ExpiresAt = &expiry
	}

	if err := m.store.CreateShareLink(ctx, link); err != nil {
		return nil, err
	}

	url := m.ShareURL(token)
	sent := false
	if req.SendEmail && notifyEmail != "" {
		sent = m.notify(ctx, trip, notifyEmail, url)
	}

	return &models.ShareLinkResponse{
		ID:        link.ID,
		URL:       url,
		Token:     token,
		Settings:  settings,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
		EmailSent: sent,
	}, nil
}

// Resolve validates a share token and returns the trip's public projection.
// Check order is fixed: existence (revoked counts as absent) -> expiry ->
// password. Only after all three pass is the access recorded; the count is
// best-effort and a lost increment is not an error.
func (m *ShareManager) Resolve(ctx context.Context, token, suppliedPassword string) (*models.TripView, *models.ShareLink, error) {
	if token == "" {
		return nil, nil, ErrNotFound
	}
	link, err := m.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if link == nil || link.Revoked() {
		// A revoked token must be indistinguishable from one that never
		// existed, so both paths report ErrNotFound.
		return nil, nil, ErrNotFound
	}
	now := time.Now().UTC()
	if link.Expired(now) {
		return nil, nil, ErrExpired
	}
	if link.Settings.PasswordProtected {
		if suppliedPassword == "" {
			return nil, nil, fmt.Errorf("%w: this shared trip is password protected", ErrUnauthorized)
		}
		if bcrypt.CompareHashAndPassword([]byte(link.Settings.PasswordHash), []byte(suppliedPassword)) != nil {
			return nil, nil, fmt.Errorf("%w: incorrect password", ErrUnauthorized)
		}
	}

	trip, err := m.store.GetTrip(ctx, link.TripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrNotFound
	}

	if err := m.store.RecordShareAccess(ctx, token, now); err != nil {
		m.log.Warn("failed to record share access", zap.String("token", token), zap.Error(err))
	}

	return models.NewTripView(trip, link.Settings.AllowComments), link, nil
}

// Revoke invalidates a share link. Requires manage_settings. The token string
// is never recycled: the row stays, flagged revoked, and future resolves
// report ErrNotFound.
func (m *ShareManager) Revoke(ctx context.Context, tripID, actorID, token string) error {
	_, caps, err := m.resolver.ResolveTrip(ctx, tripID, actorID)
	if err != nil {
		return err
	}
	if !caps.Has(models.CapManageSettings) {
		return ErrForbidden
	}
	revoked, err := m.store.RevokeShareLink(ctx, tripID, token, time.Now().UTC())
	if err != nil {
		return err
	}
	if !revoked {
		return ErrNotFound
	}
	return nil
}

// List returns the trip's share links for its managers. Requires
// manage_settings since the listing exposes live tokens.
func (m *ShareManager) List(ctx context.Context, tripID, actorID string) ([]models.ShareLink, error) {
	_, caps, err := m.resolver.ResolveTrip(ctx, tripID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(models.CapManageSettings) {
		return nil, ErrForbidden
	}
	return m.store.ListShareLinks(ctx, tripID)
}

// ShareURL builds the public URL for a token.
func (m *ShareManager) ShareURL(token string) string {
	return fmt.Sprintf("%s/shared/%s", m.AppURL, token)
}

func (m *ShareManager) notify(ctx context.Context, trip *models.Trip, toEmail, url string) bool {
	n := email.ShareNotification{
		ToEmail:     toEmail,
		TripTitle:   trip.Title,
		Destination: trip.Destination,
		ShareURL:    url,
	}
	if err := m.sender.SendShareNotification(ctx, n); err != nil {
		m.log.Warn("failed to send share notification",
			zap.String("to", toEmail), zap.String("trip_id", trip.ID), zap.Error(err))
		return false
	}
	return true
}
