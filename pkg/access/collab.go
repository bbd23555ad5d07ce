package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travel-diary-backend/pkg/email"
	"travel-diary-backend/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CollabManager creates and resolves collaborator invitations and mutates a
// trip's collaborator list. Every operation authorizes the actor through the
// permission resolver before touching anything.
type CollabManager struct {
	store    Store
	resolver *Resolver
	sender   email.Sender
	log      *zap.Logger

	// AppURL is the frontend base used to build accept/decline links.
	AppURL string
}

// NewCollabManager constructs a CollabManager.
func NewCollabManager(store Store, sender email.Sender, log *zap.Logger, appURL string) *CollabManager {
	return &CollabManager{
		store:    store,
		resolver: NewResolver(store),
		sender:   sender,
		log:      log,
		AppURL:   strings.TrimRight(appURL, "/"),
	}
}

// Invite adds a pending collaborator to the trip and returns the record plus
// its invite token. The inviter must hold invite_others. The invitee email
// must not already be on the trip. Email delivery is best-effort: a send
// failure is logged and the invite still succeeds.
func (m *CollabManager) Invite(ctx context.Context, tripID, inviterID, inviteeEmail string, role models.Role, message string) (*models.InviteResponse, error) {
	inviteeEmail = strings.ToLower(strings.TrimSpace(inviteeEmail))
	if inviteeEmail == "" {
		return nil, fmt.Errorf("%w: email required", ErrConflict)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrConflict, role)
	}

	trip, caps, err := m.resolver.ResolveTrip(ctx, tripID, inviterID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(models.CapInviteOthers) {
		return nil, ErrForbidden
	}

	existing, err := m.store.ListCollaborators(ctx, tripID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Email == inviteeEmail {
			return nil, fmt.Errorf("%w: %s is already invited to this trip", ErrConflict, inviteeEmail)
		}
	}

	token, err := NewInviteToken()
	if err != nil {
		return nil, err
	}

	// Bind the record to an existing account when the invitee already has
	// one; otherwise user_id stays empty until they register.
	inviteeID, inviteeName := "", strings.SplitN(inviteeEmail, "@", 2)[0]
	if u, err := m.store.FindUserByEmail(ctx, inviteeEmail); err == nil && u != nil {
		inviteeID = u.ID
		if u.Name != "" {
			inviteeName = u.Name
		}
	}

	now := time.Now().UTC()
	collab := &models.Collaborator{
		ID:          uuid.New().String(),
		TripID:      tripID,
		UserID:      inviteeID,
		Email:       inviteeEmail,
		Name:        inviteeName,
		Role:        role,
		InvitedBy:   inviterID,
		InvitedAt:   now,
		Status:      models.CollaboratorPending,
		InviteToken: token,
	}
	if err := m.store.AddCollaborator(ctx, collab); err != nil {
		return nil, err
	}

	sent := m.sendInvite(ctx, trip, collab, message)
	return &models.InviteResponse{Collaborator: collab, InviteToken: token, EmailSent: sent}, nil
}

// Respond consumes an invite token with action "accept" or "decline".
// The pending -> accepted|declined transition happens as a single conditional
// update against the store, so two concurrent responses cannot both succeed:
// the loser observes the terminal state and gets ErrConflict.
func (m *CollabManager) Respond(ctx context.Context, inviteToken, action string) (*models.Collaborator, error) {
	var to models.CollaboratorStatus
	switch strings.ToLower(action) {
	case "accept":
		to = models.CollaboratorAccepted
	case "decline":
		to = models.CollaboratorDeclined
	default:
		return nil, fmt.Errorf("%w: action must be accept or decline", ErrConflict)
	}
	if inviteToken == "" {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	found, swapped, err := m.store.TransitionCollaboratorStatus(ctx, inviteToken, models.CollaboratorPending, to, now)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if !swapped {
		// The record exists but is no longer pending: the invite was
		// already accepted or declined.
		return nil, fmt.Errorf("%w: invitation already resolved", ErrConflict)
	}

	collab, err := m.store.GetCollaboratorByToken(ctx, inviteToken)
	if err != nil {
		return nil, err
	}
	if collab == nil {
		return nil, ErrNotFound
	}
	return collab, nil
}

// UpdateRole changes a collaborator's role. Requires manage_settings.
func (m *CollabManager) UpdateRole(ctx context.Context, tripID, actorID, collaboratorID string, newRole models.Role) (*models.Collaborator, error) {
	if !newRole.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrConflict, newRole)
	}
	_, caps, err := m.resolver.ResolveTrip(ctx, tripID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(models.CapManageSettings) {
		return nil, ErrForbidden
	}
	collab, err := m.store.GetCollaboratorByID(ctx, tripID, collaboratorID)
	if err != nil {
		return nil, err
	}
	if collab == nil {
		return nil, ErrNotFound
	}
	if err := m.store.UpdateCollaboratorRole(ctx, tripID, collaboratorID, newRole); err != nil {
		return nil, err
	}
	collab.Role = newRole
	return collab, nil
}

// Remove deletes a collaborator record. Requires manage_settings, except that
// a collaborator may always remove themself regardless of role.
func (m *CollabManager) Remove(ctx context.Context, tripID, actorID, collaboratorID string) error {
	collab, err := m.store.GetCollaboratorByID(ctx, tripID, collaboratorID)
	if err != nil {
		return err
	}
	if collab == nil {
		return ErrNotFound
	}
	if collab.UserID != actorID { // self-removal is always permitted
		_, caps, err := m.resolver.ResolveTrip(ctx, tripID, actorID)
		if err != nil {
			return err
		}
		if !caps.Has(models.CapManageSettings) {
			return ErrForbidden
		}
	}
	return m.store.DeleteCollaborator(ctx, tripID, collaboratorID)
}

// List returns the trip's collaborators. Requires view.
func (m *CollabManager) List(ctx context.Context, tripID, actorID string) ([]models.Collaborator, error) {
	_, caps, err := m.resolver.ResolveTrip(ctx, tripID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(models.CapView) {
		return nil, ErrForbidden
	}
	return m.store.ListCollaborators(ctx, tripID)
}

func (m *CollabManager) sendInvite(ctx context.Context, trip *models.Trip, collab *models.Collaborator, message string) bool {
	inv := email.CollaborationInvite{
		ToEmail:     collab.Email,
		TripTitle:   trip.Title,
		Destination: trip.Destination,
		StartDate:   trip.StartDate,
		EndDate:     trip.EndDate,
		Role:        string(collab.Role),
		InviteToken: collab.InviteToken,
		Message:     message,
		AcceptURL:   fmt.Sprintf("%s/invite/accept?token=%s", m.AppURL, collab.InviteToken),
		DeclineURL:  fmt.Sprintf("%s/invite/decline?token=%s", m.AppURL, collab.InviteToken),
	}
	if err := m.sender.SendCollaborationInvite(ctx, inv); err != nil {
		m.log.Warn("failed to send collaboration invite",
			zap.String("to", collab.Email), zap.String("trip_id", trip.ID), zap.Error(err))
		return false
	}
	return true
}
