package access

import (
	"context"
	"time"

	"travel-diary-backend/pkg/models"
)

// Store is the slice of the persistence layer the access core needs. The
// database package's implementations satisfy it; tests plug in fakes.
// All writes that race (invite responses) go through conditional updates
// rather than read-modify-write.
type Store interface {
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	// FindUserByEmail returns (nil, nil) when no account matches.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	AddCollaborator(ctx context.Context, c *models.Collaborator) error
	ListCollaborators(ctx context.Context, tripID string) ([]models.Collaborator, error)
	GetCollaboratorByToken(ctx context.Context, inviteToken string) (*models.Collaborator, error)
	GetCollaboratorByID(ctx context.Context, tripID, collaboratorID string) (*models.Collaborator, error)
	// TransitionCollaboratorStatus performs a compare-and-swap on the
	// collaborator's status keyed by invite token. found reports whether a
	// record with the token exists at all; swapped whether its status was
	// `from` and is now `to`. Under a race exactly one caller observes
	// swapped=true.
	TransitionCollaboratorStatus(ctx context.Context, inviteToken string, from, to models.CollaboratorStatus, at time.Time) (found, swapped bool, err error)
	UpdateCollaboratorRole(ctx context.Context, tripID, collaboratorID string, role models.Role) error
	DeleteCollaborator(ctx context.Context, tripID, collaboratorID string) error

	CreateShareLink(ctx context.Context, l *models.ShareLink) error
	GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error)
	ListShareLinks(ctx context.Context, tripID string) ([]models.ShareLink, error)
	RevokeShareLink(ctx context.Context, tripID, token string, at time.Time) (bool, error)
	RecordShareAccess(ctx context.Context, token string, at time.Time) error
}

// Resolver maps a (trip, user) pair to an effective capability set.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveTrip loads the trip and its collaborators and resolves the acting
// user's capabilities. Returns ErrNotFound when the trip does not exist.
func (r *Resolver) ResolveTrip(ctx context.Context, tripID, userID string) (*models.Trip, models.CapabilitySet, error) {
	trip, err := r.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrNotFound
	}
	collabs, err := r.store.ListCollaborators(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	return trip, Resolve(trip, collabs, userID), nil
}

// Resolve computes the capability set for userID on the trip.
//
//  1. The owner always gets the full set, regardless of any collaborator
//     record that may exist for the same user.
//  2. An accepted collaborator gets the static set for their role.
//  3. Everyone else — including pending and declined collaborators whose
//     role field is already populated — gets NoAccess.
func Resolve(trip *models.Trip, collaborators []models.Collaborator, userID string) models.CapabilitySet {
	if userID == "" {
		return models.NoAccess()
	}
	if trip.UserID == userID {
		return models.OwnerCapabilities()
	}
	for i := range collaborators {
		c := &collaborators[i]
		if c.UserID == userID && c.Status == models.CollaboratorAccepted {
			return c.Permissions()
		}
	}
	return models.NoAccess()
}
