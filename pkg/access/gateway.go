package access

import (
	"context"

	"travel-diary-backend/pkg/models"
)

// Credential identifies an actor: either an authenticated user or the bearer
// of a share token. Exactly one of UserID and ShareToken should be set.
type Credential struct {
	UserID     string
	ShareToken string
	Password   string // share-link password, when the link is protected
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Granted      bool
	Capabilities models.CapabilitySet
	Trip         *models.Trip
	// TripView is populated instead of Trip on the share-token path, which
	// only ever sees the public projection.
	TripView *models.TripView
}

// Gateway is the single authorization choke point. Every trip read or
// mutation calls Authorize before doing anything; a failure here is terminal
// for the request.
type Gateway struct {
	resolver *Resolver
	shares   *ShareManager
}

// NewGateway constructs a Gateway.
func NewGateway(store Store, shares *ShareManager) *Gateway {
	return &Gateway{resolver: NewResolver(store), shares: shares}
}

// Authorize decides whether the credential may perform the required
// capability on the trip.
//
// User credentials go through the permission resolver. Share tokens go
// through the share link manager and can only ever satisfy view (and comment
// when the link allows it) — a public link never grants write access,
// whatever its settings say.
func (g *Gateway) Authorize(ctx context.Context, tripID string, cred Credential, required models.Capability) (*Decision, error) {
	if cred.ShareToken != "" {
		return g.authorizeShare(ctx, tripID, cred, required)
	}
	if cred.UserID == "" {
		return nil, ErrUnauthorized
	}

	trip, caps, err := g.resolver.ResolveTrip(ctx, tripID, cred.UserID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(required) {
		return nil, ErrForbidden
	}
	return &Decision{Granted: true, Capabilities: caps, Trip: trip}, nil
}

func (g *Gateway) authorizeShare(ctx context.Context, tripID string, cred Credential, required models.Capability) (*Decision, error) {
	view, link, err := g.shares.Resolve(ctx, cred.ShareToken, cred.Password)
	if err != nil {
		return nil, err
	}
	if tripID != "" && link.TripID != tripID {
		// A valid token for some other trip reveals nothing about this one.
		return nil, ErrNotFound
	}

	caps := models.CapabilitySet{models.CapView: true}
	if link.Settings.AllowComments {
		caps[models.CapComment] = true
	}
	if !caps.Has(required) {
		return nil, ErrForbidden
	}
	return &Decision{Granted: true, Capabilities: caps, TripView: view}, nil
}
