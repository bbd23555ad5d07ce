// Package access implements the authorization core for trips: role-based
// permission resolution, collaborator invitations, bearer-token share links,
// and the single gateway request handlers call before touching a trip.
package access

import "errors"

// Error kinds surfaced by every operation in this package. Handlers map them
// to HTTP status codes; nothing below this package downgrades or swallows an
// authorization failure.
var (
	// ErrNotFound covers a missing trip, collaborator, or token. A revoked
	// share token also reports ErrNotFound so it stays indistinguishable
	// from a token that never existed.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the actor is authenticated but lacks the required
	// capability.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized means the credential itself is missing or invalid,
	// e.g. a wrong share-link password.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpired means the share link is past its expiry.
	ErrExpired = errors.New("share link expired")
	// ErrConflict means an invalid state transition, e.g. responding twice
	// to the same invitation.
	ErrConflict = errors.New("conflict")
)
