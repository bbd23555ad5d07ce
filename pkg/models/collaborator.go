package models

import "time"

// CollaboratorStatus 邀请状态
type CollaboratorStatus string

const (
	CollaboratorPending  CollaboratorStatus = "pending"
	CollaboratorAccepted CollaboratorStatus = "accepted"
	CollaboratorDeclined CollaboratorStatus = "declined"
)

// Collaborator is a user invited to a trip with a role-based permission set.
// The invite token is unique across all collaborators of all trips; the record
// transitions pending -> accepted|declined exactly once and then stays put as
// an audit trail. A new invite (new token) is required to retry.
type Collaborator struct {
	ID          string             `json:"id" db:"id"`
	TripID      string             `json:"trip_id" db:"trip_id"`
	UserID      string             `json:"user_id,omitempty" db:"user_id"` // empty until the invitee has an account
	Email       string             `json:"email" db:"email"`
	Name        string             `json:"name,omitempty" db:"name"`
	Role        Role               `json:"role" db:"role"`
	InvitedBy   string             `json:"invited_by" db:"invited_by"`
	InvitedAt   time.Time          `json:"invited_at" db:"invited_at"`
	Status      CollaboratorStatus `json:"status" db:"status"`
	InviteToken string             `json:"-" db:"invite_token"` // bearer secret, never serialized
	RespondedAt *time.Time         `json:"responded_at,omitempty" db:"responded_at"`
	AcceptedAt  *time.Time         `json:"accepted_at,omitempty" db:"accepted_at"`
}

// Permissions returns the effective capability set for this collaborator.
// Only an accepted invitation grants anything, even though the role field is
// already populated at invite time.
func (c *Collaborator) Permissions() CapabilitySet {
	if c.Status != CollaboratorAccepted {
		return NoAccess()
	}
	return PermissionsForRole(c.Role)
}

// InviteRequest 邀请协作者请求
type InviteRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// InviteResponse is returned to the inviter; the token is included so the
// caller can deliver it out of band when email is disabled.
type InviteResponse struct {
	Collaborator *Collaborator `json:"collaborator"`
	InviteToken  string        `json:"invite_token"`
	EmailSent    bool          `json:"email_sent"`
}

// RespondRequest 响应邀请请求
type RespondRequest struct {
	InviteToken string `json:"invite_token" validate:"required"`
	Action      string `json:"action" validate:"required"` // accept or decline
}
