package models

import "time"

// ShareSettings 分享链接设置
type ShareSettings struct {
	IsPublic          bool   `json:"is_public"`
	AllowComments     bool   `json:"allow_comments"`
	PasswordProtected bool   `json:"password_protected"`
	PasswordHash      string `json:"-"` // bcrypt hash, never serialized
}

// ShareLink is a bearer-token URL granting read (and optionally comment)
// access to a trip without authentication. The token is generated once at
// creation and never reused: revocation keeps the row but makes the token
// resolve exactly like one that never existed.
type ShareLink struct {
	ID             string        `json:"id" db:"id"`
	TripID         string        `json:"trip_id" db:"trip_id"`
	Token          string        `json:"token" db:"token"`
	CreatedBy      string        `json:"created_by" db:"created_by"`
	Settings       ShareSettings `json:"settings"`
	AccessCount    int64         `json:"access_count" db:"access_count"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastAccessedAt *time.Time    `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
	RevokedAt      *time.Time    `json:"-" db:"revoked_at"`
}

// Revoked reports whether the link has been invalidated.
func (l *ShareLink) Revoked() bool {
	return l.RevokedAt != nil
}

// Expired reports whether the link is past its expiry at the given instant.
// Links without expires_at never expire.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// ShareLinkCreateRequest 创建分享链接请求
type ShareLinkCreateRequest struct {
	IsPublic          bool   `json:"is_public"`
	AllowComments     bool   `json:"allow_comments"`
	PasswordProtected bool   `json:"password_protected"`
	Password          string `json:"password"`
	ExpiresInDays     int    `json:"expires_in_days"`
	SendEmail         bool   `json:"send_email"`
}

// ShareLinkResponse is returned to the link creator.
type ShareLinkResponse struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Token     string        `json:"token"`
	Settings  ShareSettings `json:"settings"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	EmailSent bool          `json:"email_sent"`
}
