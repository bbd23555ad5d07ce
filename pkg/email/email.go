// Package email delivers invitation and share notifications. Delivery is
// fire-and-forget: senders log failures but callers never fail an invite or
// share-creation operation because an email did not go out.
package email

import (
	"context"

	"go.uber.org/zap"
)

// CollaborationInvite 邀请邮件内容
type CollaborationInvite struct {
	ToEmail      string
	InviterName  string
	InviterEmail string
	TripTitle    string
	Destination  string
	StartDate    string
	EndDate      string
	Role         string
	InviteToken  string
	Message      string
	AcceptURL    string
	DeclineURL   string
}

// ShareNotification 分享链接通知邮件内容
type ShareNotification struct {
	ToEmail     string
	TripTitle   string
	Destination string
	ShareURL    string
}

// Sender delivers trip emails. Implementations must be safe for concurrent use.
type Sender interface {
	SendCollaborationInvite(ctx context.Context, inv CollaborationInvite) error
	SendShareNotification(ctx context.Context, n ShareNotification) error
}

// LogSender writes would-be emails to the structured log instead of sending
// them. It is the default when EMAIL_ENABLED is off and the only
// implementation shipped here; real delivery is an external concern.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// SendCollaborationInvite logs the invite instead of delivering it.
func (s *LogSender) SendCollaborationInvite(_ context.Context, inv CollaborationInvite) error {
	s.log.Info("collaboration invite (email disabled, not sent)",
		zap.String("to", inv.ToEmail),
		zap.String("trip", inv.TripTitle),
		zap.String("role", inv.Role),
		zap.String("accept_url", inv.AcceptURL),
	)
	return nil
}

// SendShareNotification logs the share notification instead of delivering it.
func (s *LogSender) SendShareNotification(_ context.Context, n ShareNotification) error {
	s.log.Info("share notification (email disabled, not sent)",
		zap.String("to", n.ToEmail),
		zap.String("trip", n.TripTitle),
		zap.String("share_url", n.ShareURL),
	)
	return nil
}
