package access

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Token lengths in characters. Invite tokens are shorter-lived and travel in
// email links; share tokens are long-lived and publicly exposed, so they get
// more entropy.
const (
	InviteTokenLength = 24
	ShareTokenLength  = 32
)

// NewInviteToken 生成 24 字符的 URL-safe 随机邀请 token。
func NewInviteToken() (string, error) {
	return randomToken(InviteTokenLength)
}

// NewShareToken 生成 32 字符的 URL-safe 随机分享 token。
func NewShareToken() (string, error) {
	return randomToken(ShareTokenLength)
}

// randomToken returns a hex string of exactly n characters from crypto/rand.
// Generation is pure: uniqueness is enforced by the store's unique index, and
// a collision there is treated as a fatal configuration error since it is
// astronomically unlikely at these lengths.
func randomToken(n int) (string, error) {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b)[:n], nil
}
