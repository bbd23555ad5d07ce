package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/models"
)

func TestCreateShareLinkDefaults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(resp.Token) != access.ShareTokenLength {
		t.Errorf("token length = %d, want %d", len(resp.Token), access.ShareTokenLength)
	}
	if resp.URL != "https://app.example.com/shared/"+resp.Token {
		t.Errorf("URL = %s", resp.URL)
	}
	if resp.ExpiresAt == nil {
		t.Fatal("default expiry missing")
	}
	wantExpiry := time.Now().UTC().Add(access.DefaultShareExpiryDays * 24 * time.Hour)
	if diff := resp.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry %v not ~30 days out", resp.ExpiresAt)
	}
}

func TestCreateShareLinkAllowedForAcceptedCollaborator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	viewer := env.addUser(t, "viewer@example.com")
	resp := env.invite(t, "viewer@example.com", models.RoleViewer)
	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept"); err != nil {
		t.Fatal(err)
	}

	if _, err := env.shares.Create(context.Background(), env.trip.ID, viewer.ID, models.ShareLinkCreateRequest{}, ""); err != nil {
		t.Errorf("accepted viewer cannot share: %v", err)
	}

	stranger := env.addUser(t, "stranger@example.com")
	if _, err := env.shares.Create(context.Background(), env.trip.ID, stranger.ID, models.ShareLinkCreateRequest{}, ""); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("stranger share error = %v, want ErrForbidden", err)
	}
}

func TestCreateProtectedLinkRequiresPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID,
		models.ShareLinkCreateRequest{PasswordProtected: true}, "")
	if !errors.Is(err, access.ErrConflict) {
		t.Errorf("protected without password error = %v, want ErrConflict", err)
	}
}

func TestResolveShareLink(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID,
		models.ShareLinkCreateRequest{AllowComments: true}, "")
	if err != nil {
		t.Fatal(err)
	}

	view, link, err := env.shares.Resolve(context.Background(), resp.Token, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.Title != env.trip.Title {
		t.Errorf("view title = %q, want %q", view.Title, env.trip.Title)
	}
	if !view.IsShared || !view.AllowComments {
		t.Errorf("view flags = %+v", view)
	}
	if link.TripID != env.trip.ID {
		t.Errorf("link trip = %s", link.TripID)
	}

	// The projection never leaks the owner.
	if view.ID != env.trip.ID {
		t.Errorf("view id = %s", view.ID)
	}
}

func TestResolveCountsAccesses(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, _, err := env.shares.Resolve(context.Background(), resp.Token, ""); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	link, err := env.db.GetShareLinkByToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatal(err)
	}
	if link.AccessCount != 3 {
		t.Errorf("access count = %d, want 3", link.AccessCount)
	}
	if link.LastAccessedAt == nil {
		t.Error("last_accessed_at not stamped")
	}
}

func TestResolveUnknownTokenNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, _, err := env.shares.Resolve(context.Background(), "0123456789abcdef0123456789abcdef", "")
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("unknown token error = %v, want ErrNotFound", err)
	}
}

func TestResolveExpiredLink(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	// Backdate the expiry directly in the store.
	link, _ := env.db.GetShareLinkByToken(context.Background(), resp.Token)
	past := time.Now().UTC().Add(-time.Hour)
	link.ExpiresAt = &past
	if err := env.db.CreateShareLink(context.Background(), link); err != nil {
		t.Fatal(err)
	}

	_, _, err = env.shares.Resolve(context.Background(), resp.Token, "")
	if !errors.Is(err, access.ErrExpired) {
		t.Errorf("expired link error = %v, want ErrExpired", err)
	}
}

func TestResolvePasswordProtectedLink(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID,
		models.ShareLinkCreateRequest{PasswordProtected: true, Password: "s3cret-pass"}, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := env.shares.Resolve(context.Background(), resp.Token, ""); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("missing password error = %v, want ErrUnauthorized", err)
	}
	if _, _, err := env.shares.Resolve(context.Background(), resp.Token, "wrong"); !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("wrong password error = %v, want ErrUnauthorized", err)
	}
	if _, _, err := env.shares.Resolve(context.Background(), resp.Token, "s3cret-pass"); err != nil {
		t.Errorf("correct password error = %v", err)
	}

	// The stored settings never expose the plaintext or hash through JSON.
	if resp.Settings.PasswordHash == "s3cret-pass" {
		t.Error("password stored in plaintext")
	}
}

func TestRevokeShareLink(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := env.shares.Revoke(context.Background(), env.trip.ID, env.owner.ID, resp.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// A revoked token is indistinguishable from one that never existed.
	_, _, err = env.shares.Resolve(context.Background(), resp.Token, "")
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("revoked token error = %v, want ErrNotFound", err)
	}

	// Revoking again also reports not found.
	if err := env.shares.Revoke(context.Background(), env.trip.ID, env.owner.ID, resp.Token); !errors.Is(err, access.ErrNotFound) {
		t.Errorf("double revoke error = %v, want ErrNotFound", err)
	}
}

func TestRevokeRequiresManageSettings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	editor := env.addUser(t, "editor@example.com")
	inv := env.invite(t, "editor@example.com", models.RoleEditor)
	if _, err := env.collabs.Respond(context.Background(), inv.InviteToken, "accept"); err != nil {
		t.Fatal(err)
	}

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := env.shares.Revoke(context.Background(), env.trip.ID, editor.ID, resp.Token); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("editor revoke error = %v, want ErrForbidden", err)
	}
}

func TestListShareLinksExcludesRevoked(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	keep, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}
	gone, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.shares.Revoke(context.Background(), env.trip.ID, env.owner.ID, gone.Token); err != nil {
		t.Fatal(err)
	}

	links, err := env.shares.List(context.Background(), env.trip.ID, env.owner.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(links) != 1 || links[0].Token != keep.Token {
		t.Errorf("links = %+v, want only %s", links, keep.Token)
	}
}
