package access_test

import (
	"context"
	"errors"
	"testing"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/models"
)

func TestGatewayUserPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	editor := env.addUser(t, "editor@example.com")
	inv := env.invite(t, "editor@example.com", models.RoleEditor)
	if _, err := env.collabs.Respond(context.Background(), inv.InviteToken, "accept"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		userID   string
		required models.Capability
		wantErr  error
	}{
		{"owner view", env.owner.ID, models.CapView, nil},
		{"owner manage", env.owner.ID, models.CapManageSettings, nil},
		{"editor view", editor.ID, models.CapView, nil},
		{"editor edit", editor.ID, models.CapEditItinerary, nil},
		{"editor invite denied", editor.ID, models.CapInviteOthers, access.ErrForbidden},
		{"stranger denied", "stranger-id", models.CapView, access.ErrForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision, err := env.gateway.Authorize(context.Background(), env.trip.ID,
				access.Credential{UserID: tt.userID}, tt.required)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if !decision.Granted || decision.Trip == nil {
				t.Errorf("decision = %+v", decision)
			}
		})
	}
}

func TestGatewayEmptyCredential(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.gateway.Authorize(context.Background(), env.trip.ID, access.Credential{}, models.CapView)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("empty credential error = %v, want ErrUnauthorized", err)
	}
}

func TestGatewayMissingTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.gateway.Authorize(context.Background(), "no-such-trip",
		access.Credential{UserID: env.owner.ID}, models.CapView)
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("missing trip error = %v, want ErrNotFound", err)
	}
}

func TestGatewaySharePathGrantsViewOnly(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	decision, err := env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: resp.Token}, models.CapView)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if decision.TripView == nil || decision.Trip != nil {
		t.Errorf("share path must return the projection only, got %+v", decision)
	}

	// Whatever the link settings, a share token never writes.
	for _, c := range []models.Capability{models.CapEditItinerary, models.CapInviteOthers, models.CapManageSettings} {
		_, err := env.gateway.Authorize(context.Background(), env.trip.ID,
			access.Credential{ShareToken: resp.Token}, c)
		if !errors.Is(err, access.ErrForbidden) {
			t.Errorf("share token granted %q: err = %v", c, err)
		}
	}
}

func TestGatewayShareCommentFollowsLinkSetting(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	plain, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}
	chatty, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID,
		models.ShareLinkCreateRequest{AllowComments: true}, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: plain.Token}, models.CapComment); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("comment on plain link error = %v, want ErrForbidden", err)
	}
	if _, err := env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: chatty.Token}, models.CapComment); err != nil {
		t.Errorf("comment on allow_comments link error = %v", err)
	}
}

func TestGatewayShareTokenForOtherTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	other := &models.Trip{
		UserID:      env.owner.ID,
		Title:       "Iceland Road Trip",
		Destination: "Reykjavik",
		StartDate:   "2027-06-01",
		EndDate:     "2027-06-10",
	}
	if err := env.db.CreateTrip(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	resp, err := env.shares.Create(context.Background(), other.ID, env.owner.ID, models.ShareLinkCreateRequest{}, "")
	if err != nil {
		t.Fatal(err)
	}

	// A token for trip B reveals nothing about trip A.
	_, err = env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: resp.Token}, models.CapView)
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("cross-trip token error = %v, want ErrNotFound", err)
	}
}

func TestGatewayProtectedShareNeedsPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.shares.Create(context.Background(), env.trip.ID, env.owner.ID,
		models.ShareLinkCreateRequest{PasswordProtected: true, Password: "hunter2hunter2"}, "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: resp.Token}, models.CapView)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("no password error = %v, want ErrUnauthorized", err)
	}

	decision, err := env.gateway.Authorize(context.Background(), env.trip.ID,
		access.Credential{ShareToken: resp.Token, Password: "hunter2hunter2"}, models.CapView)
	if err != nil {
		t.Fatalf("with password: %v", err)
	}
	if decision.TripView == nil {
		t.Error("decision missing trip view")
	}
}
