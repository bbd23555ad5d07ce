package access_test

import (
	"context"
	"errors"
	"testing"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/database"
	"travel-diary-backend/pkg/email"
	"travel-diary-backend/pkg/models"

	"go.uber.org/zap"
)

type testEnv struct {
	db      *database.MemoryDatabase
	collabs *access.CollabManager
	shares  *access.ShareManager
	gateway *access.Gateway
	owner   *models.User
	trip    *models.Trip
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := database.NewMemoryDatabase()
	log := zap.NewNop()
	sender := email.NewLogSender(log)

	owner := &models.User{Email: "owner@example.com", Name: "Owner"}
	if err := db.CreateUser(context.Background(), owner); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	trip := &models.Trip{
		UserID:      owner.ID,
		Title:       "Kyoto in Autumn",
		Destination: "Kyoto, Japan",
		StartDate:   "2026-11-01",
		EndDate:     "2026-11-08",
		Duration:    8,
		Status:      models.TripPlanning,
	}
	if err := db.CreateTrip(context.Background(), trip); err != nil {
		t.Fatalf("seed trip: %v", err)
	}

	shares := access.NewShareManager(db, sender, log, "https://app.example.com", access.DefaultShareExpiryDays)
	return &testEnv{
		db:      db,
		collabs: access.NewCollabManager(db, sender, log, "https://app.example.com"),
		shares:  shares,
		gateway: access.NewGateway(db, shares),
		owner:   owner,
		trip:    trip,
	}
}

// addUser registers an account and returns it.
func (e *testEnv) addUser(t *testing.T, emailAddr string) *models.User {
	t.Helper()
	u := &models.User{Email: emailAddr}
	if err := e.db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", emailAddr, err)
	}
	return u
}

// invite issues an invitation as the owner and returns the response.
func (e *testEnv) invite(t *testing.T, emailAddr string, role models.Role) *models.InviteResponse {
	t.Helper()
	resp, err := e.collabs.Invite(context.Background(), e.trip.ID, e.owner.ID, emailAddr, role, "")
	if err != nil {
		t.Fatalf("invite %s: %v", emailAddr, err)
	}
	return resp
}

func TestInviteIssuesPendingTokenWithNoAccess(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	invitee := env.addUser(t, "friend@example.com")

	resp := env.invite(t, "friend@example.com", models.RoleEditor)

	if len(resp.InviteToken) != access.InviteTokenLength {
		t.Errorf("invite token length = %d, want %d", len(resp.InviteToken), access.InviteTokenLength)
	}
	if resp.Collaborator.Status != models.CollaboratorPending {
		t.Errorf("status = %s, want pending", resp.Collaborator.Status)
	}
	if resp.Collaborator.UserID != invitee.ID {
		t.Errorf("invite did not bind existing account: user_id = %q", resp.Collaborator.UserID)
	}

	// Pending invite grants nothing yet.
	_, caps, err := access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, invitee.ID)
	if err != nil {
		t.Fatalf("ResolveTrip: %v", err)
	}
	if !caps.IsEmpty() {
		t.Errorf("pending collaborator has capabilities: %v", caps.Slice())
	}
}

func TestInviteRequiresInviteOthers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	editor := env.addUser(t, "editor@example.com")

	resp := env.invite(t, "editor@example.com", models.RoleEditor)
	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// An editor may not invite.
	_, err := env.collabs.Invite(context.Background(), env.trip.ID, editor.ID, "third@example.com", models.RoleViewer, "")
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("editor invite error = %v, want ErrForbidden", err)
	}

	// A stranger may not invite either.
	stranger := env.addUser(t, "stranger@example.com")
	_, err = env.collabs.Invite(context.Background(), env.trip.ID, stranger.ID, "fourth@example.com", models.RoleViewer, "")
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("stranger invite error = %v, want ErrForbidden", err)
	}
}

func TestInviteDuplicateEmailConflicts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.invite(t, "friend@example.com", models.RoleViewer)
	_, err := env.collabs.Invite(context.Background(), env.trip.ID, env.owner.ID, "Friend@Example.com", models.RoleEditor, "")
	if !errors.Is(err, access.ErrConflict) {
		t.Errorf("duplicate invite error = %v, want ErrConflict", err)
	}
}

func TestInviteInvalidRole(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.collabs.Invite(context.Background(), env.trip.ID, env.owner.ID, "friend@example.com", models.Role("owner"), "")
	if !errors.Is(err, access.ErrConflict) {
		t.Errorf("invalid role error = %v, want ErrConflict", err)
	}
}

func TestRespondAcceptGrantsRolePermissions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	invitee := env.addUser(t, "friend@example.com")
	resp := env.invite(t, "friend@example.com", models.RoleEditor)

	collab, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if collab.Status != models.CollaboratorAccepted {
		t.Errorf("status = %s, want accepted", collab.Status)
	}
	if collab.AcceptedAt == nil || collab.RespondedAt == nil {
		t.Error("accept did not stamp responded_at/accepted_at")
	}

	_, caps, err := access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, invitee.ID)
	if err != nil {
		t.Fatalf("ResolveTrip: %v", err)
	}
	if !caps.Has(models.CapEditItinerary) {
		t.Error("accepted editor cannot edit itinerary")
	}
	if caps.Has(models.CapManageSettings) {
		t.Error("accepted editor must not manage settings")
	}
}

func TestRespondDecline(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	invitee := env.addUser(t, "friend@example.com")
	resp := env.invite(t, "friend@example.com", models.RoleAdmin)

	collab, err := env.collabs.Respond(context.Background(), resp.InviteToken, "decline")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if collab.Status != models.CollaboratorDeclined {
		t.Errorf("status = %s, want declined", collab.Status)
	}
	if collab.AcceptedAt != nil {
		t.Error("decline must not stamp accepted_at")
	}

	_, caps, _ := access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, invitee.ID)
	if !caps.IsEmpty() {
		t.Errorf("declined collaborator has capabilities: %v", caps.Slice())
	}
}

func TestRespondTokenIsSingleUse(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.addUser(t, "friend@example.com")
	resp := env.invite(t, "friend@example.com", models.RoleViewer)

	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept"); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	// Second response with the same token, either action, conflicts.
	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept"); !errors.Is(err, access.ErrConflict) {
		t.Errorf("second accept error = %v, want ErrConflict", err)
	}
	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "decline"); !errors.Is(err, access.ErrConflict) {
		t.Errorf("decline after accept error = %v, want ErrConflict", err)
	}
}

func TestRespondUnknownToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.collabs.Respond(context.Background(), "deadbeefdeadbeefdeadbeef", "accept")
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("unknown token error = %v, want ErrNotFound", err)
	}

	_, err = env.collabs.Respond(context.Background(), "", "accept")
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("empty token error = %v, want ErrNotFound", err)
	}
}

func TestRespondInvalidAction(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	resp := env.invite(t, "friend@example.com", models.RoleViewer)

	_, err := env.collabs.Respond(context.Background(), resp.InviteToken, "maybe")
	if !errors.Is(err, access.ErrConflict) {
		t.Errorf("invalid action error = %v, want ErrConflict", err)
	}
}

func TestUpdateRoleRequiresManageSettings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	editor := env.addUser(t, "editor@example.com")
	resp := env.invite(t, "editor@example.com", models.RoleEditor)
	if _, err := env.collabs.Respond(context.Background(), resp.InviteToken, "accept"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Editor cannot change their own role.
	_, err := env.collabs.UpdateRole(context.Background(), env.trip.ID, editor.ID, resp.Collaborator.ID, models.RoleAdmin)
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("self role change error = %v, want ErrForbidden", err)
	}

	// Owner can.
	updated, err := env.collabs.UpdateRole(context.Background(), env.trip.ID, env.owner.ID, resp.Collaborator.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("owner UpdateRole: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin", updated.Role)
	}

	// Status survives the role change.
	_, caps, _ := access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, editor.ID)
	if !caps.Has(models.CapManageSettings) {
		t.Error("promoted admin cannot manage settings")
	}
}

func TestRemoveCollaborator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	viewer := env.addUser(t, "viewer@example.com")
	other := env.addUser(t, "other@example.com")

	respViewer := env.invite(t, "viewer@example.com", models.RoleViewer)
	respOther := env.invite(t, "other@example.com", models.RoleViewer)
	if _, err := env.collabs.Respond(context.Background(), respViewer.InviteToken, "accept"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.collabs.Respond(context.Background(), respOther.InviteToken, "accept"); err != nil {
		t.Fatal(err)
	}

	// A viewer cannot remove someone else.
	err := env.collabs.Remove(context.Background(), env.trip.ID, viewer.ID, respOther.Collaborator.ID)
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("peer removal error = %v, want ErrForbidden", err)
	}

	// But may always remove themself.
	if err := env.collabs.Remove(context.Background(), env.trip.ID, viewer.ID, respViewer.Collaborator.ID); err != nil {
		t.Fatalf("self removal: %v", err)
	}
	_, caps, _ := access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, viewer.ID)
	if !caps.IsEmpty() {
		t.Error("removed collaborator retains access")
	}

	// Owner removes the other one.
	if err := env.collabs.Remove(context.Background(), env.trip.ID, env.owner.ID, respOther.Collaborator.ID); err != nil {
		t.Fatalf("owner removal: %v", err)
	}
	_, caps, _ = access.NewResolver(env.db).ResolveTrip(context.Background(), env.trip.ID, other.ID)
	if !caps.IsEmpty() {
		t.Error("removed collaborator retains access")
	}
}

func TestListCollaboratorsRequiresView(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	stranger := env.addUser(t, "stranger@example.com")
	env.invite(t, "friend@example.com", models.RoleViewer)

	if _, err := env.collabs.List(context.Background(), env.trip.ID, stranger.ID); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("stranger list error = %v, want ErrForbidden", err)
	}

	collabs, err := env.collabs.List(context.Background(), env.trip.ID, env.owner.ID)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(collabs) != 1 {
		t.Errorf("collaborator count = %d, want 1", len(collabs))
	}
}

func TestInviteOnMissingTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.collabs.Invite(context.Background(), "no-such-trip", env.owner.ID, "friend@example.com", models.RoleViewer, "")
	if !errors.Is(err, access.ErrNotFound) {
		t.Errorf("missing trip error = %v, want ErrNotFound", err)
	}
}
