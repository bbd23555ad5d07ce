package access

import (
	"testing"

	"travel-diary-backend/pkg/models"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	trip := &models.Trip{ID: "trip-1", UserID: "owner"}
	collaborators := []models.Collaborator{
		{TripID: "trip-1", UserID: "editor-user", Role: models.RoleEditor, Status: models.CollaboratorAccepted},
		{TripID: "trip-1", UserID: "viewer-user", Role: models.RoleViewer, Status: models.CollaboratorAccepted},
		{TripID: "trip-1", UserID: "admin-user", Role: models.RoleAdmin, Status: models.CollaboratorAccepted},
		{TripID: "trip-1", UserID: "pending-user", Role: models.RoleAdmin, Status: models.CollaboratorPending},
		{TripID: "trip-1", UserID: "declined-user", Role: models.RoleEditor, Status: models.CollaboratorDeclined},
	}

	tests := []struct {
		name    string
		userID  string
		want    []models.Capability
		wantNot []models.Capability
	}{
		{
			name:   "owner gets full set",
			userID: "owner",
			want:   []models.Capability{models.CapView, models.CapEditItinerary, models.CapInviteOthers, models.CapManageSettings},
		},
		{
			name:    "accepted editor can view and edit",
			userID:  "editor-user",
			want:    []models.Capability{models.CapView, models.CapEditItinerary},
			wantNot: []models.Capability{models.CapInviteOthers, models.CapManageSettings},
		},
		{
			name:    "accepted viewer can only view",
			userID:  "viewer-user",
			want:    []models.Capability{models.CapView},
			wantNot: []models.Capability{models.CapEditItinerary, models.CapInviteOthers},
		},
		{
			name:   "accepted admin can manage",
			userID: "admin-user",
			want:   []models.Capability{models.CapView, models.CapEditItinerary, models.CapInviteOthers, models.CapManageSettings},
		},
		{
			name:    "pending collaborator has nothing despite admin role",
			userID:  "pending-user",
			wantNot: []models.Capability{models.CapView, models.CapEditItinerary, models.CapInviteOthers, models.CapManageSettings},
		},
		{
			name:    "declined collaborator has nothing",
			userID:  "declined-user",
			wantNot: []models.Capability{models.CapView, models.CapEditItinerary},
		},
		{
			name:    "stranger has nothing",
			userID:  "stranger",
			wantNot: []models.Capability{models.CapView},
		},
		{
			name:    "empty user id has nothing",
			userID:  "",
			wantNot: []models.Capability{models.CapView},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caps := Resolve(trip, collaborators, tt.userID)
			for _, c := range tt.want {
				if !caps.Has(c) {
					t.Errorf("Resolve(%q) missing capability %q", tt.userID, c)
				}
			}
			for _, c := range tt.wantNot {
				if caps.Has(c) {
					t.Errorf("Resolve(%q) unexpectedly has capability %q", tt.userID, c)
				}
			}
		})
	}
}

func TestResolveOwnerBeatsCollaboratorRecord(t *testing.T) {
	t.Parallel()

	// An owner who somehow also appears as a declined collaborator keeps the
	// full owner set.
	trip := &models.Trip{ID: "trip-1", UserID: "owner"}
	collabs := []models.Collaborator{
		{TripID: "trip-1", UserID: "owner", Role: models.RoleViewer, Status: models.CollaboratorDeclined},
	}

	caps := Resolve(trip, collabs, "owner")
	if !caps.Has(models.CapManageSettings) {
		t.Error("owner lost manage_settings due to a collaborator record")
	}
}

func TestRolesNeverGrantComment(t *testing.T) {
	t.Parallel()

	for _, role := range []models.Role{models.RoleViewer, models.RoleEditor, models.RoleAdmin} {
		if models.PermissionsForRole(role).Has(models.CapComment) {
			t.Errorf("role %q grants comment; only share links may", role)
		}
	}
}

func TestPermissionsForRoleUnknownFallsBackToViewer(t *testing.T) {
	t.Parallel()

	caps := models.PermissionsForRole(models.Role("superuser"))
	if !caps.Has(models.CapView) {
		t.Error("unknown role should degrade to view-only")
	}
	if caps.Has(models.CapEditItinerary) {
		t.Error("unknown role must not grant edit_itinerary")
	}
}
