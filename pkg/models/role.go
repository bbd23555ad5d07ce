package models

// Role is a named bundle of capabilities assigned to a collaborator.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// IsValid checks that the role is one of the known collaborator roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// Capability is a single action an actor may perform on a trip.
type Capability string

const (
	CapView           Capability = "view"
	CapEditItinerary  Capability = "edit_itinerary"
	CapInviteOthers   Capability = "invite_others"
	CapManageSettings Capability = "manage_settings"
	// CapComment is only ever granted through a share link with
	// allow_comments enabled; roles never carry it.
	CapComment Capability = "comment"
)

// CapabilitySet 权限集合
type CapabilitySet map[Capability]bool

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// IsEmpty reports whether the set grants nothing (NoAccess).
func (s CapabilitySet) IsEmpty() bool {
	return len(s) == 0
}

// Slice returns the capabilities in a stable order for API responses.
func (s CapabilitySet) Slice() []Capability {
	ordered := []Capability{CapView, CapComment, CapEditItinerary, CapInviteOthers, CapManageSettings}
	out := make([]Capability, 0, len(s))
	for _, c := range ordered {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// rolePermissions 是静态的角色→权限映射表。
// 新增角色时只需在这里加一行，其他地方不需要散落的分支判断。
var rolePermissions = map[Role]CapabilitySet{
	RoleViewer: {CapView: true},
	RoleEditor: {CapView: true, CapEditItinerary: true},
	RoleAdmin:  {CapView: true, CapEditItinerary: true, CapInviteOthers: true, CapManageSettings: true},
}

// PermissionsForRole returns the static capability set for a role.
// Unknown roles fall back to viewer rather than failing closed to nothing,
// so a bad role value in old data degrades to read-only.
func PermissionsForRole(r Role) CapabilitySet {
	if set, ok := rolePermissions[r]; ok {
		return set.clone()
	}
	return rolePermissions[RoleViewer].clone()
}

// OwnerCapabilities returns the full capability set granted to a trip owner
// regardless of any collaborator record.
func OwnerCapabilities() CapabilitySet {
	return PermissionsForRole(RoleAdmin)
}

// NoAccess is the empty capability set.
func NoAccess() CapabilitySet {
	return CapabilitySet{}
}

func (s CapabilitySet) clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = true
	}
	return out
}
