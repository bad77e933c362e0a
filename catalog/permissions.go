package catalog

// Role is the console user's role. The mapping to capabilities is static;
// enforcement happens in the view layer before a mutation is attempted.
type Role string

const (
	RoleManager Role = "Manager"
	RoleEditor  Role = "Editor"
	RoleViewer  Role = "Viewer"
)

type Permissions struct {
	CanCreate bool
	CanEdit   bool
	CanDelete bool
	ReadOnly  bool
}

func PermissionsFor(role Role) Permissions {
	return Permissions{
		CanCreate: role == RoleManager,
		CanEdit:   role == RoleManager || role == RoleEditor,
		CanDelete: role == RoleManager,
		ReadOnly:  role == RoleViewer,
	}
}
