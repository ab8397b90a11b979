package shared

// Console permissions.
const (
	PermUsersView   = "users.view"
	PermUsersManage = "users.manage"

	PermRolesView   = "roles.view"
	PermRolesManage = "roles.manage"

	PermGrantsView   = "grants.view"
	PermGrantsManage = "grants.manage"

	PermPermissionsView = "permissions.view"
)

// ConsoleScopes lists all permissions known to the console itself.
func ConsoleScopes() []string {
	return []string{
		PermUsersView,
		PermUsersManage,
		PermRolesView,
		PermRolesManage,
		PermGrantsView,
		PermGrantsManage,
		PermPermissionsView,
	}
}
