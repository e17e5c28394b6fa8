package auth

import "sort"

// Permission is an atomic capability grant drawn from a fixed catalog.
type Permission string

const (
	PermCreateUser Permission = "create_user"
	PermReadUser   Permission = "read_user"
	PermUpdateUser Permission = "update_user"
	PermDeleteUser Permission = "delete_user"

	PermCreateRole Permission = "create_role"
	PermReadRole   Permission = "read_role"
	PermUpdateRole Permission = "update_role"
	PermDeleteRole Permission = "delete_role"

	PermCreateProperty Permission = "create_property"
	PermReadProperty   Permission = "read_property"
	PermUpdateProperty Permission = "update_property"
	PermDeleteProperty Permission = "delete_property"

	PermCreateBlogPost Permission = "create_blog_post"
	PermReadBlogPost   Permission = "read_blog_post"
	PermUpdateBlogPost Permission = "update_blog_post"
	PermDeleteBlogPost Permission = "delete_blog_post"

	PermManageSystem  Permission = "manage_system"
	PermViewAnalytics Permission = "view_analytics"
	PermExportData    Permission = "export_data"
)

// AllPermissions is the closed permission catalog. Role definitions may only
// reference values listed here.
var AllPermissions = []Permission{
	PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser,
	PermCreateRole, PermReadRole, PermUpdateRole, PermDeleteRole,
	PermCreateProperty, PermReadProperty, PermUpdateProperty, PermDeleteProperty,
	PermCreateBlogPost, PermReadBlogPost, PermUpdateBlogPost, PermDeleteBlogPost,
	PermManageSystem, PermViewAnalytics, PermExportData,
}

// ValidPermission reports whether p belongs to the catalog.
func ValidPermission(p Permission) bool {
	for _, known := range AllPermissions {
		if known == p {
			return true
		}
	}
	return false
}

// Builtin role names.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleUser       = "user"
	RoleGuest      = "guest"
)

// BuiltinRoles are the roles provisioned on first start. DefaultRoleName is
// assigned to newly registered users.
var BuiltinRoles = []Role{
	{
		Name:        RoleSuperAdmin,
		Description: "Super Administrator with full system access",
		Permissions: AllPermissions,
		Active:      true,
	},
	{
		Name:        RoleAdmin,
		Description: "Administrator with limited permissions",
		Permissions: []Permission{
			PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser,
			PermReadRole, PermViewAnalytics,
		},
		Active: true,
	},
	{
		Name:        RoleManager,
		Description: "Manager with specific permissions",
		Permissions: []Permission{
			PermReadUser, PermUpdateUser, PermReadRole, PermViewAnalytics,
		},
		Active: true,
	},
	{
		Name:        RoleUser,
		Description: "Standard user with basic permissions",
		Permissions: []Permission{PermReadUser},
		Active:      true,
	},
	{
		Name:        RoleGuest,
		Description: "Guest user with minimal permissions",
		Permissions: nil,
		Active:      true,
	},
}

// DefaultRoleName is granted to users registered without an explicit role.
const DefaultRoleName = RoleUser

func sortedPermissions(set map[Permission]struct{}) []Permission {
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
