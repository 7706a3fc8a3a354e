package auth

import "slices"

// Permission is a capability checked by the API.
type Permission string

const (
	PermDeviceRead    Permission = "device:read"
	PermDeviceOperate Permission = "device:operate"
	PermAuditRead     Permission = "audit:read"
)

// grants lists what each role adds to the roles below it in ValidRoles.
var grants = map[Role][]Permission{
	RoleViewer:   {PermDeviceRead},
	RoleOperator: {PermDeviceOperate},
	RoleAdmin:    {PermAuditRead},
}

// PermissionsForRole returns every permission role holds, including those
// inherited from lower roles. An unknown role holds none.
func PermissionsForRole(role Role) []Permission {
	rank := slices.Index(ValidRoles, role)
	if rank < 0 {
		return nil
	}
	var perms []Permission
	for _, r := range ValidRoles[:rank+1] {
		perms = append(perms, grants[r]...)
	}
	return perms
}

// HasPermission reports whether role holds perm.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(PermissionsForRole(role), perm)
}
