// Package ctxkeys defines typed context keys shared between middleware and handlers.
// Both middleware and handlers import this package, so neither has to import the
// other for context key types.
package ctxkeys

import "context"

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	UserID        Key = "userID"
	UserRole      Key = "userRole"
	BarangayScope Key = "barangayScope"
)

// Role names.
const (
	RoleBLGU       = "blgu_user"
	RoleAssessor   = "assessor"
	RoleValidator  = "validator"
	RoleMLGOO      = "mlgoo_dilg"
	RoleSuperAdmin = "super_admin"
)

// GetBarangayScope returns the barangay a BLGU user is bound to.
// Returns "" for every other role (meaning "all barangays").
func GetBarangayScope(ctx context.Context) string {
	id, _ := ctx.Value(BarangayScope).(string)
	return id
}

// IsGlobalScope returns true if the user may see every barangay.
func IsGlobalScope(ctx context.Context) bool {
	return GetBarangayScope(ctx) == ""
}

// GetUserID returns the authenticated user id, or "".
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// GetUserRole returns the authenticated user's role, or "".
func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(UserRole).(string)
	return role
}

// ValidRoles lists all valid role strings.
var ValidRoles = map[string]bool{
	RoleBLGU:       true,
	RoleAssessor:   true,
	RoleValidator:  true,
	RoleMLGOO:      true,
	RoleSuperAdmin: true,
}

// RoleLevel maps role names to permission levels.
var RoleLevel = map[string]int{
	RoleBLGU:       1,
	RoleAssessor:   2,
	RoleValidator:  3,
	RoleMLGOO:      4,
	RoleSuperAdmin: 5,
}
