package rbac

// Platform role names carried in access tokens. Keep these stable; they are part of auth/RBAC contracts.
// They govern platform surfaces (statistics, operations). Per-call authority comes from the call roster.
const (
	RoleUser    = "user"
	RoleSupport = "support"
	RoleAdmin   = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleUser, RoleSupport, RoleAdmin:
		return true
	}
	return false
}
