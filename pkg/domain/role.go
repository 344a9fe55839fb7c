package domain

// Role classifies an authenticated caller. The engine trusts the
// (actor, role) pair attached by the access-control edge and only performs
// ownership checks against it.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleFarmer Role = "farmer"
	RoleAdmin  Role = "admin"
)

var validRoles = map[Role]struct{}{
	RoleBuyer:  {},
	RoleFarmer: {},
	RoleAdmin:  {},
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := validRoles[r]
	return ok
}
