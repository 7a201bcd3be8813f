package core

// Role is the closed set of user roles. Every authorization decision is made
// against this enumeration; free-form role strings are rejected at the edge.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
)

var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// IsAdminTier reports whether the role may traverse school boundaries for
// School- and User-level listing operations.
func (r Role) IsAdminTier() bool { return r == RoleSuperAdmin || r == RoleAdmin }

func (r Role) String() string { return string(r) }

// Principal is the authenticated caller every service operation is scoped to.
// It is resolved from the JWT claims at the API boundary and carried
// explicitly; services never reach back into the transport layer.
type Principal struct {
	UserID   string
	Role     Role
	SchoolID string // empty for super_admin/admin not bound to a school
}

func (p Principal) IsSuperAdmin() bool { return p.Role == RoleSuperAdmin }
func (p Principal) IsAdmin() bool      { return p.Role.IsAdminTier() }
func (p Principal) IsTeacher() bool    { return p.Role == RoleTeacher }
func (p Principal) IsStudent() bool    { return p.Role == RoleStudent }

// SameSchool reports whether schoolID falls within the principal's tenancy.
func (p Principal) SameSchool(schoolID string) bool {
	return p.SchoolID != "" && p.SchoolID == schoolID
}

// CanReadSchool allows same-school access for everyone and cross-school
// access for the admin tier only.
func (p Principal) CanReadSchool(schoolID string) bool {
	return p.SameSchool(schoolID) || p.IsAdmin()
}
