package models

// Principal is the authenticated caller as resolved by the identity layer
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (p Principal) IsAdmin() bool     { return p.Role == RoleAdmin }
func (p Principal) IsClient() bool    { return p.Role == RoleClient }
func (p Principal) IsCounselor() bool { return p.Role == RoleCounselor }

// ValidRole reports whether role is one the service understands
func ValidRole(role string) bool {
	return role == RoleClient || role == RoleCounselor || role == RoleAdmin
}
