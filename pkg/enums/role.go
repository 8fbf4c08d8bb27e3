package enums

import "fmt"

// Role is the dashboard privilege level of a signed-in user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleKitchen,
	RoleDelivery,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role operates a staff dashboard.
func (r Role) IsStaff() bool {
	return r == RoleKitchen || r == RoleDelivery || r == RoleAdmin
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
