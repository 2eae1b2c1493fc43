package enums

import "slices"

// UserRole is fixed at registration.
type UserRole string

const (
	UserRoleFarmer   UserRole = "FARMER"
	UserRoleCustomer UserRole = "CUSTOMER"
)

var userRoles = []UserRole{UserRoleFarmer, UserRoleCustomer}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return slices.Contains(userRoles, r) }

func ParseUserRole(raw string) (UserRole, error) {
	return parse("user role", raw, userRoles)
}
