package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	PermissionRoutingRead  = "routing:read"
	PermissionRoutingWrite = "routing:write"
	PermissionPSPWrite     = "psp:write"
	PermissionPaymentRead  = "payment:read"
	PermissionPaymentRoute = "payment:route"
)

// OperatorClaims are carried by tokens issued to dashboard operators and
// to the order service calling the routing API.
type OperatorClaims struct {
	jwt.RegisteredClaims
	OperatorID  uint     `json:"operator_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *OperatorClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case "admin":
		return []string{
			PermissionRoutingRead,
			PermissionRoutingWrite,
			PermissionPSPWrite,
			PermissionPaymentRead,
			PermissionPaymentRoute,
		}
	case "operator":
		return []string{
			PermissionRoutingRead,
			PermissionPaymentRead,
		}
	case "service":
		return []string{
			PermissionPaymentRoute,
			PermissionRoutingRead,
		}
	default:
		return []string{}
	}
}
