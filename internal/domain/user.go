package domain

import "time"

// ============================================================
// Users & Roles
// ============================================================

// Role is the coarse role tag carried by every user.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleDukaverseEmployee Role = "dukaverse-employee"
	RoleEmployee          Role = "employee"
	RoleRetailer          Role = "retailer"
	RoleRetailEmployee    Role = "retail-employee"
	RoleSupplier          Role = "supplier"
	RoleSuperAdmin        Role = "super-admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDukaverseEmployee, RoleEmployee, RoleRetailer,
		RoleRetailEmployee, RoleSupplier, RoleSuperAdmin:
		return true
	}
	return false
}

// User is an authenticated principal of the platform.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body for 200 from POST /v1/auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
}
