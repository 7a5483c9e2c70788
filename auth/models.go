package auth

import "time"

type Role string

const (
	RoleManager  Role = "Manager"
	RoleDalkon   Role = "Dalkon"
	RoleEngineer Role = "Engineer"
	RoleVendor   Role = "Vendor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleDalkon, RoleEngineer, RoleVendor:
		return true
	default:
		return false
	}
}

// IsReviewer reports whether r acts on documents submitted by vendors.
func (r Role) IsReviewer() bool {
	return r == RoleManager || r == RoleDalkon || r == RoleEngineer
}

// Principal is the authenticated caller. It is passed explicitly to every
// engine call; nothing looks up the current user from shared state.
type Principal struct {
	ID   string
	Role Role
}

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity carried by the user's tokens.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
